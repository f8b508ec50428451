package embedding

import (
	"context"
	"fmt"
)

// Provider limits on inputs per embedding request.
const (
	geminiMaxBatch = 100
	openAIMaxBatch = 2048
)

// inBatches calls embed on consecutive slices of at most size texts and
// concatenates the results in input order.
func inBatches(ctx context.Context, texts []string, size int, embed func(context.Context, []string) ([][]float32, error)) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		vecs, err := embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("got %d embeddings for %d texts", len(vecs), end-start)
		}
		out = append(out, vecs...)
	}
	return out, nil
}
