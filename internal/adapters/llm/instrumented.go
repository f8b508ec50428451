package llm

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
	"github.com/0xcro3dile/oqgen/internal/domain/ports"
)

// RequestObserver counts LLM requests.
type RequestObserver interface {
	ObserveLLMRequest(provider string, d time.Duration, err error)
}

// Instrumented wraps an LLMService with a per-call timeout, request metrics
// and debug logging. It never retries.
type Instrumented struct {
	next     ports.LLMService
	timeout  time.Duration
	observer RequestObserver
	logger   *zap.Logger
}

// NewInstrumented wraps next. observer and logger may be nil; timeout 0 disables the deadline.
func NewInstrumented(next ports.LLMService, timeout time.Duration, observer RequestObserver, logger *zap.Logger) *Instrumented {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instrumented{
		next:     next,
		timeout:  timeout,
		observer: observer,
		logger:   logger.With(zap.String("component", "llm"), zap.String("model", next.Name())),
	}
}

// Name delegates to the wrapped service.
func (i *Instrumented) Name() string {
	return i.next.Name()
}

// Generate calls the wrapped service.
func (i *Instrumented) Generate(ctx context.Context, req entities.CompletionRequest) (string, error) {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := i.next.Generate(ctx, req)
	elapsed := time.Since(start)

	if i.observer != nil {
		i.observer.ObserveLLMRequest(provider(i.next.Name()), elapsed, err)
	}
	if err != nil {
		i.logger.Warn("LLM request failed", zap.Duration("duration", elapsed), zap.Error(err))
		return "", err
	}
	i.logger.Debug("LLM request completed",
		zap.Duration("duration", elapsed),
		zap.Int("prompt_bytes", len(req.Prompt)),
		zap.Int("response_bytes", len(out)))
	return out, nil
}

// provider returns the part of a service name before the colon.
func provider(name string) string {
	if p, _, ok := strings.Cut(name, ":"); ok {
		return p
	}
	return name
}
