package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/0xcro3dile/oqgen/internal/domain/ports"
)

// NamedEmbedder is an embedding service that can identify its model.
type NamedEmbedder interface {
	ports.EmbeddingService
	Name() string
}

// CacheObserver counts cache lookups.
type CacheObserver interface {
	ObserveEmbeddingCache(hit bool)
}

// OpenCache opens the badger database backing the embedding cache.
// An empty path opens an in-memory database.
func OpenCache(path string, logger *zap.Logger) (*badger.DB, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger.Sugar()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}

// badgerLogger adapts zap to badger's Logger interface.
type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{})   { l.logger.Errorf(format, args...) }
func (l *badgerLogger) Warningf(format string, args ...interface{}) { l.logger.Warnf(format, args...) }
func (l *badgerLogger) Infof(format string, args ...interface{})    { l.logger.Debugf(format, args...) }
func (l *badgerLogger) Debugf(format string, args ...interface{})   { l.logger.Debugf(format, args...) }

// Cached decorates an embedder with a badger cache keyed by model and text hash.
type Cached struct {
	next     NamedEmbedder
	db       *badger.DB
	observer CacheObserver
	logger   *zap.Logger
}

// NewCached wraps next. observer may be nil.
func NewCached(next NamedEmbedder, db *badger.DB, observer CacheObserver, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{
		next:     next,
		db:       db,
		observer: observer,
		logger:   logger.With(zap.String("component", "embedding_cache")),
	}
}

// Name delegates to the wrapped embedder.
func (c *Cached) Name() string {
	return c.next.Name()
}

// Embed returns the cached vector or computes and stores it.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds only the texts missing from the cache, in one call to the wrapped embedder.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	err := c.db.View(func(txn *badger.Txn) error {
		for i, text := range texts {
			item, err := txn.Get(c.key(text))
			if errors.Is(err, badger.ErrKeyNotFound) {
				missIdx = append(missIdx, i)
				missTexts = append(missTexts, text)
				continue
			}
			if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				vec, err := decodeVector(val)
				out[i] = vec
				return err
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading embedding cache: %w", err)
	}

	if c.observer != nil {
		for i := 0; i < len(texts)-len(missIdx); i++ {
			c.observer.ObserveEmbeddingCache(true)
		}
		for range missIdx {
			c.observer.ObserveEmbeddingCache(false)
		}
	}
	if len(missIdx) == 0 {
		return out, nil
	}

	fresh, err := c.next.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(fresh), len(missTexts))
	}

	for j, i := range missIdx {
		out[i] = fresh[j]
	}
	// Cache write failures are logged, not returned.
	if err := c.store(missTexts, fresh); err != nil {
		c.logger.Warn("Failed to write embedding cache", zap.Int("vectors", len(fresh)), zap.Error(err))
	}

	c.logger.Debug("Embedding cache updated", zap.Int("hits", len(texts)-len(missIdx)), zap.Int("misses", len(missIdx)))
	return out, nil
}

// store writes vectors through a WriteBatch, which splits them over as many
// transactions as badger needs.
func (c *Cached) store(texts []string, vecs [][]float32) error {
	wb := c.db.NewWriteBatch()
	for i, text := range texts {
		if err := wb.Set(c.key(text), encodeVector(vecs[i])); err != nil {
			wb.Cancel()
			return err
		}
	}
	return wb.Flush()
}

func (c *Cached) key(text string) []byte {
	sum := sha256.Sum256([]byte(text))
	return []byte("emb/" + c.next.Name() + "/" + hex.EncodeToString(sum[:]))
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("corrupt cached embedding of %d bytes", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
