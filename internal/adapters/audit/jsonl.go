// Package audit provides the append-only, hash-chained audit trail.
//
// Each line of the log is one JSON record. A record's hash is the sha256 of
// its JSON encoding with the hash field empty, and every record carries the
// hash of the record before it, so editing or removing any line breaks the
// chain from that point on.
package audit

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
)

// GenesisHash is the PrevHash of the first record.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

const logFileMode = 0o600

// ErrBrokenChain is returned when an existing log fails verification.
var ErrBrokenChain = errors.New("audit chain is broken")

// JSONLLog implements ports.AuditLog on a JSONL file.
type JSONLLog struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	prevHash string
	count    int
	logger   *zap.Logger
}

// Open opens or creates the log at path, creating its directory. An existing
// log is verified first; a broken chain is refused rather than extended.
func Open(path string, logger *zap.Logger) (*JSONLLog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}

	res, err := Verify(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if !res.Valid {
		return nil, fmt.Errorf("%w at record %d: %s", ErrBrokenChain, res.BrokenAt, res.Reason)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, logFileMode)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}

	l := &JSONLLog{
		file:     file,
		path:     path,
		prevHash: res.LastHash,
		count:    res.Records,
		logger:   logger.With(zap.String("component", "audit")),
	}
	l.logger.Debug("Audit log opened", zap.String("path", path), zap.Int("records", res.Records))
	return l, nil
}

// Append chains rec onto the log and syncs it to disk.
func (l *JSONLLog) Append(ctx context.Context, rec entities.AuditRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return errors.New("audit log is closed")
	}

	rec.PrevHash = l.prevHash
	hash, err := recordHash(rec)
	if err != nil {
		return err
	}
	rec.Hash = hash

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding audit record: %w", err)
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("writing audit record: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("syncing audit log: %w", err)
	}

	l.prevHash = hash
	l.count++
	return nil
}

// Path returns the log file path.
func (l *JSONLLog) Path() string {
	return l.path
}

// Close closes the log file.
func (l *JSONLLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// VerifyResult describes the state of a log.
type VerifyResult struct {
	Valid    bool
	Records  int
	BrokenAt int // 1-based line of the first bad record, 0 when valid
	Reason   string
	LastHash string
}

// Verify recomputes the chain of the log at path. A missing file returns an
// empty valid result together with an error wrapping os.ErrNotExist.
func Verify(path string) (VerifyResult, error) {
	res := VerifyResult{Valid: true, LastHash: GenesisHash}

	f, err := os.Open(path)
	if err != nil {
		return res, err
	}
	defer f.Close()

	return verifyReader(f)
}

func verifyReader(r io.Reader) (VerifyResult, error) {
	res := VerifyResult{Valid: true, LastHash: GenesisHash}
	fail := func(line int, reason string) (VerifyResult, error) {
		res.Valid = false
		res.BrokenAt = line
		res.Reason = reason
		return res, nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		var rec entities.AuditRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return fail(line, "not a JSON record")
		}
		if rec.PrevHash != res.LastHash {
			return fail(line, "prev_hash does not match the previous record")
		}
		want, err := recordHash(rec)
		if err != nil {
			return res, err
		}
		if want != rec.Hash {
			return fail(line, "hash does not match record content")
		}
		res.LastHash = rec.Hash
		res.Records++
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("reading audit log: %w", err)
	}
	return res, nil
}

// recordHash is the hex sha256 of rec's JSON with Hash cleared.
func recordHash(rec entities.AuditRecord) (string, error) {
	rec.Hash = ""
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encoding audit record: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
