// Package loader provides document loading adapters.
package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
)

// ErrUnsupportedFormat is returned for files whose extension no loader handles.
var ErrUnsupportedFormat = errors.New("unsupported document format")

var textExtensions = []string{".txt", ".md", ".markdown"}

// TextLoader loads plain text and Markdown documents.
type TextLoader struct{}

// NewTextLoader creates a new text document loader.
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

// Load reads a text document from the given path.
func (l *TextLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	if !supports(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%s is not valid UTF-8 text", filepath.Base(path))
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	doc := NewDocument(filepath.Base(path), path, string(content))
	doc.CreatedAt = info.ModTime()
	return doc, nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *TextLoader) SupportedExtensions() []string {
	return slices.Clone(textExtensions)
}

// supports reports whether path has a loadable extension.
func supports(path string) bool {
	return slices.Contains(textExtensions, strings.ToLower(filepath.Ext(path)))
}

// NewDocument builds a document from content that did not come from disk, such
// as a URS posted over HTTP. path may be empty, in which case the ID derives from name.
func NewDocument(name, path, content string) *entities.Document {
	id := generateDocID(name)
	if path != "" {
		id = DocumentID(path)
	}
	now := time.Now().UTC()
	return &entities.Document{
		ID:          id,
		Name:        name,
		Path:        path,
		Content:     content,
		ContentHash: ContentHash(content),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ContentHash is the full hex sha256 of content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// DocumentID is the ID of the document stored at path. Relative and absolute
// spellings of the same file give the same ID.
func DocumentID(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return generateDocID(filepath.Clean(path))
}

// generateDocID creates a deterministic ID for a document.
func generateDocID(path string) string {
	hash := sha256.Sum256([]byte(path))
	return hex.EncodeToString(hash[:8])
}
