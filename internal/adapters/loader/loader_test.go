package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestTextLoader_LoadTxtFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.txt")
	os.WriteFile(path, []byte("Hello World"), 0644)

	loader := NewTextLoader()
	doc, err := loader.Load(context.Background(), path)

	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if doc.Content != "Hello World" {
		t.Errorf("unexpected content: %s", doc.Content)
	}
	if doc.Name != "test.txt" {
		t.Errorf("unexpected name: %s", doc.Name)
	}
	if len(doc.ID) != 16 {
		t.Errorf("document ID should be 16 hex chars, got %q", doc.ID)
	}
	// sha256("Hello World")
	if doc.ContentHash != "a591a6d40bf420404a011733cfb7b190d62c65bf0bcda32b57b277d9ad9f146e" {
		t.Errorf("unexpected content hash: %s", doc.ContentHash)
	}
}

func TestTextLoader_Markdown(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"urs.md", "URS.MARKDOWN"} {
		path := filepath.Join(dir, name)
		os.WriteFile(path, []byte("# URS"), 0644)
		doc, err := NewTextLoader().Load(context.Background(), path)
		if err != nil {
			t.Fatalf("%s: load failed: %v", name, err)
		}
		if doc.Content != "# URS" {
			t.Errorf("%s not loaded correctly", name)
		}
	}
}

func TestTextLoader_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "urs.pdf")
	os.WriteFile(path, []byte("%PDF-1.7"), 0644)

	_, err := NewTextLoader().Load(context.Background(), path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestTextLoader_RejectsBinary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.txt")
	os.WriteFile(path, []byte{0xff, 0xfe, 0x00}, 0644)

	if _, err := NewTextLoader().Load(context.Background(), path); err == nil {
		t.Error("should reject invalid UTF-8")
	}
}

func TestTextLoader_SupportedExtensions(t *testing.T) {
	exts := NewTextLoader().SupportedExtensions()
	if len(exts) != 3 {
		t.Fatalf("expected 3 extensions, got %v", exts)
	}
	exts[0] = ".exe"
	if supports("x.exe") {
		t.Error("callers must not be able to mutate the supported list")
	}
}

func TestNewDocument_IDFromName(t *testing.T) {
	a := NewDocument("lims.md", "", "content")
	b := NewDocument("lims.md", "", "other content")
	if a.ID != b.ID {
		t.Error("documents with the same name should share an ID")
	}
	if a.ContentHash == b.ContentHash {
		t.Error("different content should hash differently")
	}
}

func TestLoader_NonexistentFile(t *testing.T) {
	loader := NewTextLoader()
	_, err := loader.Load(context.Background(), "/nonexistent/file.txt")

	if err == nil {
		t.Error("should error on nonexistent file")
	}
}

func TestTextLoader_IDIndependentOfPathSpelling(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sops"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "guide.md"), []byte("# Guide"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	loader := NewTextLoader()
	var ids []string
	for _, path := range []string{"guide.md", "./guide.md", "sops/../guide.md", filepath.Join(dir, "guide.md")} {
		doc, err := loader.Load(context.Background(), path)
		if err != nil {
			t.Fatalf("load %s: %v", path, err)
		}
		ids = append(ids, doc.ID)
	}
	for i, id := range ids[1:] {
		if id != ids[0] {
			t.Errorf("spelling %d gave ID %s, want %s", i+1, id, ids[0])
		}
	}
	if DocumentID("guide.md") != ids[0] {
		t.Error("DocumentID should match the loaded document's ID")
	}
}
