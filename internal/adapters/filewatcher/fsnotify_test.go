package filewatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/0xcro3dile/oqgen/internal/domain/ports"
)

func TestFSNotifyWatcher_Creation(t *testing.T) {
	watcher, err := NewFSNotifyWatcher([]string{".txt", ".MD"}, 0, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer watcher.Stop()

	if !watcher.isWatchedExtension("urs.md") || !watcher.isWatchedExtension("URS.TXT") {
		t.Error("extension matching should be case-insensitive")
	}
}

func TestFSNotifyWatcher_DefaultExtensions(t *testing.T) {
	watcher, _ := NewFSNotifyWatcher(nil, 0, nil)
	defer watcher.Stop()

	if len(watcher.extensions) != 3 {
		t.Errorf("expected 3 default extensions, got %d", len(watcher.extensions))
	}
	if watcher.isWatchedExtension("scan.pdf") {
		t.Error("pdf is not a URS format")
	}
}

func TestFSNotifyWatcher_WatchDirectory(t *testing.T) {
	dir := t.TempDir()

	watcher, _ := NewFSNotifyWatcher([]string{".txt"}, 0, nil)
	defer watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events, err := watcher.Watch(ctx, dir)
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		os.WriteFile(filepath.Join(dir, "test.txt"), []byte("hi"), 0644)
	}()

	select {
	case event := <-events:
		if event.Operation != ports.FileCreated {
			t.Errorf("expected create event, got %v", event.Operation)
		}
	case <-ctx.Done():
		t.Error("timeout waiting for event")
	}
}

func TestFSNotifyWatcher_DebounceCoalesces(t *testing.T) {
	dir := t.TempDir()

	watcher, _ := NewFSNotifyWatcher([]string{".md"}, 200*time.Millisecond, nil)
	defer watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	events, err := watcher.Watch(ctx, dir)
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	path := filepath.Join(dir, "urs.md")
	os.WriteFile(path, []byte("URS-001: one"), 0644)
	f, _ := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	f.WriteString("\nURS-002: two")
	f.Close()

	select {
	case event := <-events:
		if event.Path != path || event.Operation != ports.FileCreated {
			t.Errorf("expected one create event for %s, got %+v", path, event)
		}
	case <-ctx.Done():
		t.Fatal("timeout waiting for event")
	}

	select {
	case event := <-events:
		t.Errorf("burst should be coalesced, got extra %+v", event)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestFSNotifyWatcher_FiltersByExtension(t *testing.T) {
	dir := t.TempDir()

	watcher, _ := NewFSNotifyWatcher([]string{".txt"}, 0, nil)
	defer watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	events, _ := watcher.Watch(ctx, dir)

	os.WriteFile(filepath.Join(dir, "test.json"), []byte("{}"), 0644)

	select {
	case <-events:
		t.Error("should not receive event for .json")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestMergeOp(t *testing.T) {
	if got := mergeOp(pendingEvent{}, ports.FileModified); got != ports.FileModified {
		t.Errorf("first event should pass through, got %v", got)
	}
	created := pendingEvent{op: ports.FileCreated, last: time.Now()}
	if got := mergeOp(created, ports.FileModified); got != ports.FileCreated {
		t.Errorf("create+write should stay created, got %v", got)
	}
	if got := mergeOp(created, ports.FileDeleted); got != ports.FileDeleted {
		t.Errorf("delete should win, got %v", got)
	}
}

func TestFSNotifyWatcher_Stop(t *testing.T) {
	watcher, _ := NewFSNotifyWatcher(nil, 0, nil)
	err := watcher.Stop()
	if err != nil {
		t.Errorf("stop failed: %v", err)
	}
}
