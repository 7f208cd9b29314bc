package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherDeliversBurstUnderDebounce(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	evCh, errCh, err := StartWatcher(ctx, WatchConfig{
		Roots:    []string{dir},
		Debounce: time.Millisecond,
	}, nil)
	if err != nil {
		t.Fatalf("start watcher: %v", err)
	}

	const n = 200
	for i := 0; i < n; i++ {
		name := filepath.Join(dir, fmt.Sprintf("scan-%03d.png", i))
		if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got := make(map[string]bool)
	deadline := time.After(10 * time.Second)
	for len(got) < n {
		select {
		case p, ok := <-evCh:
			if !ok {
				t.Fatalf("event channel closed after %d of %d paths", len(got), n)
			}
			got[p] = true
		case err := <-errCh:
			t.Fatalf("watcher error: %v", err)
		case <-deadline:
			t.Fatalf("timed out with %d of %d paths", len(got), n)
		}
	}

	cancel()
	for {
		select {
		case _, ok := <-evCh:
			if !ok {
				return
			}
		case <-time.After(5 * time.Second):
			t.Fatal("event channel not closed after cancel")
		}
	}
}

func TestWatcherInitialScan(t *testing.T) {
	dir := t.TempDir()
	pre := filepath.Join(dir, "existing.pdf")
	if err := os.WriteFile(pre, []byte("pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("t"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	evCh, _, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{dir},
		InitialScan: true,
	}, nil)
	if err != nil {
		t.Fatalf("start watcher: %v", err)
	}

	select {
	case p := <-evCh:
		if p != pre {
			t.Errorf("initial scan emitted %q, want %q", p, pre)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("initial scan emitted nothing")
	}
}

func TestWatcherRequiresRoots(t *testing.T) {
	if _, _, err := StartWatcher(context.Background(), WatchConfig{}, nil); err == nil {
		t.Error("expected error for empty roots")
	}
}
