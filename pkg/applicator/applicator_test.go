package applicator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tarsiersync/forgecode/pkg/filelock"
)

type staticReader struct{ content string }

func (r staticReader) OpenFile(ctx context.Context, fsFilePath string) (string, error) {
	return r.content, nil
}

func sendAll(t *testing.T, ch chan<- string, chunks ...string) {
	t.Helper()
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
}

func TestApplyDirectlyWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.go")

	a := New(filelock.New(), nil, staticReader{content: "a\nb\nc"})
	deltas := make(chan string, 4)
	go sendAll(t, deltas,
		"f.go\n```go\n<<<<<<< SEARCH\nb\n=======\nB\n>>>>>>> REPLACE\n```\n",
	)

	req := Request{FsFilePath: path, CodeToEdit: "a\nb\nc", ApplyDirectly: true}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := a.Apply(ctx, req, deltas)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(result.CodeLines) != 3 || result.CodeLines[1] != "B" {
		t.Fatalf("unexpected code lines: %+v", result.CodeLines)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "a\nB\nc" {
		t.Fatalf("unexpected file content: %q", string(data))
	}
}

func TestApplyReseedsFromFileReaderWhenStreaming(t *testing.T) {
	a := New(filelock.New(), nil, staticReader{content: "x\ny\nz"})
	deltas := make(chan string, 4)
	go sendAll(t, deltas,
		"f.go\n```go\n<<<<<<< SEARCH\ny\n=======\nY\n>>>>>>> REPLACE\n```\n",
	)

	req := Request{FsFilePath: "f.go", CodeToEdit: "stale\ncontent\nhere", ShouldStream: true}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := a.Apply(ctx, req, deltas)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := []string{"x", "Y", "z"}
	for i, w := range want {
		if result.CodeLines[i] != w {
			t.Fatalf("got %#v want %#v", result.CodeLines, want)
		}
	}
}

func TestApplyLocksSerializeSameFile(t *testing.T) {
	locks := filelock.New()
	reader := staticReader{content: "a"}
	a := New(locks, nil, reader)

	release, _, err := locks.Acquire(context.Background(), "busy.go")
	if err != nil {
		t.Fatalf("pre-acquire: %v", err)
	}

	deltas := make(chan string, 4)
	go sendAll(t, deltas,
		"busy.go\n```\n<<<<<<< SEARCH\n=======\nnew\n>>>>>>> REPLACE\n```\n",
	)

	req := Request{FsFilePath: "busy.go", CodeToEdit: "", ShouldStream: true}
	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := a.Apply(ctx, req, deltas); err != nil {
			t.Errorf("Apply: %v", err)
		}
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("apply completed before the pre-held lock was released")
	case <-time.After(50 * time.Millisecond):
	}

	release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("apply never completed after lock release")
	}
}
