package schedule

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type callCounter struct {
	calls int
	err   error
}

func (c *callCounter) run(context.Context) error {
	c.calls++
	return c.err
}

func newTestRunner(t *testing.T, download, classify *callCounter) *Runner {
	t.Helper()
	r := NewRunner(download.run, classify.run, filepath.Join(t.TempDir(), "stamp"), nil)
	r.now = func() time.Time { return time.Date(2024, 3, 15, 6, 0, 0, 0, time.UTC) }
	return r
}

func TestRunDownloadsThenClassifies(t *testing.T) {
	download, classify := &callCounter{}, &callCounter{}
	r := newTestRunner(t, download, classify)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if download.calls != 1 {
		t.Errorf("download calls = %d, want 1", download.calls)
	}
	if classify.calls != 1 {
		t.Errorf("classify calls = %d, want 1", classify.calls)
	}
}

func TestRunSkipsSecondDownloadSameDay(t *testing.T) {
	download, classify := &callCounter{}, &callCounter{}
	r := newTestRunner(t, download, classify)
	ctx := context.Background()

	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := r.Run(ctx); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if download.calls != 1 {
		t.Errorf("download calls = %d, want 1 after same-day rerun", download.calls)
	}
	if classify.calls != 2 {
		t.Errorf("classify calls = %d, classification must run every time", classify.calls)
	}
}

func TestRunLogsSkipLine(t *testing.T) {
	download, classify := &callCounter{}, &callCounter{}
	var buf bytes.Buffer
	r := NewRunner(download.run, classify.run, filepath.Join(t.TempDir(), "stamp"),
		slog.New(slog.NewTextHandler(&buf, nil)))
	r.now = func() time.Time { return time.Date(2024, 3, 15, 6, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.Contains(buf.String(), "Skipping download") {
		t.Fatal("first run logged a skip line")
	}

	buf.Reset()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Skipping download, already run today.") {
		t.Fatalf("same-day rerun log missing the skip line: %q", buf.String())
	}
}

func TestRunRetriesNextDay(t *testing.T) {
	download, classify := &callCounter{}, &callCounter{}
	r := newTestRunner(t, download, classify)
	ctx := context.Background()

	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	r.now = func() time.Time { return time.Date(2024, 3, 16, 6, 0, 0, 0, time.UTC) }
	if err := r.Run(ctx); err != nil {
		t.Fatalf("next-day Run() error = %v", err)
	}
	if download.calls != 2 {
		t.Errorf("download calls = %d, want 2 across two days", download.calls)
	}
}

func TestRunFailedDownloadDoesNotAdvanceStamp(t *testing.T) {
	download := &callCounter{err: errors.New("bank unreachable")}
	classify := &callCounter{}
	r := newTestRunner(t, download, classify)
	ctx := context.Background()

	if err := r.Run(ctx); err == nil {
		t.Fatal("Run() error = nil, want download error")
	}
	if classify.calls != 1 {
		t.Errorf("classify calls = %d, classification must run after a failed download", classify.calls)
	}

	download.err = nil
	if err := r.Run(ctx); err != nil {
		t.Fatalf("retry Run() error = %v", err)
	}
	if download.calls != 2 {
		t.Errorf("download calls = %d, failed run must not set the checkpoint", download.calls)
	}
}

func TestRotateLog(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		if err := RotateLog(filepath.Join(dir, "absent.log"), MaxLogSize); err != nil {
			t.Errorf("RotateLog() error = %v", err)
		}
	})

	t.Run("small file untouched", func(t *testing.T) {
		path := filepath.Join(dir, "small.log")
		if err := os.WriteFile(path, []byte("short"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := RotateLog(path, MaxLogSize); err != nil {
			t.Fatalf("RotateLog() error = %v", err)
		}
		data, _ := os.ReadFile(path)
		if string(data) != "short" {
			t.Errorf("small log was modified: %q", data)
		}
	})

	t.Run("large file truncated", func(t *testing.T) {
		path := filepath.Join(dir, "large.log")
		if err := os.WriteFile(path, bytes.Repeat([]byte("x"), MaxLogSize+1), 0644); err != nil {
			t.Fatal(err)
		}
		if err := RotateLog(path, MaxLogSize); err != nil {
			t.Fatalf("RotateLog() error = %v", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Size() != 0 {
			t.Errorf("log size after rotate = %d, want 0", info.Size())
		}
	})
}
