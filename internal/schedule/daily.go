// Package schedule implements the daily wrapper around download and
// classification: a stamp file keeps the download to one successful run per
// day, while classification always runs.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// MaxLogSize is the size at which the daily log file gets truncated.
const MaxLogSize = 1 << 20

type Runner struct {
	download  func(ctx context.Context) error
	classify  func(ctx context.Context) error
	stampPath string
	now       func() time.Time
	logger    *slog.Logger
}

func NewRunner(download, classify func(ctx context.Context) error, stampPath string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		download:  download,
		classify:  classify,
		stampPath: stampPath,
		now:       time.Now,
		logger:    logger,
	}
}

// Run executes one daily cycle. The download is skipped when the stamp file
// says it already succeeded today, and the stamp only advances on success, so
// a failed download is retried on the next invocation. Classification runs
// either way to pick up rule file edits.
func (r *Runner) Run(ctx context.Context) error {
	today := r.now().Format("2006-01-02")

	var downloadErr error
	if r.ranOn(today) {
		r.logger.InfoContext(ctx, "Skipping download, already run today.")
	} else if downloadErr = r.download(ctx); downloadErr != nil {
		r.logger.ErrorContext(ctx, "Download failed", "error", downloadErr)
	} else if err := r.touch(today); err != nil {
		r.logger.ErrorContext(ctx, "Failed to write checkpoint", "error", err)
	}

	var classifyErr error
	if classifyErr = r.classify(ctx); classifyErr != nil {
		r.logger.ErrorContext(ctx, "Classification failed", "error", classifyErr)
	}

	return errors.Join(downloadErr, classifyErr)
}

func (r *Runner) ranOn(day string) bool {
	data, err := os.ReadFile(r.stampPath)
	if err != nil {
		return false
	}
	stamped, err := time.Parse("2006-01-02", string(data))
	if err != nil {
		return false
	}
	return stamped.Format("2006-01-02") == day
}

func (r *Runner) touch(day string) error {
	if err := os.MkdirAll(filepath.Dir(r.stampPath), 0755); err != nil {
		return fmt.Errorf("create stamp directory: %w", err)
	}
	if err := os.WriteFile(r.stampPath, []byte(day), 0644); err != nil {
		return fmt.Errorf("write stamp file: %w", err)
	}
	return nil
}

// RotateLog truncates the log file once it reaches maxBytes. A missing file
// is not an error.
func RotateLog(path string, maxBytes int64) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < maxBytes {
		return nil
	}
	if err := os.Truncate(path, 0); err != nil {
		return fmt.Errorf("truncate log file: %w", err)
	}
	return nil
}
