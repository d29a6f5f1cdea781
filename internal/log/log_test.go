package log

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(component string) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := New(Config{
		Component: component,
		Handler:   slog.NewTextHandler(&buf, nil),
	})
	return logger, &buf
}

func TestNewTagsComponent(t *testing.T) {
	logger, buf := newBufferLogger(ComponentWorker)

	logger.Info("consuming")

	if got := buf.String(); !strings.Contains(got, "component=worker") {
		t.Fatalf("log line missing component tag: %q", got)
	}
	if logger.Component() != ComponentWorker {
		t.Fatalf("Component() = %q, want %q", logger.Component(), ComponentWorker)
	}
}

func TestNewDefaultsToAppComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Handler: slog.NewTextHandler(&buf, nil)})

	logger.Info("starting")

	if got := buf.String(); !strings.Contains(got, "component=app") {
		t.Fatalf("log line missing default component: %q", got)
	}
}

func TestLogTransactionLabeledIncludesRulePattern(t *testing.T) {
	logger, buf := newBufferLogger(ComponentHTTP)
	sl := NewStructuredLogger(logger)

	sl.LogTransactionLabeled(context.Background(), "tx-1", -450, "Coffee", "COFFEE SHOP X")

	got := buf.String()
	for _, want := range []string{
		"Transaction labeled",
		"transaction_id=tx-1",
		"amount_cents=-450",
		"category=Coffee",
		`rule_pattern="COFFEE SHOP X"`,
		"component=http",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("log line missing %q: %q", want, got)
		}
	}
}

func TestLogHTTPEndLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "level=INFO"},
		{404, "level=WARN"},
		{500, "level=ERROR"},
	}
	for _, tt := range tests {
		logger, buf := newBufferLogger(ComponentHTTP)
		sl := NewStructuredLogger(logger)
		r := httptest.NewRequest("GET", "/labeler", nil)

		sl.LogHTTPEnd(context.Background(), r, tt.status, 3, "127.0.0.1")

		if got := buf.String(); !strings.Contains(got, tt.level) {
			t.Errorf("status %d: log line missing %q: %q", tt.status, tt.level, got)
		}
	}
}
