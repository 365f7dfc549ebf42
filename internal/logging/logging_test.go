package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNew_AddsServiceAndStackOnError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "backy-test", "debug")

	logger.Error("boom", "code", 7)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON log line: %v", err)
	}
	if rec["service"] != "backy-test" {
		t.Errorf("expected service attr, got %v", rec["service"])
	}
	if _, ok := rec["stacktrace"]; !ok {
		t.Error("expected stacktrace on ERROR record")
	}
}

func TestNew_InfoHasNoStack(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "svc", "").Info("hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON log line: %v", err)
	}
	if _, ok := rec["stacktrace"]; ok {
		t.Error("did not expect stacktrace on INFO record")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	if RequestID(ctx) != "" {
		t.Error("expected empty request id")
	}
	ctx = WithRequestID(ctx, "req-1")
	if got := RequestID(ctx); got != "req-1" {
		t.Errorf("expected req-1, got %q", got)
	}
	if got := RequestID(WithRequestID(ctx, "")); got != "req-1" {
		t.Errorf("expected empty id to keep req-1, got %q", got)
	}
}
