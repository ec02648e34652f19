package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newCaptureLogger() (*bytes.Buffer, ServiceLogger) {
	buf := &bytes.Buffer{}
	handler := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return buf, NewSlogServiceLogger(slog.New(handler))
}

func TestSlogServiceLoggerWritesFields(t *testing.T) {
	buf, logger := newCaptureLogger()

	logger.Info("boot", LogFields{"stream": "vlm:results:stream"})

	out := buf.String()
	if !strings.Contains(out, `"msg":"boot"`) {
		t.Fatalf("expected message in output, got %s", out)
	}
	if !strings.Contains(out, `"stream":"vlm:results:stream"`) {
		t.Fatalf("expected field in output, got %s", out)
	}
}

func TestSlogServiceLoggerWithMergesFields(t *testing.T) {
	buf, logger := newCaptureLogger()

	child := logger.With(LogFields{"component": "reader"})
	child.Debug("step", LogFields{"state": "idle"})

	out := buf.String()
	if !strings.Contains(out, `"component":"reader"`) {
		t.Fatalf("expected base field in output, got %s", out)
	}
	if !strings.Contains(out, `"state":"idle"`) {
		t.Fatalf("expected call field in output, got %s", out)
	}
}

func TestSlogServiceLoggerErrorAttachesError(t *testing.T) {
	buf, logger := newCaptureLogger()

	logger.Error("broadcast failed", errors.New("write timeout"), LogFields{"client_id": "abc"})

	out := buf.String()
	if !strings.Contains(out, `"error":"write timeout"`) {
		t.Fatalf("expected error in output, got %s", out)
	}
	if !strings.Contains(out, `"client_id":"abc"`) {
		t.Fatalf("expected field in output, got %s", out)
	}
}

func TestSlogServiceLoggerWithNilFieldsReturnsSame(t *testing.T) {
	_, logger := newCaptureLogger()
	if child := logger.With(nil); child != logger {
		t.Fatal("expected With(nil) to return the same logger")
	}
}

func TestNewSlogServiceLoggerPanicsOnNil(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when slog logger nil")
		}
	}()
	NewSlogServiceLogger(nil)
}

func TestNopLoggerIsSilent(t *testing.T) {
	logger := NewNopLogger()
	logger.Info("ignored", nil)
	logger.Warn("ignored", LogFields{"k": "v"})
	logger.Error("ignored", errors.New("x"), nil)
	if child := logger.With(LogFields{"k": "v"}); child == nil {
		t.Fatal("expected With to return a logger")
	}
}
