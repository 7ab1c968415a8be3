package main

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("terminal gone") }

func TestBarProgressLogsWriteErrors(t *testing.T) {
	var logs bytes.Buffer
	p := &barProgress{
		w:      failingWriter{},
		logger: slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}
	p.Start(2)
	p.Step("WASP-12 b")
	p.Step("HD 189733 b")
	p.Finish()

	if !strings.Contains(logs.String(), "progress bar") {
		t.Errorf("write failures were not logged: %q", logs.String())
	}
}

func TestBarProgressFinishWithoutStart(t *testing.T) {
	p := &barProgress{w: io.Discard, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	p.Finish()
}
