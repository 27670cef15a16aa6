package stt

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/loqalabs/loqa-till/internal/audio"
	"github.com/loqalabs/loqa-till/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestMockRecognizerScriptThenLabels(t *testing.T) {
	rec := NewMockRecognizer("name alice", "  ")
	ctx := context.Background()

	res, err := rec.Recognize(ctx, audio.Sample{})
	if err != nil || res.Status != Recognized || res.Text != "name alice" {
		t.Fatalf("unexpected first result %+v err=%v", res, err)
	}
	res, _ = rec.Recognize(ctx, audio.Sample{})
	if res.Status != NotUnderstood {
		t.Fatalf("blank text should be not understood, got %+v", res)
	}

	src := audio.NewScripted(16000, audio.Lines("3 tea")...)
	sample, err := src.Listen(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	res, _ = rec.Recognize(ctx, sample)
	if res.Text != "3 tea" {
		t.Fatalf("expected label text, got %+v", res)
	}
}

func TestNewRejectsUnknownMode(t *testing.T) {
	if _, err := New(config.STTConfig{Mode: "carrier-pigeon"}, newLogger()); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestExecRecognizer(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script test")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-whisper.sh")
	body := "#!/bin/sh\n" +
		"for a in \"$@\"; do if [ \"$prev\" = \"--audio\" ]; then test -s \"$a\" || exit 3; fi; prev=$a; done\n" +
		"echo '{\"text\":\" Two Coffee \",\"confidence\":0.9}'\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}

	rec, err := NewExecRecognizer(config.STTConfig{Mode: "exec", Command: script, Language: "en"})
	if err != nil {
		t.Fatalf("new exec recognizer: %v", err)
	}
	res, err := rec.Recognize(context.Background(), audio.Sample{PCM: make([]float32, 160), SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if res.Status != Recognized || res.Text != "Two Coffee" || res.Confidence != 0.9 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestExecRecognizerFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script test")
	}
	rec, err := NewExecRecognizer(config.STTConfig{Mode: "exec", Command: "false"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rec.Recognize(context.Background(), audio.Sample{PCM: []float32{0}, SampleRate: 16000, Channels: 1}); err == nil {
		t.Fatal("expected command failure")
	}
}
