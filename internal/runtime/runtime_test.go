package runtime

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/loqalabs/loqa-till/internal/audio"
	"github.com/loqalabs/loqa-till/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenSource(t *testing.T) {
	cfg := config.Default()
	cfg.Capture.Source = "scripted"
	cfg.STT.Script = []string{"2 tea", "name ravi"}

	src, err := New(cfg, newLogger()).openSource()
	if err != nil {
		t.Fatalf("open scripted source: %v", err)
	}
	defer src.Close()
	if s, ok := src.(*audio.Scripted); !ok || s.Remaining() != 2 {
		t.Fatalf("unexpected source %T", src)
	}

	cfg.Capture.Source = "tape"
	if _, err := New(cfg, newLogger()).openSource(); err == nil {
		t.Fatal("expected error for unknown capture source")
	}
}

func TestNewExporterCreatesOutputDir(t *testing.T) {
	cfg := config.Default()
	cfg.Bill.OutputDir = filepath.Join(t.TempDir(), "bills", "today")

	if _, err := New(cfg, newLogger()).newExporter(context.Background()); err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	if info, err := os.Stat(cfg.Bill.OutputDir); err != nil || !info.IsDir() {
		t.Fatalf("output dir not created: %v", err)
	}
}

func TestNewExporterRejectsBadOpenCommand(t *testing.T) {
	cfg := config.Default()
	cfg.Bill.OutputDir = t.TempDir()
	cfg.Bill.OpenCommand = `xdg-open "%s`

	if _, err := New(cfg, newLogger()).newExporter(context.Background()); err == nil {
		t.Fatal("expected error for unterminated quote")
	}
}

func TestReadyFollowsFlag(t *testing.T) {
	rt := New(config.Default(), newLogger())
	if rt.isReady() {
		t.Fatal("ready before start")
	}
	rt.ready.Store(true)
	if !rt.isReady() {
		t.Fatal("not ready with no bus configured")
	}
}

func TestConnectBusDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Bus.Enabled = false

	embedded, client, err := New(cfg, newLogger()).connectBus(context.Background())
	if err != nil || embedded != nil || client != nil {
		t.Fatalf("connectBus = %v, %v, %v", embedded, client, err)
	}
}
