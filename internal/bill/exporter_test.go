package bill

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/loqalabs/loqa-till/internal/ledger"
	"github.com/shopspring/decimal"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func sampleDoc() Document {
	l := ledger.New()
	l.Append(ledger.NewLineItem("coffee", 2, decimal.NewFromInt(50)))
	l.Append(ledger.NewLineItem("tea", 1, decimal.NewFromInt(30)))
	return NewDocument("ASB Cafeteria", "alice", l.Items(), l.Summary(ledger.TaxPercent, ledger.DiscountPercent),
		time.Date(2025, 6, 1, 13, 4, 5, 0, time.Local))
}

type fakeUploader struct {
	err  error
	keys []string
}

func (f *fakeUploader) Upload(_ context.Context, key, _ string) (string, error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return "", f.err
	}
	return "https://bills.example.com/" + key, nil
}

type fakeOpener struct {
	err    error
	opened string
}

func (f *fakeOpener) Open(_ context.Context, path string) error {
	f.opened = path
	return f.err
}

func TestRenderPDF(t *testing.T) {
	dir := t.TempDir()
	doc := sampleDoc()
	path, err := PDFRenderer{Dir: dir}.Render(doc)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if filepath.Base(path) != "Bill_20250601_130405.pdf" {
		t.Fatalf("unexpected file name %s", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatal("expected a PDF file")
	}
	if doc.Phone != NoPhone || doc.ID == "" {
		t.Fatalf("unexpected document defaults %+v", doc)
	}
}

func TestExportUploadsAndOpens(t *testing.T) {
	up := &fakeUploader{}
	op := &fakeOpener{err: errors.New("no display")}
	exp := NewExporter(PDFRenderer{Dir: t.TempDir()}, up, op, newLogger())

	h, err := exp.Export(context.Background(), sampleDoc())
	if err != nil {
		t.Fatalf("export should ignore opener failure: %v", err)
	}
	if h.URL != "https://bills.example.com/Bill_20250601_130405.pdf" {
		t.Fatalf("unexpected url %q", h.URL)
	}
	if op.opened != h.Path {
		t.Fatalf("expected opener to receive %s, got %s", h.Path, op.opened)
	}
}

func TestExportUploadFailure(t *testing.T) {
	exp := NewExporter(PDFRenderer{Dir: t.TempDir()}, &fakeUploader{err: errors.New("bucket gone")}, nil, newLogger())
	if _, err := exp.Export(context.Background(), sampleDoc()); err == nil {
		t.Fatal("expected upload failure to fail export")
	}
}

func TestExportRenderFailure(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	exp := NewExporter(PDFRenderer{Dir: file}, nil, nil, newLogger())
	if _, err := exp.Export(context.Background(), sampleDoc()); err == nil {
		t.Fatal("expected render failure")
	}
}

func TestCommandOpenerPlaceholder(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "opened")
	op, err := NewCommandOpener("touch %s")
	if err != nil {
		t.Fatal(err)
	}
	if err := op.Open(context.Background(), marker); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("expected placeholder substituted: %v", err)
	}
	if _, err := NewCommandOpener("  "); err == nil {
		t.Fatal("expected empty command error")
	}
}
