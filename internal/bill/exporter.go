package bill

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/loqalabs/loqa-till/internal/bill")

// Opener shows an exported bill to the operator.
type Opener interface {
	Open(ctx context.Context, path string) error
}

type commandOpener struct {
	args []string
}

// NewCommandOpener parses a command such as "xdg-open %s". The path replaces
// %s, or is appended when the command has no placeholder.
func NewCommandOpener(command string) (Opener, error) {
	args, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse open command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("open command empty")
	}
	return &commandOpener{args: args}, nil
}

func (o *commandOpener) Open(ctx context.Context, path string) error {
	args := make([]string, 0, len(o.args)+1)
	placed := false
	for _, a := range o.args {
		if strings.Contains(a, "%s") {
			a = strings.ReplaceAll(a, "%s", path)
			placed = true
		}
		args = append(args, a)
	}
	if !placed {
		args = append(args, path)
	}
	return exec.CommandContext(ctx, args[0], args[1:]...).Run()
}

// Exporter renders a bill, then optionally uploads and opens it.
type Exporter struct {
	renderer Renderer
	uploader Uploader
	opener   Opener
	log      *slog.Logger
}

func NewExporter(renderer Renderer, uploader Uploader, opener Opener, log *slog.Logger) *Exporter {
	return &Exporter{
		renderer: renderer,
		uploader: uploader,
		opener:   opener,
		log:      log.With(slog.String("component", "bill")),
	}
}

// Export fails only if rendering or uploading fails. A failure to open the
// file is logged.
func (e *Exporter) Export(ctx context.Context, doc Document) (Handle, error) {
	ctx, span := tracer.Start(ctx, "bill.export", trace.WithAttributes(
		attribute.String("bill.id", doc.ID),
		attribute.Int("bill.lines", len(doc.Items)),
	))
	defer span.End()

	path, err := e.renderer.Render(doc)
	if err != nil {
		span.SetStatus(codes.Error, "render failed")
		return Handle{}, fmt.Errorf("render bill: %w", err)
	}
	h := Handle{ID: doc.ID, Path: path}

	if e.uploader != nil {
		url, err := e.uploader.Upload(ctx, filepath.Base(path), path)
		if err != nil {
			span.SetStatus(codes.Error, "upload failed")
			return Handle{}, fmt.Errorf("upload bill: %w", err)
		}
		h.URL = url
	}

	if e.opener != nil {
		if err := e.opener.Open(ctx, path); err != nil {
			e.log.Warn("failed to open bill", slog.String("path", path), slogError(err))
		}
	}
	e.log.Info("bill exported", slog.String("id", doc.ID), slog.String("path", path), slog.Int("lines", len(doc.Items)))
	return h, nil
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
