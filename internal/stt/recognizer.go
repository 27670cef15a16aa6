package stt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loqalabs/loqa-till/internal/audio"
	"github.com/loqalabs/loqa-till/internal/config"
)

// Status distinguishes a usable transcript from a clean "nothing understood".
type Status int

const (
	NotUnderstood Status = iota
	Recognized
)

func (s Status) String() string {
	if s == Recognized {
		return "recognized"
	}
	return "not_understood"
}

// Result captures recognizer output.
type Result struct {
	Status     Status
	Text       string
	Confidence float64
}

// Recognizer abstracts STT backends. A backend returns NotUnderstood (not an
// error) when the audio contained no intelligible speech.
type Recognizer interface {
	Recognize(ctx context.Context, sample audio.Sample) (Result, error)
}

// result normalizes backend text; empty text is NotUnderstood.
func result(text string, confidence float64) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Status: NotUnderstood}
	}
	return Result{Status: Recognized, Text: text, Confidence: confidence}
}

// New builds the recognizer selected by cfg.Mode.
func New(cfg config.STTConfig, log *slog.Logger) (Recognizer, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockRecognizer(cfg.Script...), nil
	case "exec":
		return NewExecRecognizer(cfg)
	case "openai":
		return NewOpenAIRecognizer(cfg, log)
	default:
		return nil, fmt.Errorf("unknown stt mode %q", cfg.Mode)
	}
}
