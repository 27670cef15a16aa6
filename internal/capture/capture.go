package capture

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/loqalabs/loqa-till/internal/audio"
	"github.com/loqalabs/loqa-till/internal/stt"
)

// Options configure one capture loop.
type Options struct {
	Calibration  time.Duration
	PhraseLimit  time.Duration
	RetryBackoff time.Duration
}

// Capture is the background producer: listen, recognize, publish.
type Capture struct {
	ctx        context.Context
	source     audio.Source
	recognizer stt.Recognizer
	opts       Options
	log        *slog.Logger
	onResult   func(stt.Status)
}

// New builds a capture loop. ctx bounds device and recognizer calls for the
// process lifetime; stopping a listening session does not cancel it.
func New(ctx context.Context, source audio.Source, recognizer stt.Recognizer, opts Options, log *slog.Logger) *Capture {
	if opts.PhraseLimit <= 0 {
		opts.PhraseLimit = 5 * time.Second
	}
	if opts.RetryBackoff < 0 {
		opts.RetryBackoff = 0
	}
	return &Capture{
		ctx:        ctx,
		source:     source,
		recognizer: recognizer,
		opts:       opts,
		log:        log.With(slog.String("component", "capture")),
	}
}

// OnResult registers an observer for recognition outcomes (metrics).
func (c *Capture) OnResult(fn func(stt.Status)) {
	c.onResult = fn
}

// Run calibrates once and then loops until stop is closed. Stop is only
// observed between cycles, so an in-flight listen and recognition finish
// first.
func (c *Capture) Run(stop <-chan struct{}, out *Queue) {
	if err := c.source.Calibrate(c.ctx, c.opts.Calibration); err != nil {
		c.log.Warn("calibration failed", slogError(err))
	}
	for {
		select {
		case <-stop:
			return
		default:
		}
		if c.ctx.Err() != nil {
			return
		}
		if err := c.cycle(out); err != nil {
			out.PushFault(err)
			if !c.backoff(stop) {
				return
			}
		}
	}
}

func (c *Capture) cycle(out *Queue) error {
	sample, err := c.source.Listen(c.ctx, c.opts.PhraseLimit)
	if errors.Is(err, audio.ErrNoSpeech) {
		c.observe(stt.NotUnderstood)
		return nil
	}
	if err != nil {
		if c.ctx.Err() != nil {
			return nil
		}
		c.log.Warn("listen failed", slogError(err))
		return err
	}
	res, err := c.recognizer.Recognize(c.ctx, sample)
	if err != nil {
		if c.ctx.Err() != nil {
			return nil
		}
		c.log.Warn("recognition failed", slogError(err))
		return err
	}
	c.observe(res.Status)
	if res.Status != stt.Recognized {
		return nil
	}
	text := strings.ToLower(strings.TrimSpace(res.Text))
	if text == "" {
		return nil
	}
	c.log.Debug("utterance recognized", slog.String("text", text), slog.Float64("confidence", res.Confidence))
	out.Push(text)
	return nil
}

func (c *Capture) observe(status stt.Status) {
	if c.onResult != nil {
		c.onResult(status)
	}
}

// backoff waits RetryBackoff; it reports false if stop or ctx ended the wait.
func (c *Capture) backoff(stop <-chan struct{}) bool {
	if c.opts.RetryBackoff == 0 {
		return true
	}
	timer := time.NewTimer(c.opts.RetryBackoff)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-stop:
		return false
	case <-c.ctx.Done():
		return false
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
