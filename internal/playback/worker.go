package playback

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Worker plays messages one at a time from a small buffer. Say never blocks:
// when the buffer is full the message is dropped.
type Worker struct {
	speaker Speaker
	timeout time.Duration
	log     *slog.Logger

	queue   chan string
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	spoken  atomic.Int64
}

func NewWorker(parent context.Context, speaker Speaker, queueSize int, timeout time.Duration, log *slog.Logger) *Worker {
	if queueSize <= 0 {
		queueSize = 4
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(parent)
	w := &Worker{
		speaker: speaker,
		timeout: timeout,
		log:     log.With(slog.String("component", "playback")),
		queue:   make(chan string, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// Say enqueues text and reports whether it was accepted.
func (w *Worker) Say(text string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.queue <- text:
		return true
	default:
		w.dropped.Add(1)
		w.log.Debug("playback queue full, dropping message", slog.String("text", text))
		return false
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for text := range w.queue {
		if w.ctx.Err() != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(w.ctx, w.timeout)
		if err := w.speaker.Speak(ctx, text); err != nil {
			w.log.Debug("playback failed", slog.String("error", err.Error()))
		} else {
			w.spoken.Add(1)
		}
		cancel()
	}
}

// Close stops accepting messages and waits for queued ones to play.
func (w *Worker) Close() {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.queue)
		w.mu.Unlock()
		w.wg.Wait()
		w.cancel()
	})
}

// Abort discards queued messages and interrupts the current one.
func (w *Worker) Abort() {
	w.cancel()
	w.Close()
}

func (w *Worker) Dropped() int64 { return w.dropped.Load() }

func (w *Worker) Spoken() int64 { return w.spoken.Load() }
