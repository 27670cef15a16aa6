package audio

import (
	"context"
	"sync"
	"time"
)

// Scripted replays a fixed sequence of listen outcomes, then reports
// ErrNoSpeech after waiting Pause. It stands in for a microphone in tests and
// demos.
type Scripted struct {
	Pause time.Duration

	mu         sync.Mutex
	steps      []ScriptStep
	calibrated int
	sampleRate int
}

// ScriptStep is one Listen outcome. Label travels in the sample so scripted
// recognizers can map it back to text.
type ScriptStep struct {
	Label string
	Err   error
}

func NewScripted(sampleRate int, steps ...ScriptStep) *Scripted {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &Scripted{steps: steps, sampleRate: sampleRate, Pause: 10 * time.Millisecond}
}

// Lines builds one step per label.
func Lines(labels ...string) []ScriptStep {
	steps := make([]ScriptStep, len(labels))
	for i, l := range labels {
		steps[i] = ScriptStep{Label: l}
	}
	return steps
}

func (s *Scripted) Calibrate(context.Context, time.Duration) error {
	s.mu.Lock()
	s.calibrated++
	s.mu.Unlock()
	return nil
}

// Calibrations reports how many times Calibrate ran.
func (s *Scripted) Calibrations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calibrated
}

func (s *Scripted) Listen(ctx context.Context, limit time.Duration) (Sample, error) {
	s.mu.Lock()
	if len(s.steps) > 0 {
		step := s.steps[0]
		s.steps = s.steps[1:]
		s.mu.Unlock()
		if step.Err != nil {
			return Sample{}, step.Err
		}
		return Sample{PCM: encodeLabel(step.Label), SampleRate: s.sampleRate, Channels: 1}, nil
	}
	s.mu.Unlock()

	wait := s.Pause
	if limit > 0 && limit < wait {
		wait = limit
	}
	select {
	case <-ctx.Done():
		return Sample{}, ctx.Err()
	case <-time.After(wait):
	}
	return Sample{}, ErrNoSpeech
}

func (s *Scripted) Close() error { return nil }

// Remaining returns the number of unconsumed steps.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}

func encodeLabel(label string) []float32 {
	pcm := make([]float32, len(label))
	for i, b := range []byte(label) {
		pcm[i] = float32(b) / 255
	}
	return pcm
}

// Label recovers the text carried by a scripted sample.
func Label(s Sample) string {
	b := make([]byte, len(s.PCM))
	for i, v := range s.PCM {
		b[i] = byte(v*255 + 0.5)
	}
	return string(b)
}
