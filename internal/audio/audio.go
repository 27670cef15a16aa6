package audio

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrNoSpeech is returned by Listen when nothing crossed the speech threshold
// within the phrase limit.
var ErrNoSpeech = errors.New("no speech detected")

// Sample is a mono or interleaved float32 PCM buffer in [-1, 1].
type Sample struct {
	PCM        []float32
	SampleRate int
	Channels   int
}

func (s Sample) Duration() time.Duration {
	if s.SampleRate <= 0 || s.Channels <= 0 {
		return 0
	}
	frames := len(s.PCM) / s.Channels
	return time.Duration(frames) * time.Second / time.Duration(s.SampleRate)
}

// Source acquires utterances from an input device.
type Source interface {
	// Calibrate samples ambient noise for d to set the speech threshold.
	Calibrate(ctx context.Context, d time.Duration) error
	// Listen blocks until one utterance is captured or limit elapses.
	Listen(ctx context.Context, limit time.Duration) (Sample, error)
	Close() error
}

// RMS returns the root mean square of a frame.
func RMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}

// Int16 converts float PCM to signed 16-bit samples, clamping out-of-range
// values.
func Int16(pcm []float32) []int {
	out := make([]int, len(pcm))
	for i, v := range pcm {
		x := float64(v)
		if x > 1 {
			x = 1
		} else if x < -1 {
			x = -1
		}
		out[i] = int(math.Round(x * 32767))
	}
	return out
}
