package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

const frameDuration = 20 * time.Millisecond

// MicrophoneOptions tunes the energy-based endpointing. SpeechTimeout bounds
// the wait for speech to start; zero uses the phrase limit passed to Listen.
type MicrophoneOptions struct {
	SampleRate     int
	Channels       int
	Silence        time.Duration
	SpeechTimeout  time.Duration
	ThresholdFloor float64
}

// Microphone records from the default input device. Speech is detected by
// frame RMS against a threshold set during calibration.
type Microphone struct {
	opts      MicrophoneOptions
	log       *slog.Logger
	frameSize int

	mu        sync.Mutex
	threshold float64
}

func OpenMicrophone(opts MicrophoneOptions, log *slog.Logger) (*Microphone, error) {
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	if opts.Channels <= 0 {
		opts.Channels = 1
	}
	if opts.Silence <= 0 {
		opts.Silence = 600 * time.Millisecond
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	return &Microphone{
		opts:      opts,
		log:       log.With(slog.String("component", "microphone")),
		frameSize: int(int64(opts.SampleRate) * int64(frameDuration) / int64(time.Second)),
		threshold: opts.ThresholdFloor,
	}, nil
}

func (m *Microphone) Close() error {
	return portaudio.Terminate()
}

func (m *Microphone) Threshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}

func (m *Microphone) Calibrate(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	buf := make([]float32, m.frameSize*m.opts.Channels)
	stream, err := portaudio.OpenDefaultStream(m.opts.Channels, 0, float64(m.opts.SampleRate), m.frameSize, buf)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		return fmt.Errorf("start input stream: %w", err)
	}
	defer stream.Stop()

	frames := int(d / frameDuration)
	if frames < 1 {
		frames = 1
	}
	var sum float64
	read := 0
	for i := 0; i < frames; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := stream.Read(); err != nil {
			return fmt.Errorf("read input stream: %w", err)
		}
		sum += RMS(buf)
		read++
	}
	ambient := sum / float64(read)
	threshold := ambient * 1.5
	if threshold < m.opts.ThresholdFloor {
		threshold = m.opts.ThresholdFloor
	}

	m.mu.Lock()
	m.threshold = threshold
	m.mu.Unlock()
	m.log.Info("ambient noise calibrated", slog.Float64("ambient_rms", ambient), slog.Float64("threshold", threshold))
	return nil
}

func (m *Microphone) Listen(ctx context.Context, limit time.Duration) (Sample, error) {
	threshold := m.Threshold()
	buf := make([]float32, m.frameSize*m.opts.Channels)
	stream, err := portaudio.OpenDefaultStream(m.opts.Channels, 0, float64(m.opts.SampleRate), m.frameSize, buf)
	if err != nil {
		return Sample{}, fmt.Errorf("open input stream: %w", err)
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		return Sample{}, fmt.Errorf("start input stream: %w", err)
	}
	defer stream.Stop()

	wait := m.opts.SpeechTimeout
	if wait <= 0 {
		wait = limit
	}
	gate := newPhraseGate(threshold, wait, limit, m.opts.Silence)
	out := make([]float32, 0, m.opts.SampleRate*3)

	for {
		if err := ctx.Err(); err != nil {
			return Sample{}, err
		}
		if err := stream.Read(); err != nil {
			return Sample{}, fmt.Errorf("read input stream: %w", err)
		}
		keep, done := gate.feed(RMS(buf))
		if keep {
			out = append(out, buf...)
		}
		if done {
			break
		}
	}
	if !gate.heard() {
		return Sample{}, ErrNoSpeech
	}
	return Sample{PCM: out, SampleRate: m.opts.SampleRate, Channels: m.opts.Channels}, nil
}

// phraseGate endpoints a phrase frame by frame. The phrase limit counts from
// the first frame above threshold; the wait before that is bounded on its own.
type phraseGate struct {
	threshold     float64
	waitFrames    int
	limitFrames   int
	silenceFrames int

	waited int
	spoken int
	quiet  int
}

func newPhraseGate(threshold float64, wait, limit, silence time.Duration) *phraseGate {
	return &phraseGate{
		threshold:     threshold,
		waitFrames:    max(1, int(wait/frameDuration)),
		limitFrames:   max(1, int(limit/frameDuration)),
		silenceFrames: max(1, int(silence/frameDuration)),
	}
}

// feed reports whether the frame belongs to the phrase and whether recording
// should end.
func (g *phraseGate) feed(rms float64) (keep, done bool) {
	loud := rms > g.threshold
	if g.spoken == 0 && !loud {
		g.waited++
		return false, g.waited >= g.waitFrames
	}
	g.spoken++
	if loud {
		g.quiet = 0
	} else {
		g.quiet++
	}
	return true, g.spoken >= g.limitFrames || g.quiet >= g.silenceFrames
}

func (g *phraseGate) heard() bool {
	return g.spoken > 0
}
