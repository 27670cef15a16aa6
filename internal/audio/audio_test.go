package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
)

func TestRMS(t *testing.T) {
	if RMS(nil) != 0 {
		t.Fatal("expected zero rms for empty frame")
	}
	got := RMS([]float32{0.5, -0.5, 0.5, -0.5})
	if got < 0.4999 || got > 0.5001 {
		t.Fatalf("expected rms 0.5, got %v", got)
	}
}

func TestEncodeWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	s := Sample{PCM: []float32{0, 0.25, -0.25, 1.5}, SampleRate: 16000, Channels: 1}
	if err := EncodeWAV(f, s); err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.Close()

	in, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()
	dec := wav.NewDecoder(in)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.SampleRate != 16000 || len(buf.Data) != 4 {
		t.Fatalf("unexpected wav: rate=%d samples=%d", dec.SampleRate, len(buf.Data))
	}
	if buf.Data[3] != 32767 {
		t.Fatalf("expected clamped sample, got %d", buf.Data[3])
	}
}

func TestScriptedReplaysThenGoesQuiet(t *testing.T) {
	boom := errors.New("device unplugged")
	src := NewScripted(16000, ScriptStep{Label: "2 coffee"}, ScriptStep{Err: boom})
	ctx := context.Background()

	s, err := src.Listen(ctx, time.Second)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if Label(s) != "2 coffee" {
		t.Fatalf("unexpected label %q", Label(s))
	}
	if _, err := src.Listen(ctx, time.Second); !errors.Is(err, boom) {
		t.Fatalf("expected scripted error, got %v", err)
	}
	if _, err := src.Listen(ctx, time.Second); !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("expected ErrNoSpeech once exhausted, got %v", err)
	}
	if src.Remaining() != 0 {
		t.Fatal("expected script consumed")
	}
}

func TestSampleDuration(t *testing.T) {
	s := Sample{PCM: make([]float32, 8000), SampleRate: 16000, Channels: 1}
	if s.Duration() != 500*time.Millisecond {
		t.Fatalf("unexpected duration %v", s.Duration())
	}
}

func TestPhraseGate(t *testing.T) {
	const (
		quiet = 0.01
		loud  = 0.5
	)
	tests := []struct {
		name      string
		waitQuiet int
		loud      int
		wantKept  int
		wantHeard bool
	}{
		{"late speech gets the full phrase limit", 245, 1000, 50, true},
		{"silence ends the phrase", 10, 3, 8, true},
		{"nothing heard before the wait runs out", 1000, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newPhraseGate(0.1, 5*time.Second, time.Second, 100*time.Millisecond)
			frames := make([]float64, 0, tt.waitQuiet+tt.loud+10)
			for i := 0; i < tt.waitQuiet; i++ {
				frames = append(frames, quiet)
			}
			for i := 0; i < tt.loud; i++ {
				frames = append(frames, loud)
			}
			for i := 0; i < 10; i++ {
				frames = append(frames, quiet)
			}

			kept, done := 0, false
			for _, rms := range frames {
				var keep bool
				keep, done = g.feed(rms)
				if keep {
					kept++
				}
				if done {
					break
				}
			}
			if !done {
				t.Fatal("gate never finished")
			}
			if kept != tt.wantKept || g.heard() != tt.wantHeard {
				t.Fatalf("kept=%d heard=%v, want kept=%d heard=%v", kept, g.heard(), tt.wantKept, tt.wantHeard)
			}
		})
	}
}
