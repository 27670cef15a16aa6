package playback

import (
	"context"
	"fmt"

	"github.com/loqalabs/loqa-till/internal/bus"
	"github.com/loqalabs/loqa-till/internal/config"
)

// Speaker voices a short confirmation. Implementations may block until
// playback finishes.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

type noopSpeaker struct{}

func (noopSpeaker) Speak(context.Context, string) error { return nil }

// NewSpeaker builds the backend selected by cfg.Mode.
func NewSpeaker(cfg config.PlaybackConfig, busClient *bus.Client) (Speaker, error) {
	if !cfg.Enabled {
		return noopSpeaker{}, nil
	}
	switch cfg.Mode {
	case "noop", "":
		return noopSpeaker{}, nil
	case "exec":
		return NewExecSpeaker(cfg.Command, cfg.Voice)
	case "bus":
		if busClient == nil {
			return nil, fmt.Errorf("playback mode bus requires a bus connection")
		}
		return NewBusSpeaker(busClient, cfg.Voice, cfg.Target), nil
	default:
		return nil, fmt.Errorf("unknown playback mode %q", cfg.Mode)
	}
}
