package audio

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV writes the sample as 16-bit PCM WAV.
func EncodeWAV(w io.WriteSeeker, s Sample) error {
	channels := s.Channels
	if channels <= 0 {
		channels = 1
	}
	if s.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", s.SampleRate)
	}
	buffer := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: s.SampleRate},
		Data:           Int16(s.PCM),
		SourceBitDepth: 16,
	}
	enc := wav.NewEncoder(w, s.SampleRate, 16, channels, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
