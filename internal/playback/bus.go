package playback

import (
	"context"

	"github.com/google/uuid"
	"github.com/loqalabs/loqa-till/internal/bus"
	"github.com/loqalabs/loqa-till/internal/protocol"
)

type busSpeaker struct {
	client  *bus.Client
	voice   string
	target  string
	session string
}

// NewBusSpeaker hands speech to a loqa runtime listening on tts.request.
func NewBusSpeaker(client *bus.Client, voice, target string) Speaker {
	return &busSpeaker{client: client, voice: voice, target: target, session: "till-" + uuid.NewString()}
}

func (b *busSpeaker) Speak(_ context.Context, text string) error {
	return b.client.PublishJSON(protocol.SubjectTTSRequest, protocol.TTSRequest{
		SessionID: b.session,
		Text:      text,
		Voice:     b.voice,
		Target:    b.target,
	})
}
