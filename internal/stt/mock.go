package stt

import (
	"context"
	"sync"

	"github.com/loqalabs/loqa-till/internal/audio"
)

type mockRecognizer struct {
	mu     sync.Mutex
	script []string
}

// NewMockRecognizer returns script entries in order. Once the script is
// exhausted (or when none was given) it decodes the label carried by a
// scripted audio sample.
func NewMockRecognizer(script ...string) Recognizer {
	return &mockRecognizer{script: append([]string(nil), script...)}
}

func (m *mockRecognizer) Recognize(_ context.Context, sample audio.Sample) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.script) > 0 {
		text := m.script[0]
		m.script = m.script[1:]
		return result(text, 1), nil
	}
	return result(audio.Label(sample), 1), nil
}
