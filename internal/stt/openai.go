package stt

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/loqalabs/loqa-till/internal/audio"
	"github.com/loqalabs/loqa-till/internal/config"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/net/proxy"
)

type openAIRecognizer struct {
	client   openai.Client
	model    string
	language string
	log      *slog.Logger
}

// NewOpenAIRecognizer transcribes utterances with the OpenAI audio API. When
// cfg.Proxy is set, requests go through that SOCKS5 proxy.
func NewOpenAIRecognizer(cfg config.STTConfig, log *slog.Logger) (Recognizer, error) {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient, err := newHTTPClient(cfg.Proxy, timeout)
	if err != nil {
		return nil, err
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}
	return &openAIRecognizer{
		client:   openai.NewClient(opts...),
		model:    model,
		language: cfg.Language,
		log:      log.With(slog.String("component", "stt.openai")),
	}, nil
}

func newHTTPClient(socksAddr string, timeout time.Duration) (*http.Client, error) {
	if socksAddr == "" {
		return &http.Client{Timeout: timeout}, nil
	}
	dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("socks5 proxy: %w", err)
	}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		},
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

func (r *openAIRecognizer) Recognize(ctx context.Context, sample audio.Sample) (Result, error) {
	file, err := os.CreateTemp("", "loqa_till_*.wav")
	if err != nil {
		return Result{}, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if err := audio.EncodeWAV(file, sample); err != nil {
		return Result{}, err
	}
	data, err := os.ReadFile(file.Name())
	if err != nil {
		return Result{}, fmt.Errorf("read wav: %w", err)
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(data), "utterance.wav", "audio/wav"),
		Model: openai.AudioModel(r.model),
	}
	if r.language != "" {
		params.Language = openai.String(r.language)
	}
	resp, err := r.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return Result{}, fmt.Errorf("openai transcription: %w", err)
	}
	r.log.Debug("transcribed utterance", slog.Int("chars", len(resp.Text)), slog.Duration("audio", sample.Duration()))
	return result(resp.Text, 0), nil
}
