package playback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/mattn/go-shellwords"
)

type execSpeaker struct {
	cmd   []string
	voice string
}

type execRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// NewExecSpeaker runs command once per message and writes {"text","voice"}
// to its stdin. The command is expected to play the audio itself.
func NewExecSpeaker(command, voice string) (Speaker, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse playback command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("playback command empty")
	}
	return &execSpeaker{cmd: args, voice: voice}, nil
}

func (e *execSpeaker) Speak(ctx context.Context, text string) error {
	data, err := json.Marshal(execRequest{Text: text, Voice: e.voice})
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("playback command failed: %w: %s", err, stderr.String())
	}
	return nil
}
