package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"kokuban/internal/domain/script"
)

// ESpeakEngine renders speech with eSpeak/eSpeak-NG to WAV on stdout. It
// works offline, which suits drafts without a VOICEVOX engine.
type ESpeakEngine struct {
	path  string
	voice string
}

// newESpeakEngine creates a new eSpeak TTS engine
func newESpeakEngine(voice string) (*ESpeakEngine, error) {
	espeakPath, err := findESpeakExecutable()
	if err != nil {
		return nil, fmt.Errorf("eSpeak not found: %w", err)
	}

	return &ESpeakEngine{path: espeakPath, voice: voice}, nil
}

func findESpeakExecutable() (string, error) {
	candidates := []string{"espeak-ng", "espeak"}

	for _, candidate := range candidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("eSpeak executable not found in PATH")
}

func (e *ESpeakEngine) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, e.path, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("eSpeak test failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Synthesize uses the character's voice name when set; pitch is varied by
// speaker id so characters sharing a voice stay distinguishable
func (e *ESpeakEngine) Synthesize(ctx context.Context, text string, sp script.Speaker) ([]byte, error) {
	args := []string{"--stdout"}

	voice := sp.Voice
	if voice == "" {
		voice = e.voice
	}
	if voice != "" && voice != "default" {
		args = append(args, "-v", voice)
	}

	args = append(args, "-p", fmt.Sprintf("%d", 30+(sp.ID*10)%70))
	args = append(args, text)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.path, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("eSpeak failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return out, nil
}

func (e *ESpeakEngine) GetAvailableVoices(ctx context.Context) ([]string, error) {
	output, err := exec.CommandContext(ctx, e.path, "--voices").Output()
	if err != nil {
		return nil, err
	}

	return parseESpeakVoices(string(output)), nil
}

func parseESpeakVoices(output string) []string {
	lines := strings.Split(output, "\n")
	voices := make([]string, 0)

	for i, line := range lines {
		// Skip header line
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}

		// Pty Language Age/Gender VoiceName File Other Languages
		fields := strings.Fields(line)
		if len(fields) >= 4 {
			voices = append(voices, fields[3])
		}
	}

	return voices
}
