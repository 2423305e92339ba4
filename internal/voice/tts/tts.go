package tts

import (
	"context"
	"time"

	"kokuban/internal/domain/script"
)

type Config struct {
	Type string

	// VOICEVOX engine base URL
	Host string
	// Timeout bounds one VOICEVOX request; zero leaves it to ctx
	Timeout time.Duration

	// Google Cloud voice selection
	LanguageCode string
	Voice        string

	// eSpeak voice
	ESpeakVoice string
}

// Engine synthesizes speech into audio file bytes
type Engine interface {
	// Version probes the backend; an error means it cannot be reached
	Version(ctx context.Context) (string, error)
	// Synthesize returns WAV bytes for text spoken by sp
	Synthesize(ctx context.Context, text string, sp script.Speaker) ([]byte, error)
}

// VoiceLister is implemented by engines that can enumerate voices
type VoiceLister interface {
	GetAvailableVoices(ctx context.Context) ([]string, error)
}
