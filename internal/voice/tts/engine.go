package tts

import (
	"context"
	"fmt"
	"os"
)

type EngineType string

const (
	EngineTypeMock     EngineType = "mock"
	EngineTypeVoicevox EngineType = "voicevox"
	EngineTypeGoogle   EngineType = "google"
	EngineTypeESpeak   EngineType = "espeak"
	EngineTypeAuto     EngineType = "auto" // Google when credentials exist, else VOICEVOX
)

func (e EngineType) String() string {
	return string(e)
}

// NewEngine creates a TTS engine based on the provided config
func NewEngine(ctx context.Context, config Config) (Engine, error) {
	if config.Type == "" || config.Type == EngineTypeAuto.String() {
		config.Type = getBestEngine().String()
	}

	switch config.Type {
	case EngineTypeMock.String():
		return NewMockEngine(), nil

	case EngineTypeVoicevox.String():
		if config.Host == "" {
			return nil, fmt.Errorf("voicevox engine requires a host")
		}
		return newVoicevoxEngine(config.Host, config.Timeout), nil

	case EngineTypeGoogle.String():
		return newGoogleTTSEngine(ctx, config.LanguageCode, config.Voice)

	case EngineTypeESpeak.String():
		return newESpeakEngine(config.ESpeakVoice)

	default:
		return nil, fmt.Errorf("unsupported TTS engine type: %s", config.Type)
	}
}

// getBestEngine returns the engine used for "auto"
func getBestEngine() EngineType {
	if hasGoogleCredentials() {
		return EngineTypeGoogle
	}
	return EngineTypeVoicevox
}

// GetAvailableEngines returns the engine types usable in this environment
func GetAvailableEngines() []EngineType {
	engines := []EngineType{EngineTypeVoicevox, EngineTypeMock}

	if hasGoogleCredentials() {
		engines = append(engines, EngineTypeGoogle)
	}
	if _, err := findESpeakExecutable(); err == nil {
		engines = append(engines, EngineTypeESpeak)
	}

	return engines
}

// hasGoogleCredentials checks if Google Cloud credentials are available
func hasGoogleCredentials() bool {
	_, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS")
	return ok
}
