package tts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"kokuban/internal/domain/script"
	"kokuban/internal/voice/audio"
)

// MockEngine produces silent WAV audio whose length follows the text,
// 100ms per character. It records every call.
type MockEngine struct {
	// Down makes Version fail, as an unreachable engine would
	Down bool
	// Fail maps text to an error returned by Synthesize
	Fail map[string]error

	mu    sync.Mutex
	calls []string
}

func NewMockEngine() *MockEngine {
	return &MockEngine{Fail: map[string]error{}}
}

func (m *MockEngine) Version(ctx context.Context) (string, error) {
	if m.Down {
		return "", errors.New("mock engine is down")
	}
	return "mock", nil
}

func (m *MockEngine) Synthesize(ctx context.Context, text string, sp script.Speaker) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, fmt.Sprintf("%d:%s", sp.ID, text))
	m.mu.Unlock()

	if err, ok := m.Fail[text]; ok {
		return nil, err
	}

	d := time.Duration(utf8.RuneCountInString(text)) * 100 * time.Millisecond
	return audio.SilenceWAV(d, 24000)
}

// Calls returns "speakerID:text" for every Synthesize call so far
func (m *MockEngine) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Reset forgets recorded calls
func (m *MockEngine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *MockEngine) GetAvailableVoices(ctx context.Context) ([]string, error) {
	return []string{"mock-voice"}, nil
}
