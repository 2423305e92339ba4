package tts

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"

	"kokuban/internal/domain/script"
)

// GoogleTTSEngine synthesizes with Google Cloud Text-to-Speech.
// LINEAR16 responses carry a WAV header, so the bytes are stored as is.
type GoogleTTSEngine struct {
	client       *texttospeech.Client
	languageCode string
	defaultVoice string
	mu           sync.Mutex
}

func newGoogleTTSEngine(ctx context.Context, languageCode, voice string) (*GoogleTTSEngine, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS client: %w", err)
	}

	if languageCode == "" {
		languageCode = "ja-JP"
	}

	return &GoogleTTSEngine{
		client:       client,
		languageCode: languageCode,
		defaultVoice: voice,
	}, nil
}

// Version lists voices as a reachability check
func (g *GoogleTTSEngine) Version(ctx context.Context) (string, error) {
	_, err := g.client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{LanguageCode: g.languageCode})
	if err != nil {
		return "", fmt.Errorf("failed to reach Google TTS: %w", err)
	}
	return "google-cloud-tts/v1", nil
}

// Synthesize uses the character's voice name, or the configured default
func (g *GoogleTTSEngine) Synthesize(ctx context.Context, text string, sp script.Speaker) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	voice := sp.Voice
	if voice == "" {
		voice = g.defaultVoice
	}

	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: g.languageCode,
			Name:         voice,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_LINEAR16,
		},
	}

	resp, err := g.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}

	return resp.AudioContent, nil
}

func (g *GoogleTTSEngine) GetAvailableVoices(ctx context.Context) ([]string, error) {
	resp, err := g.client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{LanguageCode: g.languageCode})
	if err != nil {
		return nil, err
	}
	voices := []string{}
	for _, v := range resp.Voices {
		voices = append(voices, v.Name)
	}
	return voices, nil
}

// Close releases the gRPC connection
func (g *GoogleTTSEngine) Close() error {
	return g.client.Close()
}
