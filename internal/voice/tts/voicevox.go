package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"kokuban/internal/domain/script"
)

// VoicevoxEngine talks to a VOICEVOX engine over its HTTP API
type VoicevoxEngine struct {
	host       string
	httpClient *http.Client
}

// newVoicevoxEngine creates the client. Synthesis of a long line on a CPU
// engine can take minutes, so timeout is usually zero.
func newVoicevoxEngine(host string, timeout time.Duration) *VoicevoxEngine {
	return &VoicevoxEngine{
		host: strings.TrimRight(host, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Version fetches the engine version
func (v *VoicevoxEngine) Version(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.host+"/version", nil)
	if err != nil {
		return "", err
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach VOICEVOX at %s: %w", v.host, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read version response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("VOICEVOX returned status %d for /version", resp.StatusCode)
	}

	return strings.Trim(strings.TrimSpace(string(body)), `"`), nil
}

// Synthesize runs the audio_query then synthesis round trip
func (v *VoicevoxEngine) Synthesize(ctx context.Context, text string, sp script.Speaker) ([]byte, error) {
	query, err := v.audioQuery(ctx, text, sp.ID)
	if err != nil {
		return nil, err
	}

	return v.synthesis(ctx, query, sp.ID)
}

func (v *VoicevoxEngine) audioQuery(ctx context.Context, text string, speakerID int) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("speaker", strconv.Itoa(speakerID))
	params.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.host+"/audio_query?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("audio_query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("audio_query failed: %s", resp.Status)
	}

	var query json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&query); err != nil {
		return nil, fmt.Errorf("failed to decode audio_query response: %w", err)
	}

	return query, nil
}

func (v *VoicevoxEngine) synthesis(ctx context.Context, query json.RawMessage, speakerID int) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/synthesis?speaker=%d", v.host, speakerID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(query))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("synthesis failed: %s", resp.Status)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesis response: %w", err)
	}

	return audio, nil
}

type voicevoxSpeaker struct {
	Name   string `json:"name"`
	Styles []struct {
		Name string `json:"name"`
		ID   int    `json:"id"`
	} `json:"styles"`
}

// GetAvailableVoices lists "speaker/style (id)" for every style
func (v *VoicevoxEngine) GetAvailableVoices(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.host+"/speakers", nil)
	if err != nil {
		return nil, err
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list speakers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("VOICEVOX returned status %d for /speakers", resp.StatusCode)
	}

	var speakers []voicevoxSpeaker
	if err := json.NewDecoder(resp.Body).Decode(&speakers); err != nil {
		return nil, fmt.Errorf("failed to decode speakers: %w", err)
	}

	voices := []string{}
	for _, s := range speakers {
		for _, style := range s.Styles {
			voices = append(voices, fmt.Sprintf("%s/%s (%d)", s.Name, style.Name, style.ID))
		}
	}

	return voices, nil
}
