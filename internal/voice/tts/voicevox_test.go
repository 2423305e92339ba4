package tts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kokuban/internal/domain/script"
)

func newFakeVoicevox(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`"0.14.10"`))
	})
	mux.HandleFunc("/audio_query", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Query().Get("text") == "fail" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"speaker": r.URL.Query().Get("speaker"),
			"text":    r.URL.Query().Get("text"),
		})
	})
	mux.HandleFunc("/synthesis", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var query map[string]string
		if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if query["speaker"] != r.URL.Query().Get("speaker") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		io.WriteString(w, "RIFF:"+query["speaker"]+":"+query["text"])
	})
	mux.HandleFunc("/speakers", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"name":"ずんだもん","styles":[{"name":"ノーマル","id":3}]}]`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestVoicevoxVersion(t *testing.T) {
	server := newFakeVoicevox(t)
	engine := newVoicevoxEngine(server.URL+"/", 0)

	version, err := engine.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if version != "0.14.10" {
		t.Errorf("expected 0.14.10, got %q", version)
	}
}

func TestVoicevoxVersionUnreachable(t *testing.T) {
	server := newFakeVoicevox(t)
	url := server.URL
	server.Close()

	if _, err := newVoicevoxEngine(url, 0).Version(context.Background()); err == nil {
		t.Error("expected error for unreachable engine")
	}
}

func TestVoicevoxSynthesize(t *testing.T) {
	server := newFakeVoicevox(t)
	engine := newVoicevoxEngine(server.URL, 0)

	audio, err := engine.Synthesize(context.Background(), "こんにちは なのだ", script.Speaker{ID: 3})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "RIFF:3:こんにちは なのだ" {
		t.Errorf("unexpected audio %q", audio)
	}
}

func TestVoicevoxSynthesizeError(t *testing.T) {
	server := newFakeVoicevox(t)
	engine := newVoicevoxEngine(server.URL, 0)

	_, err := engine.Synthesize(context.Background(), "fail", script.Speaker{ID: 3})
	if err == nil || !strings.Contains(err.Error(), "audio_query failed") {
		t.Errorf("expected audio_query error, got %v", err)
	}
}

func TestVoicevoxVoices(t *testing.T) {
	server := newFakeVoicevox(t)
	voices, err := newVoicevoxEngine(server.URL, 0).GetAvailableVoices(context.Background())
	if err != nil {
		t.Fatalf("GetAvailableVoices: %v", err)
	}
	if len(voices) != 1 || voices[0] != "ずんだもん/ノーマル (3)" {
		t.Errorf("unexpected voices %v", voices)
	}
}

func TestNewEngine(t *testing.T) {
	if _, err := NewEngine(context.Background(), Config{Type: "voicevox"}); err == nil {
		t.Error("expected error without host")
	}
	if _, err := NewEngine(context.Background(), Config{Type: "festival"}); err == nil {
		t.Error("expected error for unknown engine")
	}

	engine, err := NewEngine(context.Background(), Config{Type: "mock"})
	if err != nil {
		t.Fatalf("NewEngine(mock): %v", err)
	}
	if _, ok := engine.(*MockEngine); !ok {
		t.Errorf("expected mock engine, got %T", engine)
	}
}

func TestVoicevoxTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		io.WriteString(w, `"0.14.10"`)
	}))
	t.Cleanup(slow.Close)

	engine, err := NewEngine(context.Background(), Config{Type: "voicevox", Host: slow.URL})
	if err != nil {
		t.Fatal(err)
	}
	if timeout := engine.(*VoicevoxEngine).httpClient.Timeout; timeout != 0 {
		t.Errorf("expected no client timeout by default, got %v", timeout)
	}
	if _, err := engine.Version(context.Background()); err != nil {
		t.Errorf("slow engine without timeout: %v", err)
	}

	if _, err := newVoicevoxEngine(slow.URL, 10*time.Millisecond).Version(context.Background()); err == nil {
		t.Error("expected configured timeout to apply")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := engine.Version(ctx); err == nil {
		t.Error("expected context deadline to apply")
	}
}

func TestParseESpeakVoices(t *testing.T) {
	output := "Pty Language       Age/Gender VoiceName          File                 Other Languages\n" +
		" 5  ja              --/M      Japanese           sit/ja\n" +
		" 5  en              --/M      default            default\n"

	voices := parseESpeakVoices(output)
	if len(voices) != 2 || voices[0] != "Japanese" || voices[1] != "default" {
		t.Errorf("unexpected voices %v", voices)
	}
}
