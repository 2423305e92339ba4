package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"kokuban/internal/config"
	"kokuban/internal/domain/script"
	"kokuban/internal/domain/settings"
	"kokuban/internal/store"
	"kokuban/internal/voice/generator"
)

type fakePipeline struct {
	generateErr error
	buildOutput string
	// release, when set, holds every GenerateVoices call until closed
	release chan struct{}

	mu        sync.Mutex
	forced    []bool
	active    int
	maxActive int
	calls     int
}

func (f *fakePipeline) GenerateVoices(ctx context.Context, opts generator.Options) (*generator.Report, error) {
	f.mu.Lock()
	f.forced = append(f.forced, opts.ForceAll)
	f.calls++
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	release, generateErr := f.release, f.generateErr
	f.mu.Unlock()

	if release != nil {
		<-release
	}

	f.mu.Lock()
	f.active--
	f.mu.Unlock()

	if generateErr != nil {
		return nil, generateErr
	}
	return &generator.Report{Generated: 2, Skipped: 1}, nil
}

func (f *fakePipeline) counts() (calls, active, maxActive int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.active, f.maxActive
}

func (f *fakePipeline) BuildVideo(ctx context.Context) (string, error) {
	return f.buildOutput, nil
}

func (f *fakePipeline) Version(ctx context.Context) (string, error) {
	return "0.14.10", nil
}

func writeFixture(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *fakePipeline, config.Paths) {
	t.Helper()
	return newTestServerWith(t, &fakePipeline{buildOutput: "rendered"}, false)
}

func newTestServerWith(t *testing.T, pipeline *fakePipeline, voiceOnSave bool) (*httptest.Server, *fakePipeline, config.Paths) {
	t.Helper()
	root := t.TempDir()

	writeFixture(t, root, "config/script.yaml", `- id: 1
  character: zundamon
  text: こんにちは
  scene: 1
- id: 2
  character: metan
  text: やっほー
  scene: 1
  pauseAfter: 15
`)
	writeFixture(t, root, "config/characters.yaml", `zundamon:
  name: ずんだもん
  speakerId: 3
metan:
  name: 四国めたん
  speakerId: 2
`)
	writeFixture(t, root, "public/voices/durations.json", `{"01_zundamon.wav": 53, "02_metan.wav": 44}`)
	writeFixture(t, root, "public/images/zundamon/mouth_open.png", "png")
	writeFixture(t, root, "public/images/zundamon/mouth_close.png", "png")
	writeFixture(t, root, "public/images/zundamon/happy_open.png", "png")
	writeFixture(t, root, "public/images/zundamon/happy_close.png", "png")
	writeFixture(t, root, "public/images/metan/mouth_open.png", "png")

	paths := config.Paths{
		Root:       root,
		Script:     "config/script.yaml",
		Characters: "config/characters.yaml",
		Defaults:   "config/defaults.yaml",
		Settings:   "video-settings.yaml",
		Public:     "public",
		Voices:     "public/voices",
		Images:     "public/images",
		Generated:  "generated",
	}

	srv, err := NewServer(context.Background(), Options{
		Paths:       paths,
		Pipeline:    pipeline,
		Engine:      pipeline,
		Scripts:     store.NewScriptStore(paths.ScriptFile(), script.DefaultDefaults()),
		Settings:    store.NewSettingsStore(paths.SettingsFile()),
		VoiceOnSave: voiceOnSave,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, pipeline, paths
}

func doJSON(t *testing.T, method, url string, body interface{}, out interface{}) int {
	t.Helper()

	var reader *bytes.Reader
	if s, ok := body.(string); ok {
		reader = bytes.NewReader([]byte(s))
	} else if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts, _, _ := newTestServer(t)

	var body map[string]interface{}
	if status := doJSON(t, http.MethodGet, ts.URL+"/api/health", nil, &body); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body["status"] != "ok" {
		t.Errorf("unexpected body %v", body)
	}

	if status := doJSON(t, http.MethodGet, ts.URL+"/api/ready", nil, &body); status != http.StatusOK {
		t.Errorf("ready status = %d", status)
	}
}

func TestScriptList(t *testing.T) {
	ts, _, _ := newTestServer(t)

	var lines []script.Line
	if status := doJSON(t, http.MethodGet, ts.URL+"/api/script", nil, &lines); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].VoiceFile != "01_zundamon.wav" || lines[0].DurationInFrames != 53 || lines[0].Pause() != 15 {
		t.Errorf("line not resolved: %+v", lines[0])
	}
}

func TestScriptCRUD(t *testing.T) {
	ts, _, _ := newTestServer(t)
	base := ts.URL + "/api/script"

	var created script.Line
	status := doJSON(t, http.MethodPost, base, map[string]interface{}{"character": "metan", "text": "追加のセリフ"}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d", status)
	}
	if created.ID != 3 || created.VoiceFile != "03_metan.wav" {
		t.Errorf("unexpected created line %+v", created)
	}

	var updated script.Line
	status = doJSON(t, http.MethodPut, fmt.Sprintf("%s/%d", base, created.ID), map[string]interface{}{"text": "修正したセリフ", "id": 99}, &updated)
	if status != http.StatusOK {
		t.Fatalf("update status = %d", status)
	}
	if updated.ID != 3 || updated.Text != "修正したセリフ" || updated.Character != "metan" {
		t.Errorf("unexpected updated line %+v", updated)
	}

	var got script.Line
	if status := doJSON(t, http.MethodGet, base+"/3", nil, &got); status != http.StatusOK || got.Text != "修正したセリフ" {
		t.Errorf("get status = %d, line %+v", status, got)
	}

	if status := doJSON(t, http.MethodDelete, base+"/3", nil, nil); status != http.StatusNoContent {
		t.Errorf("delete status = %d", status)
	}
	if status := doJSON(t, http.MethodGet, base+"/3", nil, nil); status != http.StatusNotFound {
		t.Errorf("get after delete status = %d", status)
	}
}

func TestScriptErrors(t *testing.T) {
	ts, _, _ := newTestServer(t)
	base := ts.URL + "/api/script"

	tests := []struct {
		name   string
		method string
		url    string
		body   interface{}
		want   int
	}{
		{"unknown line", http.MethodGet, base + "/42", nil, http.StatusNotFound},
		{"bad id", http.MethodGet, base + "/abc", nil, http.StatusBadRequest},
		{"update unknown", http.MethodPut, base + "/42", map[string]string{"text": "x"}, http.StatusNotFound},
		{"delete unknown", http.MethodDelete, base + "/42", nil, http.StatusNotFound},
		{"invalid body", http.MethodPost, base, "{oops", http.StatusBadRequest},
		{"negative pause", http.MethodPut, base + "/1", map[string]int{"pauseAfter": -1}, http.StatusBadRequest},
		{"reorder without array", http.MethodPut, base + "/reorder", map[string]string{"ids": "1,2"}, http.StatusBadRequest},
		{"reorder without ids", http.MethodPut, base + "/reorder", map[string]string{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if status := doJSON(t, tt.method, tt.url, tt.body, nil); status != tt.want {
				t.Errorf("status = %d, want %d", status, tt.want)
			}
		})
	}
}

func TestScriptReorder(t *testing.T) {
	ts, _, _ := newTestServer(t)

	var lines []script.Line
	status := doJSON(t, http.MethodPut, ts.URL+"/api/script/reorder", map[string][]int{"ids": {2, 1}}, &lines)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(lines) != 2 || lines[0].ID != 2 || lines[1].ID != 1 {
		t.Errorf("unexpected order %+v", lines)
	}
}

func TestSettingsUpdateSyncs(t *testing.T) {
	ts, _, paths := newTestServer(t)

	var vs settings.VideoSettings
	if status := doJSON(t, http.MethodGet, ts.URL+"/api/settings", nil, &vs); status != http.StatusOK {
		t.Fatalf("get status = %d", status)
	}
	if !reflect.DeepEqual(vs, settings.Default()) {
		t.Errorf("expected default settings, got %+v", vs)
	}

	vs.Video.PlaybackRate = 1.0
	var updated settings.VideoSettings
	if status := doJSON(t, http.MethodPut, ts.URL+"/api/settings", vs, &updated); status != http.StatusOK {
		t.Fatalf("put status = %d", status)
	}

	data, err := os.ReadFile(filepath.Join(paths.GeneratedDir(), "settings.json"))
	if err != nil {
		t.Fatalf("settings.json not written: %v", err)
	}
	if !strings.Contains(string(data), `"playbackRate": 1`) {
		t.Errorf("unexpected settings.json:\n%s", data)
	}

	vs.Video.FPS = 0
	if status := doJSON(t, http.MethodPut, ts.URL+"/api/settings", vs, nil); status != http.StatusBadRequest {
		t.Errorf("invalid settings status = %d", status)
	}
}

func TestMetadata(t *testing.T) {
	ts, _, _ := newTestServer(t)

	var emotions []string
	doJSON(t, http.MethodGet, ts.URL+"/api/metadata/emotions/zundamon", nil, &emotions)
	if !reflect.DeepEqual(emotions, []string{"happy", "normal"}) {
		t.Errorf("unexpected emotions %v", emotions)
	}

	doJSON(t, http.MethodGet, ts.URL+"/api/metadata/emotions/nobody", nil, &emotions)
	if !reflect.DeepEqual(emotions, []string{"normal"}) {
		t.Errorf("unknown character should default to normal, got %v", emotions)
	}

	var all struct {
		Characters []struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			SpeakerID *int   `json:"speakerId"`
		} `json:"characters"`
		Animations []string `json:"animations"`
	}
	doJSON(t, http.MethodGet, ts.URL+"/api/metadata/all", nil, &all)
	if len(all.Characters) != 2 || len(all.Animations) != len(script.Animations) {
		t.Fatalf("unexpected metadata %+v", all)
	}
	for _, c := range all.Characters {
		if c.ID == "zundamon" && (c.Name != "ずんだもん" || c.SpeakerID == nil || *c.SpeakerID != 3) {
			t.Errorf("unexpected character %+v", c)
		}
	}
}

func TestTimeline(t *testing.T) {
	ts, _, _ := newTestServer(t)

	var summary struct {
		TotalFrames int `json:"totalFrames"`
		Lines       []struct {
			StartFrame int `json:"startFrame"`
		} `json:"lines"`
	}
	if status := doJSON(t, http.MethodGet, ts.URL+"/api/timeline", nil, &summary); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	// playback rate 1.2: ceil(53/1.2)+ceil(15/1.2) = 45+13
	if len(summary.Lines) != 2 || summary.Lines[1].StartFrame != 58 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if summary.TotalFrames != 58+37+13 {
		t.Errorf("unexpected total %d", summary.TotalFrames)
	}

	var pos struct {
		LineID     *int `json:"lineId"`
		IsSpeaking bool `json:"isSpeaking"`
	}
	doJSON(t, http.MethodGet, ts.URL+"/api/timeline?frame=46", nil, &pos)
	if pos.LineID == nil || *pos.LineID != 1 || pos.IsSpeaking {
		t.Errorf("unexpected position %+v", pos)
	}

	if status := doJSON(t, http.MethodGet, ts.URL+"/api/timeline?frame=x", nil, nil); status != http.StatusBadRequest {
		t.Errorf("bad frame status = %d", status)
	}
}

func TestGenerateVoicesAction(t *testing.T) {
	ts, pipeline, _ := newTestServer(t)

	var body struct {
		Success bool              `json:"success"`
		Report  *generator.Report `json:"report"`
	}
	if status := doJSON(t, http.MethodPost, ts.URL+"/api/actions/generate-voices", nil, &body); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if !body.Success || body.Report.Generated != 2 {
		t.Errorf("unexpected body %+v", body)
	}

	doJSON(t, http.MethodPost, ts.URL+"/api/actions/generate-voices", map[string]bool{"force": true}, nil)
	if !reflect.DeepEqual(pipeline.forced, []bool{false, true}) {
		t.Errorf("unexpected force flags %v", pipeline.forced)
	}

	pipeline.generateErr = fmt.Errorf("%w: connection refused", generator.ErrEngineUnavailable)
	if status := doJSON(t, http.MethodPost, ts.URL+"/api/actions/generate-voices", nil, nil); status != http.StatusServiceUnavailable {
		t.Errorf("engine down status = %d", status)
	}

	pipeline.generateErr = errors.New("disk full")
	if status := doJSON(t, http.MethodPost, ts.URL+"/api/actions/generate-voices", nil, nil); status != http.StatusInternalServerError {
		t.Errorf("failure status = %d", status)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestVoiceGenerationIsSerialized(t *testing.T) {
	pipeline := &fakePipeline{buildOutput: "rendered", release: make(chan struct{})}
	ts, _, _ := newTestServerWith(t, pipeline, true)

	// the save queues a background run, which blocks on release
	if status := doJSON(t, http.MethodPost, ts.URL+"/api/script", map[string]string{"text": "追加"}, nil); status != http.StatusCreated {
		t.Fatalf("create status = %d", status)
	}
	waitFor(t, "queued generation", func() bool {
		_, active, _ := pipeline.counts()
		return active == 1
	})

	done := make(chan int, 1)
	go func() {
		resp, err := http.Post(ts.URL+"/api/actions/generate-voices", "application/json", nil)
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	// a second save while the first run is busy must not be dropped
	if status := doJSON(t, http.MethodPut, ts.URL+"/api/script/1", map[string]string{"text": "変更"}, nil); status != http.StatusOK {
		t.Fatalf("update status = %d", status)
	}

	// builds have their own worker
	if status := doJSON(t, http.MethodPost, ts.URL+"/api/actions/build-video", nil, nil); status != http.StatusAccepted {
		t.Errorf("build-video during voice generation status = %d", status)
	}

	time.Sleep(50 * time.Millisecond)
	if calls, _, _ := pipeline.counts(); calls != 1 {
		t.Errorf("expected the request to wait for the running generation, got %d calls", calls)
	}

	close(pipeline.release)

	if status := <-done; status != http.StatusOK {
		t.Errorf("generate-voices status = %d", status)
	}
	// queued run, the request, and the rerun for the second save
	waitFor(t, "pending rerun", func() bool {
		calls, active, _ := pipeline.counts()
		return calls == 3 && active == 0
	})

	if _, _, maxActive := pipeline.counts(); maxActive != 1 {
		t.Errorf("voice generations overlapped: %d at once", maxActive)
	}
}

func TestSyncScriptAction(t *testing.T) {
	ts, _, paths := newTestServer(t)

	if status := doJSON(t, http.MethodPost, ts.URL+"/api/actions/sync-script", nil, nil); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if _, err := os.Stat(filepath.Join(paths.GeneratedDir(), "script.json")); err != nil {
		t.Errorf("script.json not written: %v", err)
	}
}

func TestBuildVideoJob(t *testing.T) {
	ts, _, _ := newTestServer(t)

	var started struct {
		JobID string `json:"jobId"`
	}
	if status := doJSON(t, http.MethodPost, ts.URL+"/api/actions/build-video", nil, &started); status != http.StatusAccepted {
		t.Fatalf("status = %d", status)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		var job struct {
			Status string `json:"status"`
			Output string `json:"output"`
		}
		if status := doJSON(t, http.MethodGet, ts.URL+"/api/actions/jobs/"+started.JobID, nil, &job); status != http.StatusOK {
			t.Fatalf("job status code = %d", status)
		}
		if job.Status == "succeeded" {
			if job.Output != "rendered" {
				t.Errorf("unexpected output %q", job.Output)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish, last status %q", job.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if status := doJSON(t, http.MethodGet, ts.URL+"/api/actions/jobs/not-a-uuid", nil, nil); status != http.StatusBadRequest {
		t.Errorf("bad job id status = %d", status)
	}
}

func TestStaticFiles(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/static/images/metan/mouth_open.png")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
