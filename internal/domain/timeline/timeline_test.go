package timeline

import (
	"math"
	"testing"

	"kokuban/internal/domain/script"
)

func line(id, duration, pause, scene int) script.Line {
	p := pause
	return script.Line{
		ID:               id,
		Character:        "zundamon",
		Text:             "text",
		Scene:            scene,
		VoiceFile:        script.VoiceFileName(id, "zundamon"),
		DurationInFrames: duration,
		PauseAfter:       &p,
	}
}

func TestAdjustedFrames(t *testing.T) {
	tl, err := New(nil, 1.2, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		frames   int
		expected int
	}{
		{0, 0},
		{-5, 0},
		{1, 1},
		{53, 45},
		{15, 13},
		{44, 37},
		{60, 50},
	}

	for _, tt := range tests {
		if got := tl.AdjustedFrames(tt.frames); got != tt.expected {
			t.Errorf("AdjustedFrames(%d) = %d, want %d", tt.frames, got, tt.expected)
		}
	}
}

func TestNewRejectsInvalidRate(t *testing.T) {
	for _, rate := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := New(nil, rate, 1); err == nil {
			t.Errorf("expected error for rate %v", rate)
		}
	}
}

func TestLineStartFrame(t *testing.T) {
	lines := []script.Line{line(1, 53, 15, 1), line(2, 44, 15, 1), line(3, 30, 0, 2)}
	tl, err := New(lines, 1.2, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got := tl.LineStartFrame(0); got != 0 {
		t.Errorf("LineStartFrame(0) = %d, want 0", got)
	}
	if got := tl.LineStartFrame(1); got != 58 {
		t.Errorf("LineStartFrame(1) = %d, want 58", got)
	}
	// 58 + ceil(44/1.2) + ceil(15/1.2) = 58 + 37 + 13
	if got := tl.LineStartFrame(2); got != 108 {
		t.Errorf("LineStartFrame(2) = %d, want 108", got)
	}
	if got := tl.TotalFrames(); got != 133 {
		t.Errorf("TotalFrames() = %d, want 133", got)
	}
}

func TestLineStartFrameTwoLines(t *testing.T) {
	pairs := []struct {
		d1, p1, d2, p2 int
		rate           float64
	}{
		{53, 15, 44, 15, 1.2},
		{10, 0, 1, 1, 1.0},
		{7, 3, 9, 9, 0.75},
		{1, 1, 1, 1, 3.0},
	}

	for _, p := range pairs {
		tl, err := New([]script.Line{line(1, p.d1, p.p1, 1), line(2, p.d2, p.p2, 1)}, p.rate, 1)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		want := int(math.Ceil(float64(p.d1)/p.rate)) + int(math.Ceil(float64(p.p1)/p.rate))
		if got := tl.LineStartFrame(1); got != want {
			t.Errorf("rate %v: LineStartFrame(1) = %d, want %d", p.rate, got, want)
		}
	}
}

func TestResolve(t *testing.T) {
	lines := []script.Line{line(1, 53, 15, 1), line(2, 44, 15, 2)}
	tl, err := New(lines, 1.2, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		name       string
		frame      int
		lineID     int
		start      int
		isSpeaking bool
		scene      int
	}{
		{"first frame", 0, 1, 0, true, 1},
		{"last speaking frame", 44, 1, 0, true, 1},
		{"pause starts", 45, 1, 0, false, 1},
		{"inside pause", 50, 1, 0, false, 1},
		{"second line", 58, 2, 58, true, 2},
		{"second line pause", 100, 2, 58, false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := tl.Resolve(tt.frame)
			if pos.Line == nil {
				t.Fatalf("expected a line at frame %d", tt.frame)
			}
			if pos.Line.ID != tt.lineID {
				t.Errorf("line = %d, want %d", pos.Line.ID, tt.lineID)
			}
			if pos.LineStartFrame != tt.start {
				t.Errorf("start = %d, want %d", pos.LineStartFrame, tt.start)
			}
			if pos.IsSpeaking != tt.isSpeaking {
				t.Errorf("isSpeaking = %v, want %v", pos.IsSpeaking, tt.isSpeaking)
			}
			if pos.Scene != tt.scene {
				t.Errorf("scene = %d, want %d", pos.Scene, tt.scene)
			}
		})
	}
}

func TestResolveOutsideRange(t *testing.T) {
	lines := []script.Line{line(1, 53, 15, 2), line(2, 44, 15, 3)}
	tl, err := New(lines, 1.2, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	after := tl.Resolve(tl.TotalFrames())
	if after.Line != nil {
		t.Errorf("expected no line after the end, got %d", after.Line.ID)
	}
	if after.Scene != 3 {
		t.Errorf("scene should persist after the last line, got %d", after.Scene)
	}

	before := tl.Resolve(-1)
	if before.Line != nil {
		t.Error("expected no line before frame 0")
	}
	if before.Scene != 1 {
		t.Errorf("expected first declared scene, got %d", before.Scene)
	}
}

func TestResolveEmpty(t *testing.T) {
	tl, err := New(nil, 1.2, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, frame := range []int{-1, 0, 1, 1000} {
		pos := tl.Resolve(frame)
		if pos.Line != nil {
			t.Errorf("frame %d: expected no line", frame)
		}
		if pos.Scene != 4 {
			t.Errorf("frame %d: scene = %d, want 4", frame, pos.Scene)
		}
	}
	if tl.TotalFrames() != 0 {
		t.Errorf("expected zero total frames, got %d", tl.TotalFrames())
	}
}

func TestResolveCoversEveryFrameOnce(t *testing.T) {
	lines := []script.Line{
		line(1, 53, 15, 1),
		line(2, 0, 10, 1),
		line(3, 44, 0, 2),
		line(4, -3, 7, 2),
		line(5, 31, 15, 3),
	}
	for _, rate := range []float64{0.5, 1.0, 1.2, 1.5, 2.0} {
		tl, err := New(lines, rate, 1)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		prevIndex := 0
		for frame := 0; frame < tl.TotalFrames(); frame++ {
			pos := tl.Resolve(frame)
			if pos.Line == nil {
				t.Fatalf("rate %v: no line at frame %d", rate, frame)
			}
			if pos.Index < prevIndex {
				t.Fatalf("rate %v: index went backwards at frame %d", rate, frame)
			}
			prevIndex = pos.Index

			start := tl.LineStartFrame(pos.Index)
			end := start + tl.LineDuration(pos.Index) + tl.LinePause(pos.Index)
			if frame < start || frame >= end {
				t.Fatalf("rate %v: frame %d outside window [%d, %d)", rate, frame, start, end)
			}
		}

		if pos := tl.Resolve(tl.TotalFrames()); pos.Line != nil {
			t.Errorf("rate %v: expected no line at total frames", rate)
		}
	}
}

func TestZeroDurationLineIsPauseOnly(t *testing.T) {
	tl, err := New([]script.Line{line(1, 0, 12, 1)}, 1.0, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pos := tl.Resolve(0)
	if pos.Line == nil || pos.IsSpeaking {
		t.Errorf("expected a silent window, got %+v", pos)
	}
}

func TestPlan(t *testing.T) {
	lines := []script.Line{line(1, 53, 15, 1), line(2, 44, 15, 2), line(3, 30, 0, 2)}
	lines[1].DisplayText = "Display"
	lines[1].Visual = &script.Visual{Type: "text", Text: "hello"}
	lines[2].Visual = &script.Visual{Type: "none"}

	tl, err := New(lines, 1.2, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	plan := tl.Plan(30, nil)

	if plan.TotalFrames != tl.TotalFrames() || plan.FPS != 30 {
		t.Errorf("unexpected header: %+v", plan)
	}
	if len(plan.Audio) != 3 || plan.Audio[1].From != 58 || plan.Audio[1].DurationInFrames != 37 {
		t.Errorf("unexpected audio cues: %+v", plan.Audio)
	}
	if plan.Subtitles[1].Text != "Display" {
		t.Errorf("expected display text in subtitle, got %q", plan.Subtitles[1].Text)
	}
	if len(plan.Visuals) != 1 || plan.Visuals[0].DurationInFrames != 37+13 {
		t.Errorf("unexpected visuals: %+v", plan.Visuals)
	}
	if len(plan.Scenes) != 2 || plan.Scenes[1].Scene != 2 || plan.Scenes[1].From != 58 {
		t.Errorf("unexpected scene cues: %+v", plan.Scenes)
	}
}
