package timeline

import (
	"fmt"
	"math"

	"kokuban/internal/domain/script"
)

// Timeline maps an ordered script onto video frames at a playback rate.
// Durations and pauses are authored at the nominal rate; every frame
// count is divided by the rate and rounded up.
type Timeline struct {
	lines      []script.Line
	rate       float64
	firstScene int
	starts     []int
	total      int
}

// Position is the state of the timeline at one frame. Line is nil when
// no line is active; Scene is always set.
type Position struct {
	Line           *script.Line
	Index          int
	LineStartFrame int
	IsSpeaking     bool
	Scene          int
}

// New builds the timeline for lines whose durations are already resolved
func New(lines []script.Line, playbackRate float64, firstScene int) (*Timeline, error) {
	if playbackRate <= 0 || math.IsNaN(playbackRate) || math.IsInf(playbackRate, 0) {
		return nil, fmt.Errorf("playback rate must be positive, got %v", playbackRate)
	}

	t := &Timeline{
		lines:      lines,
		rate:       playbackRate,
		firstScene: firstScene,
		starts:     make([]int, len(lines)),
	}

	accumulated := 0
	for i, line := range lines {
		t.starts[i] = accumulated
		accumulated += t.AdjustedFrames(line.DurationInFrames) + t.AdjustedFrames(line.Pause())
	}
	t.total = accumulated

	return t, nil
}

// AdjustedFrames converts a nominal frame count to timeline frames.
// Ceiling on both duration and pause keeps a line's audio from running
// into the next line's window.
func (t *Timeline) AdjustedFrames(frames int) int {
	if frames <= 0 {
		return 0
	}
	return int(math.Ceil(float64(frames) / t.rate))
}

// PlaybackRate returns the rate the timeline was built with
func (t *Timeline) PlaybackRate() float64 {
	return t.rate
}

// Len returns the number of lines
func (t *Timeline) Len() int {
	return len(t.lines)
}

// Line returns the line at index
func (t *Timeline) Line(index int) script.Line {
	return t.lines[index]
}

// LineStartFrame returns the first frame at which line index is active.
// Indexes past the end return the total length.
func (t *Timeline) LineStartFrame(index int) int {
	if index <= 0 {
		return 0
	}
	if index >= len(t.lines) {
		return t.total
	}
	return t.starts[index]
}

// LineDuration returns the adjusted speaking frames of line index
func (t *Timeline) LineDuration(index int) int {
	return t.AdjustedFrames(t.lines[index].DurationInFrames)
}

// LinePause returns the adjusted pause frames of line index
func (t *Timeline) LinePause(index int) int {
	return t.AdjustedFrames(t.lines[index].Pause())
}

// TotalFrames is the sum of all adjusted speaking and pause windows
func (t *Timeline) TotalFrames() int {
	return t.total
}

// Resolve finds the line active at frame
func (t *Timeline) Resolve(frame int) Position {
	pos := Position{Index: -1, Scene: t.firstScene}

	accumulated := 0
	for i := range t.lines {
		line := &t.lines[i]
		duration := t.AdjustedFrames(line.DurationInFrames)
		end := accumulated + duration + t.AdjustedFrames(line.Pause())

		if frame >= accumulated && frame < end {
			pos.Line = line
			pos.Index = i
			pos.LineStartFrame = accumulated
			pos.IsSpeaking = frame < accumulated+duration
			pos.Scene = line.Scene
			return pos
		}

		accumulated = end
		// frames past the last line stay on its scene
		if frame >= accumulated {
			pos.Scene = line.Scene
		}
	}

	return pos
}
