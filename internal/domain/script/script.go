package script

import (
	"fmt"
	"strings"
)

// Animation names understood by the renderer for visuals
var Animations = []string{"none", "fadeIn", "slideUp", "slideLeft", "zoomIn", "bounce"}

// Visual types a line can carry
var VisualTypes = []string{"none", "image", "text"}

// Emotions a line can declare
var Emotions = []string{"normal", "happy", "surprised", "thinking", "sad"}

// Visual is the content shown in the board area while a line is active
type Visual struct {
	Type      string `json:"type" yaml:"type"`
	Src       string `json:"src,omitempty" yaml:"src,omitempty"`
	Text      string `json:"text,omitempty" yaml:"text,omitempty"`
	FontSize  int    `json:"fontSize,omitempty" yaml:"fontSize,omitempty"`
	Color     string `json:"color,omitempty" yaml:"color,omitempty"`
	Animation string `json:"animation,omitempty" yaml:"animation,omitempty"`
}

// SoundEffect is played when a line starts
type SoundEffect struct {
	Src    string   `json:"src" yaml:"src"`
	Volume *float64 `json:"volume,omitempty" yaml:"volume,omitempty"`
}

// BGM is the background track played under the whole video
type BGM struct {
	Src    string   `json:"src" yaml:"src"`
	Volume *float64 `json:"volume,omitempty" yaml:"volume,omitempty"`
	Loop   *bool    `json:"loop,omitempty" yaml:"loop,omitempty"`
}

// Line represents one spoken unit of the script.
// VoiceFile and DurationInFrames are derived and never authored in YAML.
type Line struct {
	ID               int          `json:"id" yaml:"id"`
	Character        string       `json:"character" yaml:"character"`
	Text             string       `json:"text" yaml:"text"`
	DisplayText      string       `json:"displayText,omitempty" yaml:"displayText,omitempty"`
	Scene            int          `json:"scene" yaml:"scene"`
	VoiceFile        string       `json:"voiceFile,omitempty" yaml:"-"`
	DurationInFrames int          `json:"durationInFrames" yaml:"-"`
	PauseAfter       *int         `json:"pauseAfter,omitempty" yaml:"pauseAfter,omitempty"`
	Emotion          string       `json:"emotion,omitempty" yaml:"emotion,omitempty"`
	Visual           *Visual      `json:"visual,omitempty" yaml:"visual,omitempty"`
	SE               *SoundEffect `json:"se,omitempty" yaml:"se,omitempty"`
}

// Pause returns the frames of silence after the line
func (l Line) Pause() int {
	if l.PauseAfter == nil || *l.PauseAfter < 0 {
		return 0
	}
	return *l.PauseAfter
}

// SubtitleText returns the text shown on screen
func (l Line) SubtitleText() string {
	if l.DisplayText != "" {
		return l.DisplayText
	}
	return l.Text
}

// VoiceFileName derives the audio artifact name of a line
func VoiceFileName(id int, character string) string {
	return fmt.Sprintf("%02d_%s.wav", id, character)
}

// Scene groups lines under one backdrop
type Scene struct {
	ID         int    `json:"id" yaml:"id"`
	Title      string `json:"title" yaml:"title"`
	Background string `json:"background" yaml:"background"`
}

// DefaultScenes are used when defaults.yaml declares none
func DefaultScenes() []Scene {
	return []Scene{
		{ID: 1, Title: "Opening", Background: "gradient"},
		{ID: 2, Title: "Main", Background: "solid"},
		{ID: 3, Title: "Ending", Background: "gradient"},
	}
}

// NewLineDefaults are applied to lines created without those fields
type NewLineDefaults struct {
	Character        string `json:"character" yaml:"character"`
	PauseAfter       int    `json:"pauseAfter" yaml:"pauseAfter"`
	DurationInFrames int    `json:"durationInFrames" yaml:"durationInFrames"`
	Scene            int    `json:"scene" yaml:"scene"`
	Emotion          string `json:"emotion,omitempty" yaml:"emotion,omitempty"`
}

type Automation struct {
	VoiceOnSave       bool `json:"voiceOnSave" yaml:"voiceOnSave"`
	AutoVoiceFileName bool `json:"autoVoiceFileName" yaml:"autoVoiceFileName"`
}

// Defaults mirrors config/defaults.yaml
type Defaults struct {
	NewLine    NewLineDefaults `json:"newLine" yaml:"newLine"`
	Automation Automation      `json:"automation" yaml:"automation"`
	Scenes     []Scene         `json:"scenes,omitempty" yaml:"scenes,omitempty"`
	BGM        *BGM            `json:"bgm,omitempty" yaml:"bgm,omitempty"`
}

// DefaultDefaults returns the values used when defaults.yaml is absent
func DefaultDefaults() Defaults {
	return Defaults{
		NewLine: NewLineDefaults{
			Character:        "zundamon",
			PauseAfter:       15,
			DurationInFrames: 60,
			Scene:            1,
		},
		Automation: Automation{AutoVoiceFileName: true},
		Scenes:     DefaultScenes(),
	}
}

// FirstScene is the scene shown before any line is active
func (d Defaults) FirstScene() int {
	if len(d.Scenes) > 0 {
		return d.Scenes[0].ID
	}
	return 1
}

// Resolve fills the derived fields of every line. Durations come from the
// synthesized table, falling back to the placeholder default.
func Resolve(lines []Line, durations map[string]int, d Defaults) []Line {
	resolved := make([]Line, len(lines))
	for i, line := range lines {
		line.VoiceFile = VoiceFileName(line.ID, line.Character)

		if frames, ok := durations[line.VoiceFile]; ok && frames > 0 {
			line.DurationInFrames = frames
		} else {
			line.DurationInFrames = d.NewLine.DurationInFrames
		}

		if line.PauseAfter == nil {
			pause := d.NewLine.PauseAfter
			line.PauseAfter = &pause
		}
		resolved[i] = line
	}
	return resolved
}

// Validate checks the invariants of an authored script
func Validate(lines []Line) error {
	var problems []string
	seen := make(map[int]bool, len(lines))

	for i, line := range lines {
		if line.ID <= 0 {
			problems = append(problems, fmt.Sprintf("line %d: id must be positive, got %d", i, line.ID))
		}
		if seen[line.ID] {
			problems = append(problems, fmt.Sprintf("line %d: duplicate id %d", i, line.ID))
		}
		seen[line.ID] = true

		if strings.TrimSpace(line.Character) == "" {
			problems = append(problems, fmt.Sprintf("line %d: character is required", i))
		}
		if line.PauseAfter != nil && *line.PauseAfter < 0 {
			problems = append(problems, fmt.Sprintf("line %d: pauseAfter must be >= 0", i))
		}
		if line.Visual != nil && !contains(VisualTypes, line.Visual.Type) {
			problems = append(problems, fmt.Sprintf("line %d: unknown visual type %q", i, line.Visual.Type))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid script: %s", strings.Join(problems, "; "))
	}
	return nil
}

// MaxID returns the highest id in the script, 0 when empty
func MaxID(lines []Line) int {
	max := 0
	for _, line := range lines {
		if line.ID > max {
			max = line.ID
		}
	}
	return max
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
