package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"kokuban/internal/domain/script"
)

var (
	ErrLineNotFound = errors.New("script line not found")
	ErrInvalidLine  = errors.New("invalid script line")
)

const scriptHeader = `# Dialogue script. voiceFile and durationInFrames are derived by
# "kokuban sync script" and are not written here.
`

// ScriptStore reads and writes config/script.yaml. Every write replaces
// the whole file.
type ScriptStore struct {
	path     string
	defaults script.Defaults

	mu sync.Mutex
}

func NewScriptStore(path string, defaults script.Defaults) *ScriptStore {
	return &ScriptStore{path: path, defaults: defaults}
}

func (s *ScriptStore) Path() string {
	return s.path
}

// LinePatch carries the fields of a partial update; nil fields are kept
type LinePatch struct {
	Character   *string             `json:"character"`
	Text        *string             `json:"text"`
	DisplayText *string             `json:"displayText"`
	Scene       *int                `json:"scene"`
	PauseAfter  *int                `json:"pauseAfter"`
	Emotion     *string             `json:"emotion"`
	Visual      *script.Visual      `json:"visual"`
	SE          *script.SoundEffect `json:"se"`
}

func (p LinePatch) apply(line *script.Line) {
	if p.Character != nil {
		line.Character = *p.Character
	}
	if p.Text != nil {
		line.Text = *p.Text
	}
	if p.DisplayText != nil {
		line.DisplayText = *p.DisplayText
	}
	if p.Scene != nil {
		line.Scene = *p.Scene
	}
	if p.PauseAfter != nil {
		pause := *p.PauseAfter
		line.PauseAfter = &pause
	}
	if p.Emotion != nil {
		line.Emotion = *p.Emotion
	}
	if p.Visual != nil {
		if p.Visual.Type == "none" {
			line.Visual = nil
		} else {
			visual := *p.Visual
			line.Visual = &visual
		}
	}
	if p.SE != nil {
		if p.SE.Src == "" {
			line.SE = nil
		} else {
			se := *p.SE
			line.SE = &se
		}
	}
}

// List returns the lines in script order. A missing file is an empty script.
func (s *ScriptStore) List() ([]script.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *ScriptStore) Get(id int) (script.Line, error) {
	lines, err := s.List()
	if err != nil {
		return script.Line{}, err
	}

	i := indexOf(lines, id)
	if i < 0 {
		return script.Line{}, fmt.Errorf("%w: %d", ErrLineNotFound, id)
	}
	return lines[i], nil
}

// Create appends a line with the next free id. Unset fields take the
// values of defaults.yaml.
func (s *ScriptStore) Create(line script.Line) (script.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.load()
	if err != nil {
		return script.Line{}, err
	}

	line.ID = script.MaxID(lines) + 1
	if line.Character == "" {
		line.Character = s.defaults.NewLine.Character
	}
	if line.Scene == 0 {
		line.Scene = s.defaults.NewLine.Scene
	}
	if line.PauseAfter == nil {
		pause := s.defaults.NewLine.PauseAfter
		line.PauseAfter = &pause
	}
	if line.Emotion == "" {
		line.Emotion = s.defaults.NewLine.Emotion
	}
	if line.Visual != nil && line.Visual.Type == "none" {
		line.Visual = nil
	}
	line.VoiceFile = script.VoiceFileName(line.ID, line.Character)
	line.DurationInFrames = s.defaults.NewLine.DurationInFrames

	if err := s.save(append(lines, line)); err != nil {
		return script.Line{}, err
	}

	logrus.WithFields(logrus.Fields{
		"id":        line.ID,
		"character": line.Character,
	}).Info("Created script line")

	return line, nil
}

// Update merges patch into the line; the id never changes
func (s *ScriptStore) Update(id int, patch LinePatch) (script.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.load()
	if err != nil {
		return script.Line{}, err
	}

	i := indexOf(lines, id)
	if i < 0 {
		return script.Line{}, fmt.Errorf("%w: %d", ErrLineNotFound, id)
	}

	patch.apply(&lines[i])
	lines[i].ID = id

	if err := s.save(lines); err != nil {
		return script.Line{}, err
	}

	logrus.WithField("id", id).Info("Updated script line")

	updated := lines[i]
	updated.VoiceFile = script.VoiceFileName(updated.ID, updated.Character)
	return updated, nil
}

func (s *ScriptStore) Delete(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.load()
	if err != nil {
		return err
	}

	i := indexOf(lines, id)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrLineNotFound, id)
	}

	if err := s.save(append(lines[:i], lines[i+1:]...)); err != nil {
		return err
	}

	logrus.WithField("id", id).Info("Deleted script line")
	return nil
}

// Reorder puts the listed ids first, in the given order. Unknown ids are
// ignored and unlisted lines follow in their previous order.
func (s *ScriptStore) Reorder(ids []int) ([]script.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.load()
	if err != nil {
		return nil, err
	}

	byID := make(map[int]script.Line, len(lines))
	for _, line := range lines {
		byID[line.ID] = line
	}

	reordered := make([]script.Line, 0, len(lines))
	placed := make(map[int]bool, len(ids))
	for _, id := range ids {
		line, ok := byID[id]
		if !ok || placed[id] {
			continue
		}
		placed[id] = true
		reordered = append(reordered, line)
	}
	for _, line := range lines {
		if !placed[line.ID] {
			reordered = append(reordered, line)
		}
	}

	if err := s.save(reordered); err != nil {
		return nil, err
	}

	logrus.WithField("lines", len(reordered)).Info("Reordered script")
	return reordered, nil
}

func (s *ScriptStore) load() ([]script.Line, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []script.Line{}, nil
		}
		return nil, fmt.Errorf("failed to read script: %w", err)
	}

	var lines []script.Line
	if err := yaml.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("failed to parse script %s: %w", s.path, err)
	}
	if lines == nil {
		lines = []script.Line{}
	}

	return lines, nil
}

func (s *ScriptStore) save(lines []script.Line) error {
	if err := script.Validate(lines); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLine, err)
	}

	var buf bytes.Buffer
	buf.WriteString(scriptHeader)

	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(lines); err != nil {
		return fmt.Errorf("failed to encode script: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to encode script: %w", err)
	}

	return writeFile(s.path, buf.Bytes())
}

func indexOf(lines []script.Line, id int) int {
	for i, line := range lines {
		if line.ID == id {
			return i
		}
	}
	return -1
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
