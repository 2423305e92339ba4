// Package datasync turns the hand edited YAML documents into the JSON data
// read by the renderer.
package datasync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"kokuban/internal/domain/script"
	"kokuban/internal/domain/settings"
	"kokuban/internal/store"
	"kokuban/internal/voice/manifest"
)

const (
	ScriptOutput   = "script.json"
	SettingsOutput = "settings.json"
)

// Paths locates the sources and the output directory
type Paths struct {
	Script     string
	Characters string
	Defaults   string
	Settings   string
	Durations  string
	OutputDir  string
}

func (p Paths) ScriptOutputPath() string {
	return filepath.Join(p.OutputDir, ScriptOutput)
}

func (p Paths) SettingsOutputPath() string {
	return filepath.Join(p.OutputDir, SettingsOutput)
}

// ScriptDocument is the generated script consumed by the renderer
type ScriptDocument struct {
	Characters script.Roster  `json:"characters"`
	SpeakerMap map[string]int `json:"speakerMap"`
	Scenes     []script.Scene `json:"scenes"`
	BGM        *script.BGM    `json:"bgm"`
	Lines      []script.Line  `json:"lines"`
}

// FirstScene is the scene declared first, 1 when none are
func (d *ScriptDocument) FirstScene() int {
	if len(d.Scenes) > 0 {
		return d.Scenes[0].ID
	}
	return 1
}

// BuildScript resolves the authored script against the roster, the
// defaults and the synthesized durations
func BuildScript(p Paths) (*ScriptDocument, error) {
	defaults, err := store.LoadDefaults(p.Defaults)
	if err != nil {
		return nil, err
	}

	roster, err := store.LoadRoster(p.Characters)
	if err != nil {
		return nil, err
	}

	lines, err := store.NewScriptStore(p.Script, defaults).List()
	if err != nil {
		return nil, err
	}
	if err := script.Validate(lines); err != nil {
		return nil, err
	}

	durations, err := manifest.LoadDurations(p.Durations)
	if err != nil {
		return nil, err
	}

	for _, line := range lines {
		if _, ok := roster[line.Character]; !ok {
			logrus.WithFields(logrus.Fields{
				"id":        line.ID,
				"character": line.Character,
			}).Warn("Line refers to an unknown character")
		}
	}

	return &ScriptDocument{
		Characters: roster,
		SpeakerMap: roster.SpeakerMap(),
		Scenes:     defaults.Scenes,
		BGM:        defaults.BGM,
		Lines:      script.Resolve(lines, durations, defaults),
	}, nil
}

// SyncScript writes generated/script.json
func SyncScript(p Paths) (*ScriptDocument, error) {
	doc, err := BuildScript(p)
	if err != nil {
		return nil, fmt.Errorf("failed to build script: %w", err)
	}

	if err := writeJSON(p.ScriptOutputPath(), doc); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"lines": len(doc.Lines),
		"file":  p.ScriptOutputPath(),
	}).Info("Synced script")

	return doc, nil
}

// SyncSettings writes generated/settings.json
func SyncSettings(p Paths) (settings.VideoSettings, error) {
	vs, err := store.NewSettingsStore(p.Settings).Get()
	if err != nil {
		return vs, err
	}
	if err := vs.Validate(); err != nil {
		return vs, err
	}

	if err := writeJSON(p.SettingsOutputPath(), vs); err != nil {
		return vs, err
	}

	logrus.WithField("file", p.SettingsOutputPath()).Info("Synced settings")
	return vs, nil
}

// LoadScriptDocument reads a generated script document
func LoadScriptDocument(path string) (*ScriptDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script document: %w", err)
	}

	var doc ScriptDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse script document %s: %w", path, err)
	}

	return &doc, nil
}

// LoadSettings reads generated settings
func LoadSettings(path string) (settings.VideoSettings, error) {
	var vs settings.VideoSettings

	data, err := os.ReadFile(path)
	if err != nil {
		return vs, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := json.Unmarshal(data, &vs); err != nil {
		return vs, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}

	return vs, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	return nil
}
