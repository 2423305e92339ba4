package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"kokuban/internal/domain/script"
	"kokuban/internal/domain/settings"
)

// LoadRoster reads config/characters.yaml. Without the file the built-in
// roster is used.
func LoadRoster(path string) (script.Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logrus.WithField("file", path).Warn("Characters file not found, using built-in roster")
			return script.DefaultRoster(), nil
		}
		return nil, fmt.Errorf("failed to read characters: %w", err)
	}

	var roster script.Roster
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("failed to parse characters %s: %w", path, err)
	}
	if roster == nil {
		roster = script.Roster{}
	}

	return roster, nil
}

// LoadDefaults reads config/defaults.yaml over the built-in defaults
func LoadDefaults(path string) (script.Defaults, error) {
	defaults := script.DefaultDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaults, nil
		}
		return defaults, fmt.Errorf("failed to read defaults: %w", err)
	}

	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return defaults, fmt.Errorf("failed to parse defaults %s: %w", path, err)
	}
	if len(defaults.Scenes) == 0 {
		defaults.Scenes = script.DefaultScenes()
	}

	return defaults, nil
}

const settingsHeader = `# ===========================================
# Video settings
# Edit this file to customise the look of the video
# ===========================================

`

// SettingsStore reads and writes video-settings.yaml
type SettingsStore struct {
	path string
	mu   sync.Mutex
}

func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{path: path}
}

func (s *SettingsStore) Path() string {
	return s.path
}

// Get returns the settings, filling absent keys with the defaults
func (s *SettingsStore) Get() (settings.VideoSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs := settings.Default()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return vs, nil
		}
		return vs, fmt.Errorf("failed to read settings: %w", err)
	}

	if err := yaml.Unmarshal(data, &vs); err != nil {
		return vs, fmt.Errorf("failed to parse settings %s: %w", s.path, err)
	}

	return vs, nil
}

// Update replaces the settings file
func (s *SettingsStore) Update(vs settings.VideoSettings) (settings.VideoSettings, error) {
	if err := vs.Validate(); err != nil {
		return vs, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	buf.WriteString(settingsHeader)

	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(vs); err != nil {
		return vs, fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return vs, fmt.Errorf("failed to encode settings: %w", err)
	}

	if err := writeFile(s.path, buf.Bytes()); err != nil {
		return vs, err
	}

	logrus.WithField("file", s.path).Info("Saved video settings")
	return vs, nil
}
