package manifest

import (
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	// FileName is the manifest stored next to the voice files
	FileName = "voices-manifest.json"
	// DurationsFileName is the flat voiceFile -> frames table
	DurationsFileName = "durations.json"
)

// Entry is the cache record of one voice file
type Entry struct {
	Hash   string `json:"hash"`
	Frames int    `json:"frames"`
}

// Manifest maps voice file names to their cache records
type Manifest map[string]Entry

// Durations maps voice file names to frame counts
type Durations map[string]int

// Hash returns the content hash that decides whether a voice file is stale.
// Only the speaker and the spoken text take part in it.
func Hash(character, text string) string {
	h := md5.New()
	io.WriteString(h, character+":"+text)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Load reads the manifest. A missing or unreadable manifest yields an
// empty one so every line is regenerated.
func Load(path string) Manifest {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logrus.WithError(err).WithField("file", path).Warn("Failed to read voice manifest, starting empty")
		}
		return Manifest{}
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		logrus.WithError(err).WithField("file", path).Warn("Voice manifest is corrupt, starting empty")
		return Manifest{}
	}
	if m == nil {
		return Manifest{}
	}

	return m
}

// Save replaces the manifest file
func (m Manifest) Save(path string) error {
	if err := writeJSON(path, m); err != nil {
		return fmt.Errorf("failed to save voice manifest: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"entries": len(m),
		"file":    path,
	}).Info("Saved voice manifest")

	return nil
}

// LoadDurations reads the durations table; a missing file is empty
func LoadDurations(path string) (Durations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Durations{}, nil
		}
		return nil, fmt.Errorf("failed to read durations file: %w", err)
	}

	var d Durations
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse durations file %s: %w", path, err)
	}
	if d == nil {
		d = Durations{}
	}

	return d, nil
}

// Save replaces the durations file
func (d Durations) Save(path string) error {
	if err := writeJSON(path, d); err != nil {
		return fmt.Errorf("failed to save durations: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"entries": len(d),
		"file":    path,
	}).Info("Saved voice durations")

	return nil
}

// Stats describes the state of a voice directory
type Stats struct {
	Directory    string   `json:"directory"`
	AudioFiles   int      `json:"audioFiles"`
	TotalBytes   int64    `json:"totalBytes"`
	Entries      int      `json:"entries"`
	Untracked    []string `json:"untracked"`
	MissingFiles []string `json:"missingFiles"`
}

// GetStats compares the audio files in dir with the manifest entries
func GetStats(dir string, m Manifest) (*Stats, error) {
	stats := &Stats{Directory: dir, Entries: len(m), Untracked: []string{}, MissingFiles: []string{}}

	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read voice directory: %w", err)
	}

	present := make(map[string]bool)
	for _, entry := range entries {
		if entry.IsDir() || !isAudio(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		present[entry.Name()] = true
		stats.AudioFiles++
		stats.TotalBytes += info.Size()

		if _, ok := m[entry.Name()]; !ok {
			stats.Untracked = append(stats.Untracked, entry.Name())
		}
	}

	for name := range m {
		if !present[name] {
			stats.MissingFiles = append(stats.MissingFiles, name)
		}
	}

	return stats, nil
}

func isAudio(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav", ".mp3":
		return true
	}
	return false
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
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
