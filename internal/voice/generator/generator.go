package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"kokuban/internal/domain/script"
	"kokuban/internal/voice/audio"
	"kokuban/internal/voice/manifest"
	"kokuban/internal/voice/tts"
)

// ErrEngineUnavailable is returned when the synthesis engine fails its
// probe. Nothing is written in that case.
var ErrEngineUnavailable = errors.New("synthesis engine unavailable")

// Generator keeps the voice directory in step with the script. Audio is
// only synthesized for lines whose character or text changed.
type Generator struct {
	engine       tts.Engine
	roster       script.Roster
	dir          string
	fps          int
	playbackRate float64
}

func New(engine tts.Engine, roster script.Roster, dir string, fps int, playbackRate float64) *Generator {
	return &Generator{
		engine:       engine,
		roster:       roster,
		dir:          dir,
		fps:          fps,
		playbackRate: playbackRate,
	}
}

type Options struct {
	// ForceAll regenerates every line regardless of the manifest
	ForceAll bool
}

// LineResult is the outcome for one line that produced a duration
type LineResult struct {
	ID        int     `json:"id"`
	VoiceFile string  `json:"voiceFile"`
	Seconds   float64 `json:"seconds,omitempty"`
	Frames    int     `json:"frames"`
	Cached    bool    `json:"cached"`
}

// LineError records a line that was left out of this run
type LineError struct {
	ID        int    `json:"id"`
	VoiceFile string `json:"voiceFile"`
	Err       error  `json:"-"`
	Message   string `json:"error"`
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d (%s): %v", e.ID, e.VoiceFile, e.Err)
}

func (e LineError) Unwrap() error {
	return e.Err
}

type Report struct {
	EngineVersion string       `json:"engineVersion"`
	Generated     int          `json:"generated"`
	Skipped       int          `json:"skipped"`
	Failed        int          `json:"failed"`
	Results       []LineResult `json:"results"`
	Errors        []LineError  `json:"errors"`
}

func (g *Generator) ManifestPath() string {
	return filepath.Join(g.dir, manifest.FileName)
}

func (g *Generator) DurationsPath() string {
	return filepath.Join(g.dir, manifest.DurationsFileName)
}

func (g *Generator) VoicePath(voiceFile string) string {
	return filepath.Join(g.dir, voiceFile)
}

// Run synthesizes stale lines, then replaces the manifest and the
// durations table with what this run produced
func (g *Generator) Run(ctx context.Context, lines []script.Line, opts Options) (*Report, error) {
	version, err := g.engine.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	logrus.WithFields(logrus.Fields{
		"version": version,
		"lines":   len(lines),
		"force":   opts.ForceAll,
	}).Info("Synthesis engine ready")

	if err := os.MkdirAll(g.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create voice directory: %w", err)
	}

	previous := manifest.Load(g.ManifestPath())
	next := manifest.Manifest{}
	durations := manifest.Durations{}
	report := &Report{EngineVersion: version, Results: []LineResult{}, Errors: []LineError{}}

	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		voiceFile := script.VoiceFileName(line.ID, line.Character)
		hash := manifest.Hash(line.Character, line.Text)
		log := logrus.WithFields(logrus.Fields{
			"id":        line.ID,
			"character": line.Character,
			"voiceFile": voiceFile,
		})

		// an unmapped character is reported even when its audio is cached
		sp, ok := g.roster.Speaker(line.Character)
		if !ok {
			g.fail(report, line, voiceFile, fmt.Errorf("no speaker mapped for character %q", line.Character), log)
			continue
		}

		if entry, ok := previous[voiceFile]; ok && !opts.ForceAll && entry.Hash == hash && g.exists(voiceFile) {
			next[voiceFile] = entry
			durations[voiceFile] = entry.Frames
			report.Skipped++
			report.Results = append(report.Results, LineResult{
				ID:        line.ID,
				VoiceFile: voiceFile,
				Frames:    entry.Frames,
				Cached:    true,
			})
			log.Debug("Voice up to date")
			continue
		}

		result, err := g.synthesize(ctx, line, sp, voiceFile)
		if err != nil {
			g.fail(report, line, voiceFile, err, log)
			continue
		}

		next[voiceFile] = manifest.Entry{Hash: hash, Frames: result.Frames}
		durations[voiceFile] = result.Frames
		report.Generated++
		report.Results = append(report.Results, *result)

		log.WithFields(logrus.Fields{
			"seconds": result.Seconds,
			"frames":  result.Frames,
		}).Info("Generated voice")
	}

	if err := next.Save(g.ManifestPath()); err != nil {
		return report, err
	}
	if err := durations.Save(g.DurationsPath()); err != nil {
		return report, err
	}

	logrus.WithFields(logrus.Fields{
		"generated": report.Generated,
		"skipped":   report.Skipped,
		"failed":    report.Failed,
	}).Info("Voice generation finished")

	return report, nil
}

func (g *Generator) fail(report *Report, line script.Line, voiceFile string, err error, log *logrus.Entry) {
	report.Failed++
	report.Errors = append(report.Errors, LineError{
		ID:        line.ID,
		VoiceFile: voiceFile,
		Err:       err,
		Message:   err.Error(),
	})
	log.WithError(err).Error("Failed to generate voice")
}

func (g *Generator) synthesize(ctx context.Context, line script.Line, sp script.Speaker, voiceFile string) (*LineResult, error) {
	data, err := g.engine.Synthesize(ctx, line.Text, sp)
	if err != nil {
		return nil, err
	}

	path := g.VoicePath(voiceFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write voice file: %w", err)
	}

	d, err := audio.Duration(path)
	if err != nil {
		return nil, err
	}

	return &LineResult{
		ID:        line.ID,
		VoiceFile: voiceFile,
		Seconds:   d.Seconds(),
		Frames:    audio.Frames(d, g.fps, g.playbackRate),
	}, nil
}

func (g *Generator) exists(voiceFile string) bool {
	info, err := os.Stat(g.VoicePath(voiceFile))
	return err == nil && !info.IsDir()
}

// Prune deletes voice files and manifest entries that no line of the
// script refers to. It returns the removed file names.
func (g *Generator) Prune(lines []script.Line) ([]string, error) {
	keep := make(map[string]bool, len(lines))
	for _, line := range lines {
		keep[script.VoiceFileName(line.ID, line.Character)] = true
	}

	m := manifest.Load(g.ManifestPath())
	stats, err := manifest.GetStats(g.dir, m)
	if err != nil {
		return nil, err
	}

	removed := []string{}
	candidates := append(append([]string{}, stats.Untracked...), manifestFiles(m)...)
	seen := make(map[string]bool)
	for _, name := range candidates {
		if keep[name] || seen[name] {
			continue
		}
		seen[name] = true

		if err := os.Remove(g.VoicePath(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("failed to remove %s: %w", name, err)
		}
		delete(m, name)
		removed = append(removed, name)

		logrus.WithField("voiceFile", name).Info("Pruned voice file")
	}

	sort.Strings(removed)
	if len(removed) > 0 {
		if err := m.Save(g.ManifestPath()); err != nil {
			return removed, err
		}
	}

	return removed, nil
}

func manifestFiles(m manifest.Manifest) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	return names
}
