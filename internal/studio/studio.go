package studio

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"kokuban/internal/config"
	"kokuban/internal/datasync"
	"kokuban/internal/domain/script"
	"kokuban/internal/store"
	"kokuban/internal/voice/generator"
	"kokuban/internal/voice/manifest"
	"kokuban/internal/voice/tts"
)

// Studio main application structure
type Studio struct {
	cfg      *config.Config
	defaults script.Defaults
	scripts  *store.ScriptStore
	settings *store.SettingsStore

	engineMu sync.Mutex
	engine   tts.Engine

	// voiceMu serializes writers of the voice directory
	voiceMu sync.Mutex

	ctx    context.Context
	Cancel context.CancelFunc

	closeOnce sync.Once
	osExit    func(int)
}

func NewStudio(cfg *config.Config) (*Studio, error) {
	defaults, err := store.LoadDefaults(cfg.Paths.DefaultsFile())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Studio{
		cfg:      cfg,
		defaults: defaults,
		scripts:  store.NewScriptStore(cfg.Paths.ScriptFile(), defaults),
		settings: store.NewSettingsStore(cfg.Paths.SettingsFile()),
		ctx:      ctx,
		Cancel:   cancel,
		osExit:   os.Exit,
	}, nil
}

// Engine creates the configured TTS engine on first use
func (s *Studio) Engine(ctx context.Context) (tts.Engine, error) {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()

	if s.engine != nil {
		return s.engine, nil
	}

	engine, err := tts.NewEngine(ctx, s.cfg.TTS.EngineConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create tts engine: %w", err)
	}
	s.engine = engine
	return engine, nil
}

// Version probes the TTS engine
func (s *Studio) Version(ctx context.Context) (string, error) {
	engine, err := s.Engine(ctx)
	if err != nil {
		return "", err
	}
	return engine.Version(ctx)
}

func (s *Studio) paths() datasync.Paths {
	return s.cfg.Paths.Sync()
}

func (s *Studio) newGenerator(engine tts.Engine) (*generator.Generator, error) {
	vs, err := s.settings.Get()
	if err != nil {
		return nil, err
	}
	if err := vs.Validate(); err != nil {
		return nil, err
	}

	roster, err := store.LoadRoster(s.cfg.Paths.CharactersFile())
	if err != nil {
		return nil, err
	}

	return generator.New(engine, roster, s.cfg.Paths.VoicesDir(), vs.Video.FPS, vs.Video.PlaybackRate), nil
}

// GenerateVoices brings the voice files up to date, then regenerates the
// script document so it carries the new durations
func (s *Studio) GenerateVoices(ctx context.Context, opts generator.Options) (*generator.Report, error) {
	s.voiceMu.Lock()
	defer s.voiceMu.Unlock()

	engine, err := s.Engine(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", generator.ErrEngineUnavailable, err)
	}

	gen, err := s.newGenerator(engine)
	if err != nil {
		return nil, err
	}

	lines, err := s.scripts.List()
	if err != nil {
		return nil, err
	}

	report, err := gen.Run(ctx, lines, opts)
	if err != nil {
		return report, err
	}

	if _, err := datasync.SyncScript(s.paths()); err != nil {
		logrus.WithError(err).Error("Failed to sync script after voice generation")
	}

	return report, nil
}

// PruneVoices removes voice files of lines that no longer exist
func (s *Studio) PruneVoices() ([]string, error) {
	s.voiceMu.Lock()
	defer s.voiceMu.Unlock()

	gen, err := s.newGenerator(nil)
	if err != nil {
		return nil, err
	}

	lines, err := s.scripts.List()
	if err != nil {
		return nil, err
	}

	return gen.Prune(lines)
}

func (s *Studio) VoiceStats() (*manifest.Stats, error) {
	dir := s.cfg.Paths.VoicesDir()
	m := manifest.Load(filepath.Join(dir, manifest.FileName))
	return manifest.GetStats(dir, m)
}

// SyncAll regenerates both generated documents
func (s *Studio) SyncAll() (*datasync.ScriptDocument, error) {
	doc, err := datasync.SyncScript(s.paths())
	if err != nil {
		return nil, err
	}
	if _, err := datasync.SyncSettings(s.paths()); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Studio) Project() (*datasync.Project, error) {
	return datasync.BuildProject(s.paths())
}

// BuildVideo syncs the generated data and runs the render command
func (s *Studio) BuildVideo(ctx context.Context) (string, error) {
	if _, err := s.SyncAll(); err != nil {
		return "", err
	}

	command := s.cfg.Actions.BuildCommand
	if len(command) == 0 {
		return "", fmt.Errorf("no build command configured")
	}

	logrus.WithField("command", strings.Join(command, " ")).Info("Starting video build")

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = s.cfg.Paths.Root

	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("video build failed: %w", err)
	}

	logrus.Info("Video build finished")
	return string(output), nil
}

// Close releases the TTS engine. Later calls do nothing.
func (s *Studio) Close() {
	s.closeOnce.Do(func() {
		s.engineMu.Lock()
		defer s.engineMu.Unlock()

		if closer, ok := s.engine.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close tts engine")
			}
		}
	})
}

// Exit releases the studio and exits the process with code
func (s *Studio) Exit(code int) {
	s.Cancel()
	s.Close()
	s.osExit(code)
}
