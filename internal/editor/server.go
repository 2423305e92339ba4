// Package editor serves the REST API behind the script editor UI.
package editor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"kokuban/internal/config"
	"kokuban/internal/editor/handlers"
	"kokuban/internal/editor/jobs"
	"kokuban/internal/editor/middleware"
	"kokuban/internal/store"
	"kokuban/internal/voice/generator"
)

type Options struct {
	Paths          config.Paths
	Pipeline       handlers.Pipeline
	Engine         handlers.Prober
	Scripts        *store.ScriptStore
	Settings       *store.SettingsStore
	AllowedOrigins []string
	// VoiceOnSave queues voice generation after every script write
	VoiceOnSave bool
}

type Server struct {
	opts     Options
	pipeline *serialPipeline
	builds   *jobs.Runner
	voices   *jobs.Runner
	handler  http.Handler

	queueMu      sync.Mutex
	voiceRunning bool
	voicePending bool
}

// serialPipeline lets one voice generation run at a time; the manifest
// and durations table have a single writer
type serialPipeline struct {
	handlers.Pipeline
	mu sync.Mutex
}

func (p *serialPipeline) GenerateVoices(ctx context.Context, opts generator.Options) (*generator.Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Pipeline.GenerateVoices(ctx, opts)
}

func NewServer(ctx context.Context, opts Options) (*Server, error) {
	// one build at a time; renders are CPU bound and share output files
	builds, err := jobs.NewRunner(ctx, 1)
	if err != nil {
		return nil, err
	}
	// queued runs are coalesced in queueVoices; the second worker covers a
	// job that has cleared voiceRunning but not yet returned to the pool
	voices, err := jobs.NewRunner(ctx, 2)
	if err != nil {
		return nil, err
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		opts:     opts,
		pipeline: &serialPipeline{Pipeline: opts.Pipeline},
		builds:   builds,
		voices:   voices,
	}
	s.handler = s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	paths := s.opts.Paths.Sync()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(s.opts.AllowedOrigins))

	health := handlers.NewHealthHandler(s.opts.Engine)
	r.Get("/api/health", health.Health)
	r.Get("/api/ready", health.Ready)

	var onSave func()
	if s.opts.VoiceOnSave {
		onSave = s.queueVoices
	}
	scriptH := handlers.NewScriptHandler(s.opts.Scripts, paths, onSave)
	r.Route("/api/script", func(r chi.Router) {
		r.Get("/", scriptH.List)
		r.Post("/", scriptH.Create)
		r.Put("/reorder", scriptH.Reorder)
		r.Get("/{id}", scriptH.Get)
		r.Put("/{id}", scriptH.Update)
		r.Delete("/{id}", scriptH.Delete)
	})

	settingsH := handlers.NewSettingsHandler(s.opts.Settings, paths)
	r.Route("/api/settings", func(r chi.Router) {
		r.Get("/", settingsH.Get)
		r.Put("/", settingsH.Update)
	})

	metadataH := handlers.NewMetadataHandler(s.opts.Paths.ImagesDir(), s.opts.Paths.CharactersFile())
	r.Route("/api/metadata", func(r chi.Router) {
		r.Get("/all", metadataH.All)
		r.Get("/characters", metadataH.Characters)
		r.Get("/emotions/{characterId}", metadataH.Emotions)
		r.Get("/animations", metadataH.Animations)
	})

	timelineH := handlers.NewTimelineHandler(paths)
	r.Route("/api/timeline", func(r chi.Router) {
		r.Get("/", timelineH.Get)
		r.Get("/plan", timelineH.Plan)
	})

	actionsH := handlers.NewActionsHandler(s.pipeline, paths, s.builds, s.voices)
	r.Route("/api/actions", func(r chi.Router) {
		r.Post("/generate-voices", actionsH.GenerateVoices)
		r.Post("/sync-script", actionsH.SyncScript)
		r.Post("/sync-settings", actionsH.SyncSettings)
		r.Post("/build-video", actionsH.BuildVideo)
		r.Get("/jobs/{id}", actionsH.Job)
	})

	// voices, images and the rendered video
	static := http.StripPrefix("/static/", http.FileServer(http.Dir(s.opts.Paths.PublicDir())))
	r.Handle("/static/*", static)

	return r
}

// queueVoices starts a background generation. A save that arrives while
// one is running marks it pending, and the running job goes again.
func (s *Server) queueVoices() {
	s.queueMu.Lock()
	if s.voiceRunning {
		s.voicePending = true
		s.queueMu.Unlock()
		return
	}
	s.voiceRunning = true
	s.queueMu.Unlock()

	if _, err := s.voices.Submit("generate-voices", s.runQueuedVoices); err != nil {
		s.queueMu.Lock()
		s.voiceRunning = false
		s.queueMu.Unlock()
		logrus.WithError(err).Warn("Voice generation not queued")
	}
}

func (s *Server) runQueuedVoices(ctx context.Context) (string, error) {
	runs := 0
	for {
		report, err := s.pipeline.GenerateVoices(ctx, generator.Options{})
		runs++

		s.queueMu.Lock()
		if err != nil || !s.voicePending || ctx.Err() != nil {
			s.voiceRunning = false
			s.voicePending = false
			s.queueMu.Unlock()

			if err != nil {
				return "", err
			}
			return fmt.Sprintf("runs %d, last: generated %d, skipped %d, failed %d",
				runs, report.Generated, report.Skipped, report.Failed), nil
		}
		s.voicePending = false
		s.queueMu.Unlock()
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute, // voice generation runs inside the request
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", addr).Info("Starting editor API")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logrus.Info("Shutting down editor API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced shutdown: %w", err)
	}
	for _, runner := range []*jobs.Runner{s.voices, s.builds} {
		if err := runner.Close(30 * time.Second); err != nil {
			logrus.WithError(err).Warn("Background jobs still running at exit")
		}
	}

	logrus.Info("Editor API stopped")
	return nil
}
