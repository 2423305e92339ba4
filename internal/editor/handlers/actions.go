package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"kokuban/internal/datasync"
	"kokuban/internal/editor/jobs"
	"kokuban/internal/voice/generator"
)

// Pipeline runs the production steps the editor can trigger
type Pipeline interface {
	GenerateVoices(ctx context.Context, opts generator.Options) (*generator.Report, error)
	BuildVideo(ctx context.Context) (string, error)
}

type ActionsHandler struct {
	pipeline Pipeline
	paths    datasync.Paths
	builds   *jobs.Runner
	// others are searched by the job status endpoint
	others []*jobs.Runner
}

func NewActionsHandler(pipeline Pipeline, paths datasync.Paths, builds *jobs.Runner, others ...*jobs.Runner) *ActionsHandler {
	return &ActionsHandler{pipeline: pipeline, paths: paths, builds: builds, others: others}
}

type generateRequest struct {
	Force bool `json:"force"`
}

// GenerateVoices runs the synthesis cache in the request. An empty body
// means an incremental run.
func (h *ActionsHandler) GenerateVoices(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	report, err := h.pipeline.GenerateVoices(r.Context(), generator.Options{ForceAll: req.Force})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, generator.ErrEngineUnavailable) {
			status = http.StatusServiceUnavailable
		}
		logrus.WithError(err).Error("Failed to generate voices")
		writeJSON(w, status, map[string]interface{}{
			"error":   "Failed to generate voices",
			"message": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": report.Failed == 0,
		"message": "Voice generation completed",
		"report":  report,
	})
}

func (h *ActionsHandler) SyncScript(w http.ResponseWriter, r *http.Request) {
	doc, err := datasync.SyncScript(h.paths)
	if err != nil {
		logrus.WithError(err).Error("Failed to sync script")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":   "Failed to sync script",
			"message": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Script synced successfully",
		"lines":   len(doc.Lines),
	})
}

func (h *ActionsHandler) SyncSettings(w http.ResponseWriter, r *http.Request) {
	if _, err := datasync.SyncSettings(h.paths); err != nil {
		logrus.WithError(err).Error("Failed to sync settings")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":   "Failed to sync settings",
			"message": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Settings synced successfully",
	})
}

// BuildVideo starts the render in the background and returns its job id
func (h *ActionsHandler) BuildVideo(w http.ResponseWriter, r *http.Request) {
	job, err := h.builds.Submit("build-video", h.pipeline.BuildVideo)
	if err != nil {
		if errors.Is(err, jobs.ErrBusy) {
			writeError(w, http.StatusConflict, "A video build is already running")
			return
		}
		logrus.WithError(err).Error("Failed to start video build")
		writeError(w, http.StatusInternalServerError, "Failed to start video build")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"message": "Video build started",
		"jobId":   job.ID,
	})
}

func (h *ActionsHandler) Job(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job ID")
		return
	}

	for _, runner := range append([]*jobs.Runner{h.builds}, h.others...) {
		if job, ok := runner.Get(id); ok {
			writeJSON(w, http.StatusOK, job)
			return
		}
	}

	writeError(w, http.StatusNotFound, "job not found")
}
