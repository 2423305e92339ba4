package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"kokuban/internal/datasync"
	"kokuban/internal/domain/script"
	"kokuban/internal/store"
	"kokuban/internal/voice/manifest"
)

type ScriptHandler struct {
	store *store.ScriptStore
	paths datasync.Paths
	// onSave runs after every successful write, e.g. to queue voice generation
	onSave func()
}

func NewScriptHandler(s *store.ScriptStore, paths datasync.Paths, onSave func()) *ScriptHandler {
	return &ScriptHandler{store: s, paths: paths, onSave: onSave}
}

// resolve fills voiceFile, durations and pauses like the sync step does
func (h *ScriptHandler) resolve(lines []script.Line) ([]script.Line, error) {
	defaults, err := store.LoadDefaults(h.paths.Defaults)
	if err != nil {
		return nil, err
	}
	durations, err := manifest.LoadDurations(h.paths.Durations)
	if err != nil {
		return nil, err
	}
	return script.Resolve(lines, durations, defaults), nil
}

func (h *ScriptHandler) saved() {
	if h.onSave != nil {
		h.onSave()
	}
}

func (h *ScriptHandler) List(w http.ResponseWriter, r *http.Request) {
	lines, err := h.store.List()
	if err != nil {
		writeStoreError(w, err, "Failed to get script")
		return
	}

	resolved, err := h.resolve(lines)
	if err != nil {
		writeStoreError(w, err, "Failed to get script")
		return
	}

	writeJSON(w, http.StatusOK, resolved)
}

func (h *ScriptHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := lineID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid line id")
		return
	}

	line, err := h.store.Get(id)
	if err != nil {
		writeStoreError(w, err, "Failed to get script line")
		return
	}

	resolved, err := h.resolve([]script.Line{line})
	if err != nil {
		writeStoreError(w, err, "Failed to get script line")
		return
	}

	writeJSON(w, http.StatusOK, resolved[0])
}

func (h *ScriptHandler) Create(w http.ResponseWriter, r *http.Request) {
	var line script.Line
	if err := json.NewDecoder(r.Body).Decode(&line); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.store.Create(line)
	if err != nil {
		writeStoreError(w, err, "Failed to create script line")
		return
	}
	h.saved()

	writeJSON(w, http.StatusCreated, created)
}

func (h *ScriptHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := lineID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid line id")
		return
	}

	var patch store.LinePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.store.Update(id, patch)
	if err != nil {
		writeStoreError(w, err, "Failed to update script line")
		return
	}
	h.saved()

	writeJSON(w, http.StatusOK, updated)
}

func (h *ScriptHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := lineID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid line id")
		return
	}

	if err := h.store.Delete(id); err != nil {
		writeStoreError(w, err, "Failed to delete script line")
		return
	}
	h.saved()

	w.WriteHeader(http.StatusNoContent)
}

type reorderRequest struct {
	IDs *[]int `json:"ids"`
}

func (h *ScriptHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IDs == nil {
		writeError(w, http.StatusBadRequest, "ids must be an array")
		return
	}

	reordered, err := h.store.Reorder(*req.IDs)
	if err != nil {
		writeStoreError(w, err, "Failed to reorder script")
		return
	}

	logrus.WithField("ids", *req.IDs).Debug("Script reordered")
	writeJSON(w, http.StatusOK, reordered)
}
