package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"kokuban/internal/datasync"
	"kokuban/internal/domain/settings"
	"kokuban/internal/store"
)

type SettingsHandler struct {
	store *store.SettingsStore
	paths datasync.Paths
}

func NewSettingsHandler(s *store.SettingsStore, paths datasync.Paths) *SettingsHandler {
	return &SettingsHandler{store: s, paths: paths}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	vs, err := h.store.Get()
	if err != nil {
		logrus.WithError(err).Error("Failed to get settings")
		writeError(w, http.StatusInternalServerError, "Failed to get settings")
		return
	}

	writeJSON(w, http.StatusOK, vs)
}

// Update saves the settings, then regenerates settings.json. A failed
// sync is logged; the settings are saved either way.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var vs settings.VideoSettings
	if err := json.NewDecoder(r.Body).Decode(&vs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := vs.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.store.Update(vs)
	if err != nil {
		logrus.WithError(err).Error("Failed to update settings")
		writeError(w, http.StatusInternalServerError, "Failed to update settings")
		return
	}

	if _, err := datasync.SyncSettings(h.paths); err != nil {
		logrus.WithError(err).Error("Failed to sync settings")
	}

	writeJSON(w, http.StatusOK, updated)
}
