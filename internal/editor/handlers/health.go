package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Prober reports the synthesis engine version
type Prober interface {
	Version(ctx context.Context) (string, error)
}

type HealthHandler struct {
	engine Prober
}

func NewHealthHandler(engine Prober) *HealthHandler {
	return &HealthHandler{engine: engine}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready also probes the synthesis engine
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}

	if h.engine != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if version, err := h.engine.Version(ctx); err != nil {
			checks["tts"] = "unhealthy: " + err.Error()
		} else {
			checks["tts"] = "ok (" + version + ")"
		}
	}

	status := http.StatusOK
	for _, v := range checks {
		if strings.HasPrefix(v, "unhealthy") {
			status = http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, status, map[string]interface{}{"status": statusStr(status), "checks": checks})
}

func statusStr(code int) string {
	if code == http.StatusOK {
		return "ok"
	}
	return "unhealthy"
}
