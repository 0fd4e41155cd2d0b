package health

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/zsiec/mediatime/pkg/version"
)

// Response represents the health check response.
type Response struct {
	Status    Status            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]*Check `json:"checks,omitempty"`
}

// Handler serves the health, readiness and liveness endpoints.
type Handler struct {
	manager   *Manager
	startTime time.Time
}

// NewHandler creates a health check handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{
		manager:   manager,
		startTime: time.Now(),
	}
}

// HandleHealth runs every check and reports the results. Down is served as
// 503; degraded still answers 200.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	checks := h.manager.RunChecks(ctx)
	overallStatus := h.manager.GetOverallStatus()

	response := Response{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Version:   version.GetInfo().Version,
		Uptime:    h.getUptime(),
		Checks:    checks,
	}

	statusCode := http.StatusOK
	if overallStatus == StatusDown {
		statusCode = http.StatusServiceUnavailable
	}

	h.writeJSON(w, statusCode, response)
}

// HandleReady reports the status of the last check run without running the
// checks again.
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	overallStatus := h.manager.GetOverallStatus()

	response := struct {
		Status    Status    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
		Failing   []string  `json:"failing,omitempty"`
	}{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Failing:   h.manager.FailingChecks(),
	}

	statusCode := http.StatusOK
	if overallStatus == StatusDown {
		statusCode = http.StatusServiceUnavailable
	}

	h.writeJSON(w, statusCode, response)
}

// HandleLive always answers 200 while the process serves requests.
func (h *Handler) HandleLive(w http.ResponseWriter, r *http.Request) {
	response := struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}{
		Status:    "alive",
		Timestamp: time.Now(),
	}

	h.writeJSON(w, http.StatusOK, response)
}

func (h *Handler) getUptime() string {
	return formatUptime(time.Since(h.startTime))
}

// formatUptime renders d as "2 days 3 hours 1 minute 5 seconds", leaving out
// zero units.
func formatUptime(d time.Duration) string {
	total := int(d.Seconds())
	units := []struct {
		name string
		size int
	}{
		{"day", 86400},
		{"hour", 3600},
		{"minute", 60},
		{"second", 1},
	}

	result := ""
	for _, u := range units {
		n := total / u.size
		total %= u.size
		if n == 0 && !(u.size == 1 && result == "") {
			continue
		}
		if result != "" {
			result += " "
		}
		result += formatUnit(n, u.name)
	}
	return result
}

func formatUnit(value int, unit string) string {
	if value == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(value) + " " + unit + "s"
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.manager.logger.WithError(err).Error("Failed to encode health response")
	}
}
