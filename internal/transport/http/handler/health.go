package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether the code delivery channel is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthEnvelope is the health-check response.
type HealthEnvelope struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// HealthHandler reports API and email channel readiness.
type HealthHandler struct {
	channel Pinger
	timeout time.Duration
}

func NewHealthHandler(channel Pinger) *HealthHandler {
	return &HealthHandler{channel: channel, timeout: 3 * time.Second}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	env := HealthEnvelope{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Services:  map[string]string{"api": "up", "email": "ready"},
	}
	if h.channel == nil {
		env.Services["email"] = "not configured"
		env.Status = "degraded"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		if err := h.channel.Ping(ctx); err != nil {
			env.Services["email"] = "unavailable"
			env.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, env)
}
