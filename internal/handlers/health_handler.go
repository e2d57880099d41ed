package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/njugunanduati/medicine-dose-tracker/internal/logging"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

type dbHealth struct {
	Status string `json:"status"`
}

type healthResponse struct {
	Status string   `json:"status"`
	DB     dbHealth `json:"db"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", DB: dbHealth{Status: "ok"}}
	status := http.StatusOK
	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		logging.FromContext(r.Context()).Error("database ping failed", "error", err)
		resp.DB = dbHealth{Status: "down"}
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
