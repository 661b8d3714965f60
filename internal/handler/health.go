package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/carnet-scolaire/carnet/internal/dal"
)

// Health serves GET /healthz from the DAL liveness probe.
func Health(db *dal.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := db.Ping(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}
}
