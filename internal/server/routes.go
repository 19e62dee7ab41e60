package server

import (
	"log/slog"
	"net/http"
)

// NewRouter creates the HTTP routing configuration with all endpoints
// and middleware wired up.
func NewRouter(h *Handlers, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("POST /images/edits", h.EditImage)
	mux.HandleFunc("POST /images", h.CreateImage)
	mux.HandleFunc("POST /speech", h.CreateSpeech)

	mux.HandleFunc("POST /videos", h.CreateVideoJob)
	mux.HandleFunc("POST /videos/remixes", h.CreateRemixJob)

	mux.HandleFunc("GET /jobs", h.ListJobs)
	mux.HandleFunc("GET /jobs/{id}", h.GetJob)
	mux.HandleFunc("GET /jobs/{id}/download", h.DownloadJob)
	mux.HandleFunc("DELETE /jobs/{id}", h.DeleteJob)

	return ChainMiddleware(mux,
		RecoveryMiddleware(logger),
		RequestIDMiddleware,
		LoggingMiddleware(logger),
		CORSMiddleware,
	)
}
