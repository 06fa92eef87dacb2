package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"sitechat-rag/internal/models"
)

const maxUploadBytes = 32 << 20

// RAGService is the retrieval core the HTTP surface delegates to.
type RAGService interface {
	IngestDocument(ctx context.Context, siteID, text string) (deleted, inserted int, err error)
	IngestProducts(ctx context.Context, siteID string, products []models.Product) (deleted, inserted int, err error)
	Chat(ctx context.Context, siteID, message string, history []models.ChatTurn) string
}

type Server struct {
	svc RAGService
}

func New(svc RAGService) *Server {
	return &Server{svc: svc}
}

// Handler builds the plugin API surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /plugin/doc", s.handleDoc)
	mux.HandleFunc("POST /plugin/manual", s.handleManual)
	mux.HandleFunc("POST /plugin/api", s.handleProducts)
	mux.HandleFunc("POST /plugin/chat", s.handleChat)
	return withRequestID(withCORS(mux))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("encoding response failed")
	}
}

// writeError maps the error taxonomy onto client/server faults: anything
// wrapping ErrInvalidInput is the caller's fault, the rest is ours.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, models.ErrInvalidInput) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		log.Info().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// withCORS mirrors the allow-all policy of the WordPress plugin backend.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
