package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"sitechat-rag/internal/models"
	"sitechat-rag/internal/parser"
)

// handleDoc ingests one uploaded document (txt/md/pdf/docx/xlsx) for a site,
// replacing the site's document corpus.
func (s *Server) handleDoc(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, fmt.Errorf("%w: invalid multipart form: %v", models.ErrInvalidInput, err))
		return
	}
	siteID := r.FormValue("site_id")
	if siteID == "" {
		writeError(w, fmt.Errorf("%w: site_id is required", models.ErrInvalidInput))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, fmt.Errorf("%w: file is required", models.ErrInvalidInput))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, fmt.Errorf("read upload: %w", err))
		return
	}

	text, err := parser.ExtractText(header.Filename, data)
	if err != nil {
		writeError(w, err)
		return
	}

	deleted, inserted, err := s.svc.IngestDocument(r.Context(), siteID, text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted_count":  deleted,
		"inserted_count": inserted,
		"message":        fmt.Sprintf("Inserted %d chunks into database.", inserted),
	})
}

// handleManual ingests manually entered FAQ text.
func (s *Server) handleManual(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, fmt.Errorf("%w: invalid form: %v", models.ErrInvalidInput, err))
		return
	}
	siteID := r.FormValue("site_id")
	manualFAQ := r.FormValue("manual_faq")
	if siteID == "" {
		writeError(w, fmt.Errorf("%w: site_id is required", models.ErrInvalidInput))
		return
	}
	if strings.TrimSpace(manualFAQ) == "" {
		writeError(w, fmt.Errorf("%w: manual FAQ content cannot be empty", models.ErrInvalidInput))
		return
	}

	deleted, inserted, err := s.svc.IngestDocument(r.Context(), siteID, manualFAQ)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted_count":  deleted,
		"inserted_count": inserted,
		"message":        fmt.Sprintf("Inserted %d chunks into database.", inserted),
	})
}

type productsRequest struct {
	SiteURL  string           `json:"site_url"`
	SiteID   string           `json:"site_id"`
	Products []models.Product `json:"products"`
}

// handleProducts receives the store plugin's product export and replaces
// the site's catalog.
func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	var req productsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid JSON payload: %v", models.ErrInvalidInput, err))
		return
	}
	if req.SiteID == "" {
		writeError(w, fmt.Errorf("%w: site_id is required", models.ErrInvalidInput))
		return
	}

	_, inserted, err := s.svc.IngestProducts(r.Context(), req.SiteID, req.Products)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "success",
		"products_processed": inserted,
		"message":            fmt.Sprintf("Successfully processed %d products", inserted),
	})
}

type chatRequest struct {
	SiteID      string            `json:"site_id"`
	Message     string            `json:"message"`
	ChatHistory []models.ChatTurn `json:"chat_history"`
}

// handleChat answers one chat message. The response body always carries a
// reply string; retrieval failures degrade inside the service.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid JSON payload: %v", models.ErrInvalidInput, err))
		return
	}
	if req.SiteID == "" || req.Message == "" {
		writeError(w, fmt.Errorf("%w: both 'site_id' and 'message' are required", models.ErrInvalidInput))
		return
	}

	response := s.svc.Chat(r.Context(), req.SiteID, req.Message, req.ChatHistory)
	writeJSON(w, http.StatusOK, map[string]string{"response": response})
}
