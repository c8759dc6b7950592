package service

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/sibylhq/sibyl/internal/ingest"
	"github.com/sibylhq/sibyl/pkg/models"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleQuery routes a query through the orchestrator. The pipeline
// never errors; degraded outcomes are encoded in the response body.
func (s *Service) handleQuery(w http.ResponseWriter, r *http.Request) {
	var q models.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(q.Text) == "" {
		writeError(w, http.StatusBadRequest, "query text is required")
		return
	}

	resp := s.orchestrator.Handle(r.Context(), q)
	writeJSON(w, http.StatusOK, resp)
}

type ingestRequest struct {
	DocumentID string            `json:"document_id,omitempty"`
	UserID     string            `json:"user_id"`
	Class      string            `json:"class,omitempty"`
	Text       string            `json:"text"`
	Source     string            `json:"source,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (s *Service) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "document text is required")
		return
	}
	if req.UserID == "" {
		req.UserID = "default"
	}

	result, err := s.ingester.Ingest(r.Context(), ingest.Document{
		ID:       req.DocumentID,
		UserID:   req.UserID,
		Class:    req.Class,
		Text:     req.Text,
		Source:   req.Source,
		Metadata: req.Metadata,
	})
	if err != nil {
		log.Error().Err(err).Msg("Ingestion failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "id")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = "default"
	}
	class := r.URL.Query().Get("class")

	deleted, err := s.ingester.Delete(r.Context(), userID, class, documentID)
	if err != nil {
		log.Error().Err(err).Str("documentID", documentID).Msg("Deletion failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"document_id": documentID,
		"deleted":     deleted,
	})
}

type agentInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Service) handleAgents(w http.ResponseWriter, _ *http.Request) {
	registered := s.orchestrator.Router().Agents()
	infos := make([]agentInfo, len(registered))
	for i, a := range registered {
		infos[i] = agentInfo{Name: a.Name(), Description: a.Description()}
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": infos})
}

func (s *Service) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.settings.Snapshot())
}

func (s *Service) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch models.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if patch.Temperature != nil && (*patch.Temperature < 0 || *patch.Temperature > 2) {
		writeError(w, http.StatusBadRequest, "temperature must be in [0,2]")
		return
	}
	if patch.MaxTokens != nil && *patch.MaxTokens <= 0 {
		writeError(w, http.StatusBadRequest, "max_tokens must be positive")
		return
	}
	if patch.Model != nil && strings.TrimSpace(*patch.Model) == "" {
		writeError(w, http.StatusBadRequest, "model must not be empty")
		return
	}

	writeJSON(w, http.StatusOK, s.settings.Apply(patch))
}

// handleStatus reports service counters. An optional ?collection= query
// parameter adds the chunk count for that collection.
func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"version":   s.version,
		"uptime":    time.Since(s.startTime).Round(time.Second).String(),
		"retrieval": s.engine.Metrics().Snapshot(),
		"settings":  s.settings.Snapshot(),
	}

	if collection := r.URL.Query().Get("collection"); collection != "" {
		count, err := s.index.Count(r.Context(), models.Collection(collection))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		status["collection"] = collection
		status["chunks"] = count
	}

	writeJSON(w, http.StatusOK, status)
}
