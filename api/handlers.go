package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/siherrmann/grimoire/core/orchestrator"
	"github.com/siherrmann/grimoire/model"
)

const (
	errorTypeValidation = "validation"
	errorTypeRetrieval  = "retrieval"
	errorTypeInternal   = "internal"
)

// QueryRequest is the body of POST /query.
// UseWeb is accepted for compatibility and has no effect, escalation decides web use.
type QueryRequest struct {
	Question string `json:"question" validate:"required,min=1,max=500"`
	TopK     *int   `json:"top_k" validate:"omitempty,min=1,max=10"`
	UseWeb   *bool  `json:"use_web"`
}

// QueryResponse is a successful answer
type QueryResponse struct {
	Success bool `json:"success"`
	*model.QueryResult
}

// ErrorResponse is returned for every failed request
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
}

// InfoResponse describes the service
type InfoResponse struct {
	Message   string   `json:"message"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

// HistoryResponse lists answered questions, oldest first
type HistoryResponse struct {
	Success bool                  `json:"success"`
	Count   int                   `json:"count"`
	Entries []*model.HistoryEntry `json:"entries"`
}

// DeleteResponse reports how many entries a clear removed
type DeleteResponse struct {
	Success bool `json:"success"`
	Deleted int  `json:"deleted"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, InfoResponse{
		Message: "Grimoire rulebook assistant API",
		Version: model.Version,
		Endpoints: []string{
			"GET /health",
			"POST /query",
			"GET /stats",
			"GET /history",
			"DELETE /history",
			"DELETE /cache",
		},
	})
}

// handleHealth always answers 200, degraded components are reported in the body
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Health(r.Context()))
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var request QueryRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	if err := decoder.Decode(&request); err != nil {
		writeError(w, http.StatusUnprocessableEntity, errorTypeValidation, "invalid request body: "+err.Error())
		return
	}

	request.Question = strings.TrimSpace(request.Question)
	if err := s.validate.Struct(&request); err != nil {
		writeError(w, http.StatusUnprocessableEntity, errorTypeValidation, validationMessage(err))
		return
	}

	topK := s.defaultTopK
	if request.TopK != nil {
		topK = *request.TopK
	}

	result, err := s.service.Answer(r.Context(), request.Question, topK)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, QueryResponse{Success: true, QueryResult: result})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusUnprocessableEntity, errorTypeValidation, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := s.service.History(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []*model.HistoryEntry{}
	}

	writeJSON(w, http.StatusOK, HistoryResponse{Success: true, Count: len(entries), Entries: entries})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.service.ClearHistory(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Success: true, Deleted: deleted})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.service.ClearCache(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Success: true, Deleted: deleted})
}

// writeServiceError maps stage failures to 503 and everything else to 500
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var retrievalErr *orchestrator.RetrievalError
	var generationErr *orchestrator.GenerationError

	switch {
	case errors.As(err, &retrievalErr):
		s.logger.Warn("Query failed during retrieval", slog.Any("error", err))
		writeError(w, http.StatusServiceUnavailable, errorTypeRetrieval, err.Error())
	case errors.As(err, &generationErr):
		s.logger.Warn("Query failed during generation", slog.String("stage", string(generationErr.Stage)), slog.Any("error", err))
		writeError(w, http.StatusServiceUnavailable, string(generationErr.Stage), err.Error())
	default:
		s.logger.Error("Request failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, errorTypeInternal, err.Error())
	}
}

func validationMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err.Error()
	}

	messages := make([]string, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		switch fieldErr.Tag() {
		case "required":
			messages = append(messages, strings.ToLower(fieldErr.Field())+" is required")
		default:
			messages = append(messages, strings.ToLower(fieldErr.Field())+" must satisfy "+fieldErr.Tag()+"="+fieldErr.Param())
		}
	}
	return strings.Join(messages, "; ")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errorType string, message string) {
	writeJSON(w, status, ErrorResponse{Success: false, Error: message, ErrorType: errorType})
}
