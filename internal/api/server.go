package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vozline/tramita/internal/orchestrator"
	"github.com/vozline/tramita/internal/report"
	"github.com/vozline/tramita/internal/store"
	"github.com/vozline/tramita/internal/transcript"
)

// Pipeline runs the call decision pipeline. *processor.Processor implements it.
type Pipeline interface {
	Process(ctx context.Context, call *transcript.Call) (*orchestrator.Result, error)
}

// CallReader serves stored calls. *store.Store implements it.
type CallReader interface {
	GetCall(ctx context.Context, conversationID string) (*store.CallRecord, error)
}

type Server struct {
	router   *chi.Mux
	port     int
	pipeline Pipeline
	calls    CallReader
}

func NewServer(port int, pipeline Pipeline, calls CallReader) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		pipeline: pipeline,
		calls:    calls,
	}

	router.Get("/health", s.health)
	router.Post("/webhook/call", s.webhook)
	router.Get("/api/v1/calls/{conversationID}", s.getCall)
	router.Get("/api/v1/calls/{conversationID}/report", s.getReport)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// webhook receives one completed call record from the voice gateway. This is
// the sole trigger for the pipeline; duplicate deliveries are safe.
func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	var call transcript.Call
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed call payload"})
		return
	}
	if strings.TrimSpace(call.ConversationID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "conversation_id is required"})
		return
	}

	result, err := s.pipeline.Process(r.Context(), &call)
	if err != nil {
		slog.Error("pipeline failed", "conversation_id", call.ConversationID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "processing failed"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getCall(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	rec, err := s.calls.GetCall(r.Context(), conversationID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "call not found"})
		return
	}
	if err != nil {
		slog.Error("failed to load call", "conversation_id", conversationID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id":   rec.ConversationID,
		"decision":          rec.Decision,
		"ledger":            rec.Ledger,
		"execution_summary": rec.ExecutionSummary,
		"processed_at":      rec.ProcessedAt,
	})
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	rec, err := s.calls.GetCall(r.Context(), conversationID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "call not found"})
		return
	}
	if err != nil {
		slog.Error("failed to load call", "conversation_id", conversationID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}

	data, err := report.Remediation(rec)
	if err != nil {
		slog.Error("failed to build report", "conversation_id", conversationID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "report failed"})
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s-ledger.xlsx", conversationID))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
