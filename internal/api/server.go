// Package api serves the composition endpoints over HTTP.
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
	"github.com/google/uuid"

	"github.com/lumenmail/scribe/internal/generator"
	"github.com/lumenmail/scribe/internal/history"
)

const fallbackMessage = "Sorry, I encountered an error while generating content. Please try again with a different prompt."

// HistoryRecorder archives sent mail for later retrieval.
type HistoryRecorder interface {
	Save(ctx context.Context, sender string, recipients []string, subject, body string, embedding []float64) (uuid.UUID, error)
}

var _ HistoryRecorder = (*history.Store)(nil)

type Server struct {
	router    *chi.Mux
	port      int
	generator *generator.Generator
	history   HistoryRecorder
	embedder  generator.Embedder
	logger    *slog.Logger
}

// NewServer wires the composition routes. history and embedder may be nil;
// the history endpoint then reports 501.
func NewServer(port int, gen *generator.Generator, hist HistoryRecorder, embedder generator.Embedder, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:    router,
		port:      port,
		generator: gen,
		history:   hist,
		embedder:  embedder,
		logger:    logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/scribe/status", s.status)
	router.Post("/api/v1/compose", s.compose)
	router.Post("/api/v1/compose/quick-replies", s.quickReplies)
	router.Post("/api/v1/compose/reply", s.reply)
	router.Post("/api/v1/history", s.recordHistory)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":        "scribe",
		"status":         "ok",
		"historyEnabled": s.history != nil,
	})
}

type composeRequest struct {
	Prompt         string              `json:"prompt"`
	CurrentContent string              `json:"currentContent"`
	To             []string            `json:"to"`
	ConversationID string              `json:"conversationId"`
	User           *generator.Identity `json:"user"`
}

func (r composeRequest) context() generator.Context {
	return generator.Context{
		CurrentContent: r.CurrentContent,
		Recipients:     r.To,
		ConversationID: r.ConversationID,
		User:           r.User,
	}
}

type composeResponse struct {
	ID       string             `json:"id"`
	Content  string             `json:"content"`
	Kind     generator.Kind     `json:"kind"`
	Document generator.Document `json:"document"`
}

func (s *Server) compose(w http.ResponseWriter, r *http.Request) {
	var req composeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	resps, err := s.generator.Generate(r.Context(), req.Prompt, req.context())
	if err != nil {
		s.composeFailure(w, r, err)
		return
	}

	// A clarifying question outranks draft content.
	for _, resp := range resps {
		if resp.Kind == generator.KindQuestion {
			writeJSON(w, http.StatusOK, composeResponse{
				ID:       resp.ID,
				Content:  resp.Content,
				Kind:     generator.KindQuestion,
				Document: generator.BuildDocument(resp.Content),
			})
			return
		}
	}

	var parts []string
	var id string
	for _, resp := range resps {
		if resp.Kind == generator.KindEmail {
			parts = append(parts, resp.Content)
			if id == "" {
				id = resp.ID
			}
		}
	}
	content := strings.TrimSpace(strings.Join(parts, "\n\n"))
	writeJSON(w, http.StatusOK, composeResponse{
		ID:       id,
		Content:  content,
		Kind:     generator.KindEmail,
		Document: generator.BuildDocument(content),
	})
}

func (s *Server) quickReplies(w http.ResponseWriter, r *http.Request) {
	var req composeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	resps, err := s.generator.QuickReplies(r.Context(), req.Prompt, req.context())
	if err != nil {
		s.composeFailure(w, r, err)
		return
	}

	out := make([]composeResponse, len(resps))
	for i, resp := range resps {
		out[i] = composeResponse{
			ID:       resp.ID,
			Content:  resp.Content,
			Kind:     resp.Kind,
			Document: generator.BuildDocument(resp.Content),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"replies": out})
}

type replyRequest struct {
	Thread         generator.Thread    `json:"thread"`
	To             []string            `json:"to"`
	ConversationID string              `json:"conversationId"`
	User           *generator.Identity `json:"user"`
}

func (s *Server) reply(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Thread.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "thread messages are required")
		return
	}

	result, err := s.generator.GenerateReply(r.Context(), req.Thread, generator.Context{
		Recipients:     req.To,
		ConversationID: req.ConversationID,
		User:           req.User,
	})
	if err != nil {
		s.composeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type historyRequest struct {
	Sender     string   `json:"sender"`
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
}

func (s *Server) recordHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, "email history store is not configured")
		return
	}

	var req historyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Sender == "" || req.Body == "" {
		writeError(w, http.StatusBadRequest, "sender and body are required")
		return
	}

	// Embedding is best effort; a message without one is still archived.
	var embedding []float64
	if s.embedder != nil {
		vectors, err := s.embedder.Embed(r.Context(), map[string]string{"body": req.Body})
		if err != nil {
			s.logger.Warn("embedding sent message failed", "error", err)
		} else {
			embedding = vectors["body"]
		}
	}

	id, err := s.history.Save(r.Context(), req.Sender, req.Recipients, req.Subject, req.Body, embedding)
	if err != nil {
		s.logger.Error("saving message to history failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save message")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

// composeFailure maps generation errors to the apologetic system response.
// A cancelled request gets no body; the client is already gone.
func (s *Server) composeFailure(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		s.logger.Debug("generation cancelled", "path", r.URL.Path)
		return
	}
	s.logger.Error("generation failed", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusBadGateway, composeResponse{
		ID:       "system-" + uuid.NewString(),
		Content:  fallbackMessage,
		Kind:     generator.KindSystem,
		Document: generator.BuildDocument(fallbackMessage),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
