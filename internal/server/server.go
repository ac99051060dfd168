// Package server exposes the local control-plane HTTP surface that a
// frontend drives.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/wingmanhq/wingman/internal/config"
	wingmanErrors "github.com/wingmanhq/wingman/internal/errors"
	"github.com/wingmanhq/wingman/internal/lifecycle"
	"github.com/wingmanhq/wingman/internal/llm"
	"github.com/wingmanhq/wingman/internal/observer/apptracker"
	"github.com/wingmanhq/wingman/internal/observer/input"
	"github.com/wingmanhq/wingman/internal/registry"
	"github.com/wingmanhq/wingman/internal/summarizer"
)

// Server binds every component's operations to HTTP endpoints.
type Server struct {
	cfg          *config.Config
	registry     *registry.Registry
	lifecycle    *lifecycle.Manager
	summaries    *summarizer.Summarizer
	tracker      *apptracker.Tracker
	interactions *llm.InteractionLog
	input        *input.Observer

	// rebuildWatcher swaps the filesystem observer after watch.dirs changes.
	rebuildWatcher func(dirs []string) error
	// persistAll flushes every store to disk.
	persistAll func() error
	// requestShutdown asks the daemon to stop gracefully.
	requestShutdown func()
}

type Options struct {
	Config          *config.Config
	Registry        *registry.Registry
	Lifecycle       *lifecycle.Manager
	Summaries       *summarizer.Summarizer
	Tracker         *apptracker.Tracker
	Interactions    *llm.InteractionLog
	Input           *input.Observer
	RebuildWatcher  func(dirs []string) error
	PersistAll      func() error
	RequestShutdown func()
}

func New(opts Options) *Server {
	return &Server{
		cfg:             opts.Config,
		registry:        opts.Registry,
		lifecycle:       opts.Lifecycle,
		summaries:       opts.Summaries,
		tracker:         opts.Tracker,
		interactions:    opts.Interactions,
		input:           opts.Input,
		rebuildWatcher:  opts.RebuildWatcher,
		persistAll:      opts.PersistAll,
		requestShutdown: opts.RequestShutdown,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /config", s.handleGetConfig)
	mux.HandleFunc("PUT /config", s.handlePutConfig)

	mux.HandleFunc("GET /recent-actions", s.handleRecentActions)
	mux.HandleFunc("GET /recent-actions/detailed", s.handleRecentActionsDetailed)

	mux.HandleFunc("GET /automation/action-registry/stats", s.handleRegistryStats)
	mux.HandleFunc("GET /automation/action-registry/all", s.handleRegistryAll)
	mux.HandleFunc("GET /automation/action-registry/recent", s.handleRegistryRecent)

	mux.HandleFunc("GET /automation/pending-suggestions", s.handlePendingSuggestions)
	mux.HandleFunc("GET /automation/suggestions/all", s.handleAllSuggestions)
	mux.HandleFunc("POST /automation/suggestion/{id}/accept", s.handleAccept)
	mux.HandleFunc("POST /automation/suggestion/{id}/reject", s.handleReject)
	mux.HandleFunc("POST /automation/suggestion/{id}/explain", s.handleExplain)
	mux.HandleFunc("POST /automation/suggestion/{id}/refine", s.handleRefine)
	mux.HandleFunc("POST /automation/suggestion/{id}/confirm-and-execute", s.handleConfirmAndExecute)
	mux.HandleFunc("GET /automation/suggestion/{id}/status", s.handleSuggestionStatus)

	mux.HandleFunc("POST /automation/mute", s.handleMute)
	mux.HandleFunc("GET /automation/time-saved", s.handleTimeSaved)
	mux.HandleFunc("GET /automation/current-activity", s.handleCurrentActivity)
	mux.HandleFunc("GET /automation/keyboard/recent", s.handleKeyboardRecent)
	mux.HandleFunc("GET /automation/long-term/status", s.handleLongTermStatus)

	mux.HandleFunc("GET /summaries/minute", s.handleMinuteSummaries)
	mux.HandleFunc("GET /summaries/ten-minute", s.handleTenMinuteSummaries)
	mux.HandleFunc("GET /summaries/{kind}/{id}", s.handleGetSummary)
	mux.HandleFunc("DELETE /summaries/{kind}/{id}", s.handleDeleteSummary)

	mux.HandleFunc("GET /app-usage/today", s.handleAppUsageToday)
	mux.HandleFunc("GET /app-usage/week", s.handleAppUsageWeek)
	mux.HandleFunc("GET /app-usage/hourly", s.handleAppUsageHourly)
	mux.HandleFunc("GET /app-usage/stats", s.handleAppUsageStats)

	mux.HandleFunc("GET /ai-interactions", s.handleAIInteractions)
	mux.HandleFunc("POST /save-data", s.handleSaveData)
	mux.HandleFunc("GET /debug-status", s.handleDebugStatus)
	mux.HandleFunc("POST /shutdown", s.handleShutdown)

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to encode response", "error", err)
	}
}

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, wingmanErrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, wingmanErrors.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, wingmanErrors.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, wingmanErrors.ErrConfiguration):
		status = http.StatusServiceUnavailable
	case errors.Is(err, wingmanErrors.ErrLLM):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return wingmanErrors.InvalidInput("invalid request body: %v", err)
	}
	return nil
}
