package server

import (
	"context"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	wingmanErrors "github.com/wingmanhq/wingman/internal/errors"
	"github.com/wingmanhq/wingman/internal/registry"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Flatten())
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var updates map[string]any
	if err := decodeBody(r, &updates); err != nil {
		writeError(w, err)
		return
	}

	watchDirsChanged, err := s.cfg.Apply(updates)
	if err != nil {
		writeError(w, wingmanErrors.InvalidInput("%v", err))
		return
	}

	if err := s.cfg.Save(); err != nil {
		writeError(w, err)
		return
	}

	if watchDirsChanged && s.rebuildWatcher != nil {
		if err := s.rebuildWatcher(s.cfg.Watch.Dirs); err != nil {
			writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":         "config updated",
		"watcher_rebuilt": watchDirsChanged,
		"config":          s.cfg.Flatten(),
	})
}

func (s *Server) handleRecentActions(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	acts := s.registry.Recent(5 * time.Minute)
	out := make([]map[string]any, 0, len(acts))
	for _, a := range acts {
		if category != "" && a.DetailString("operation_category") != category {
			continue
		}
		out = append(out, actionView(a, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": out, "count": len(out)})
}

func (s *Server) handleRecentActionsDetailed(w http.ResponseWriter, r *http.Request) {
	acts := s.registry.Recent(5 * time.Minute)
	out := make([]map[string]any, 0, len(acts))
	for _, a := range acts {
		out = append(out, actionView(a, true))
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": out, "count": len(out)})
}

func actionView(a registry.Action, detailed bool) map[string]any {
	view := map[string]any{
		"id":          a.ID,
		"timestamp":   a.Timestamp,
		"action_type": a.Type,
		"source":      a.Source,
		"details":     a.Details,
	}
	if detailed {
		view["metadata"] = a.Metadata
		if a.IsFileEvent() {
			src := a.DetailString("src_path")
			view["filename"] = filepath.Base(src)
			view["directory"] = filepath.Dir(src)
		}
	}
	return view
}

func (s *Server) handleRegistryStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Stats())
}

func (s *Server) handleRegistryAll(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	acts := s.registry.All(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"actions":     acts,
		"count":       len(acts),
		"total_count": s.registry.Size(),
	})
}

func (s *Server) handleRegistryRecent(w http.ResponseWriter, r *http.Request) {
	seconds := queryInt(r, "seconds", 300)
	acts := s.registry.Recent(time.Duration(seconds) * time.Second)
	writeJSON(w, http.StatusOK, map[string]any{"actions": acts, "count": len(acts)})
}

func (s *Server) handlePendingSuggestions(w http.ResponseWriter, r *http.Request) {
	pending := s.lifecycle.Pending()
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": pending, "count": len(pending)})
}

func (s *Server) handleAllSuggestions(w http.ResponseWriter, r *http.Request) {
	all := s.lifecycle.All()
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": all, "count": len(all)})
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.lifecycle.Accept(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Suggestion accepted",
		"suggestion_id": id,
		"next_step":     "Please provide an explanation of what you want to automate",
	})
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.lifecycle.Reject(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Suggestion rejected",
		"suggestion_id": id,
	})
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body struct {
		Explanation string `json:"explanation"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(body.Explanation) == "" {
		writeError(w, wingmanErrors.InvalidInput("explanation required"))
		return
	}

	script, summary, err := s.lifecycle.Explain(r.Context(), id, body.Explanation)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"suggestion_id": id,
		"script":        script,
		"summary":       summary,
		"next_step":     "Please review and confirm the script",
	})
}

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body struct {
		Refinement string `json:"refinement"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(body.Refinement) == "" {
		writeError(w, wingmanErrors.InvalidInput("refinement required"))
		return
	}

	script, summary, err := s.lifecycle.RefineScript(r.Context(), id, body.Refinement)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"suggestion_id": id,
		"script":        script,
		"summary":       summary,
		"next_step":     "Please review and confirm the script",
	})
}

func (s *Server) handleConfirmAndExecute(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	// Execution is asynchronous; the request context dies with this handler,
	// so the background task gets its own.
	if err := s.lifecycle.ConfirmAndExecute(context.Background(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Automation execution started in background",
		"suggestion_id": id,
		"status":        "executing",
	})
}

func (s *Server) handleSuggestionStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sug, err := s.lifecycle.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{
		"suggestion_id": id,
		"status":        sug.Status,
	}
	if sug.ExecutionResult != nil {
		resp["execution_result"] = sug.ExecutionResult
	}
	if sug.TimeSavedSeconds != nil {
		resp["time_saved_seconds"] = *sug.TimeSavedSeconds
	}
	if sug.ErrorDetails != "" {
		resp["error_details"] = sug.ErrorDetails
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMute(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Minutes int `json:"minutes"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Minutes <= 0 {
		writeError(w, wingmanErrors.InvalidInput("minutes must be positive"))
		return
	}

	until := s.lifecycle.Mute(body.Minutes)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Automation suggestions muted",
		"muted_until": until.Unix(),
	})
}

func (s *Server) handleTimeSaved(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"total_seconds": s.lifecycle.TimeSaved(),
		"display":       s.lifecycle.TimeSavedDisplay(),
	})
}

func (s *Server) handleCurrentActivity(w http.ResponseWriter, r *http.Request) {
	app, win := s.input.CurrentFocus()

	switches := s.input.RecentSwitches()
	switchViews := make([]map[string]any, 0, len(switches))
	for _, sw := range switches {
		switchViews = append(switchViews, map[string]any{
			"app":          sw.App,
			"window_title": sw.WindowTitle,
			"timestamp":    float64(sw.At.UnixNano()) / float64(time.Second),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"current_app":         app,
		"current_window":      win,
		"recent_keys":         s.input.RecentKeys(),
		"recent_app_switches": switchViews,
	})
}

func (s *Server) handleKeyboardRecent(w http.ResponseWriter, r *http.Request) {
	keys := s.input.RecentKeys()
	writeJSON(w, http.StatusOK, map[string]any{
		"keys":     keys,
		"sequence": strings.Join(keys, " "),
		"count":    len(keys),
	})
}

func (s *Server) handleLongTermStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "coming_soon",
		"message": "Long-term pattern mining is not available yet",
	})
}

func (s *Server) handleMinuteSummaries(w http.ResponseWriter, r *http.Request) {
	list := s.summaries.Minute()
	writeJSON(w, http.StatusOK, map[string]any{"summaries": list, "count": len(list)})
}

func (s *Server) handleTenMinuteSummaries(w http.ResponseWriter, r *http.Request) {
	list := s.summaries.TenMinute()
	writeJSON(w, http.StatusOK, map[string]any{"summaries": list, "count": len(list)})
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	id := r.PathValue("id")

	switch kind {
	case "minute":
		for _, m := range s.summaries.Minute() {
			if m.ID == id {
				writeJSON(w, http.StatusOK, m)
				return
			}
		}
	case "ten-minute":
		for _, m := range s.summaries.TenMinute() {
			if m.ID == id {
				writeJSON(w, http.StatusOK, m)
				return
			}
		}
	}
	writeError(w, wingmanErrors.NotFound("summary %s/%s", kind, id))
}

func (s *Server) handleDeleteSummary(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	id := r.PathValue("id")

	var err error
	switch kind {
	case "minute":
		err = s.summaries.DeleteMinute(id)
	case "ten-minute":
		err = s.summaries.DeleteTenMinute(id)
	default:
		err = wingmanErrors.NotFound("unknown summary kind %s", kind)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "summary deleted", "id": id})
}

func (s *Server) handleAppUsageToday(w http.ResponseWriter, r *http.Request) {
	usage, total := s.tracker.Today()
	writeJSON(w, http.StatusOK, map[string]any{"usage": usage, "total_seconds": total})
}

func (s *Server) handleAppUsageWeek(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Week())
}

func (s *Server) handleAppUsageHourly(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, wingmanErrors.InvalidInput("invalid date %q, expected YYYY-MM-DD", date))
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.Hourly(date))
}

func (s *Server) handleAppUsageStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Stats())
}

func (s *Server) handleAIInteractions(w http.ResponseWriter, r *http.Request) {
	list := s.interactions.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{"interactions": list, "count": len(list)})
}

func (s *Server) handleSaveData(w http.ResponseWriter, r *http.Request) {
	if s.persistAll != nil {
		if err := s.persistAll(); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "all stores persisted"})
}

func (s *Server) handleDebugStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"registry_size":      s.registry.Size(),
		"dropped_events":     s.registry.DroppedCount(),
		"automation_running": s.registry.IsAutomationRunning(),
		"muted":              s.lifecycle.IsMuted(),
		"time_saved_seconds": s.lifecycle.TimeSaved(),
	})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"message": "shutting down"})
	if s.requestShutdown != nil {
		go s.requestShutdown()
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
