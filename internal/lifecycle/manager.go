// Package lifecycle owns every Suggestion record and drives the state machine
// from detection through user dialogue to script execution. It also keeps the
// ignored-pattern memory, the time-saved accumulator and the mute deadline.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/wingmanhq/wingman/internal/concurrency"
	wingmanErrors "github.com/wingmanhq/wingman/internal/errors"
	"github.com/wingmanhq/wingman/internal/executor"
	"github.com/wingmanhq/wingman/internal/registry"
	"github.com/wingmanhq/wingman/internal/store"
)

// ScriptEngine is the part of the executor the manager drives. Split out so
// tests can substitute a fake.
type ScriptEngine interface {
	Generate(ctx context.Context, patternDescription, userExplanation string, actions []registry.Action) (script, summary string, err error)
	Refine(ctx context.Context, previousScript, refinement string) (script, summary string, err error)
	Execute(ctx context.Context, script string) *executor.Result
}

// Weights converts executed actions into estimated seconds saved.
type Weights struct {
	PerFileOp int64
	PerRename int64
}

type persisted struct {
	Suggestions     []Suggestion `json:"suggestions"`
	IgnoredPatterns []string     `json:"ignored_patterns"`
	TotalTimeSaved  int64        `json:"total_time_saved_seconds"`
}

// Manager is the process-wide suggestion owner.
type Manager struct {
	mu          sync.Mutex
	suggestions map[string]*Suggestion
	order       []string
	ignored     map[string]struct{}
	timeSaved   int64
	muteUntil   time.Time
	path        string

	engine  ScriptEngine
	weights Weights
}

func NewManager(dataDir string, engine ScriptEngine, weights Weights) *Manager {
	if weights.PerFileOp <= 0 {
		weights.PerFileOp = 20
	}
	if weights.PerRename <= 0 {
		weights.PerRename = 25
	}
	return &Manager{
		suggestions: make(map[string]*Suggestion),
		ignored:     make(map[string]struct{}),
		path:        filepath.Join(dataDir, store.SuggestionsFile),
		engine:      engine,
		weights:     weights,
	}
}

// Add creates a new pending suggestion from the detector.
func (m *Manager) Add(description, hash string, actions []registry.Action) *Suggestion {
	s := &Suggestion{
		SuggestionID:       fmt.Sprintf("suggestion_%s", ulid.Make().String()),
		CreatedTS:          float64(time.Now().UnixNano()) / float64(time.Second),
		PatternDescription: description,
		PatternHash:        hash,
		Status:             StatusPending,
		Actions:            actions,
	}

	m.mu.Lock()
	m.suggestions[s.SuggestionID] = s
	m.order = append(m.order, s.SuggestionID)
	m.mu.Unlock()

	slog.Info("Suggestion created", "suggestion_id", s.SuggestionID, "hash", hash)
	return s
}

// IsIgnored reports whether the hash was previously rejected or completed.
func (m *Manager) IsIgnored(hash string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.ignored[hash]
	return ok
}

// HasActive reports whether the user is mid-dialogue on some suggestion. The
// detector stays quiet while that is the case.
func (m *Manager) HasActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.suggestions {
		switch s.Status {
		case StatusAccepted, StatusExplained, StatusExecuting:
			return true
		}
	}
	return false
}

// Pending returns suggestions still waiting for a user response, oldest
// first.
func (m *Manager) Pending() []Suggestion {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Suggestion
	for _, id := range m.order {
		if s := m.suggestions[id]; s != nil && s.Status == StatusPending {
			out = append(out, s.clone())
		}
	}
	return out
}

// All returns every suggestion, oldest first.
func (m *Manager) All() []Suggestion {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Suggestion, 0, len(m.order))
	for _, id := range m.order {
		if s := m.suggestions[id]; s != nil {
			out = append(out, s.clone())
		}
	}
	return out
}

// Get returns one suggestion by id.
func (m *Manager) Get(id string) (Suggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.suggestions[id]
	if !ok {
		return Suggestion{}, wingmanErrors.NotFound("suggestion %s", id)
	}
	return s.clone(), nil
}

// Accept moves pending → accepted. Idempotent.
func (m *Manager) Accept(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.suggestions[id]
	if !ok {
		return wingmanErrors.NotFound("suggestion %s", id)
	}
	switch s.Status {
	case StatusAccepted:
		return nil
	case StatusPending:
		s.Status = StatusAccepted
		return nil
	}
	return wingmanErrors.InvalidTransition("cannot accept suggestion in state %s", s.Status)
}

// Reject moves any state other than executing → rejected and remembers the hash.
// Rejecting an already-ignored hash is a no-op.
func (m *Manager) Reject(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.suggestions[id]
	if !ok {
		return wingmanErrors.NotFound("suggestion %s", id)
	}
	if s.Status == StatusExecuting {
		return wingmanErrors.InvalidTransition("cannot reject suggestion while executing")
	}
	s.Status = StatusRejected
	m.ignored[s.PatternHash] = struct{}{}
	return nil
}

// Explain stores the user's explanation and generates the initial script and
// summary. accepted → explained.
func (m *Manager) Explain(ctx context.Context, id, explanation string) (script, summary string, err error) {
	m.mu.Lock()
	s, ok := m.suggestions[id]
	if !ok {
		m.mu.Unlock()
		return "", "", wingmanErrors.NotFound("suggestion %s", id)
	}
	if s.Status != StatusAccepted {
		m.mu.Unlock()
		return "", "", wingmanErrors.InvalidTransition("suggestion must be accepted before explaining, state is %s", s.Status)
	}
	description := s.PatternDescription
	actions := make([]registry.Action, len(s.Actions))
	copy(actions, s.Actions)
	m.mu.Unlock()

	// The model call runs outside the lock.
	script, summary, err = m.engine.Generate(ctx, description, explanation, actions)
	if err != nil {
		return "", "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok = m.suggestions[id]
	if !ok {
		return "", "", wingmanErrors.NotFound("suggestion %s", id)
	}
	s.UserExplanation = explanation
	s.GeneratedScript = script
	s.ScriptSummary = summary
	s.Status = StatusExplained
	return script, summary, nil
}

// RefineScript replaces the script/summary pair. explained → explained.
func (m *Manager) RefineScript(ctx context.Context, id, refinement string) (script, summary string, err error) {
	m.mu.Lock()
	s, ok := m.suggestions[id]
	if !ok {
		m.mu.Unlock()
		return "", "", wingmanErrors.NotFound("suggestion %s", id)
	}
	if s.Status != StatusExplained {
		m.mu.Unlock()
		return "", "", wingmanErrors.InvalidTransition("no script to refine, state is %s", s.Status)
	}
	previous := s.GeneratedScript
	m.mu.Unlock()

	script, summary, err = m.engine.Refine(ctx, previous, refinement)
	if err != nil {
		return "", "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok = m.suggestions[id]
	if !ok {
		return "", "", wingmanErrors.NotFound("suggestion %s", id)
	}
	if s.Status != StatusExplained {
		return "", "", wingmanErrors.InvalidTransition("suggestion left explained state during refine")
	}
	s.GeneratedScript = script
	s.ScriptSummary = summary
	return script, summary, nil
}

// ConfirmAndExecute moves explained → executing and hands the script to the
// executor on a detached goroutine. The caller returns immediately; progress
// is visible through Get.
func (m *Manager) ConfirmAndExecute(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.suggestions[id]
	if !ok {
		m.mu.Unlock()
		return wingmanErrors.NotFound("suggestion %s", id)
	}
	if s.Status != StatusExplained {
		m.mu.Unlock()
		return wingmanErrors.InvalidTransition("script must be generated before executing, state is %s", s.Status)
	}
	if s.GeneratedScript == "" {
		m.mu.Unlock()
		return wingmanErrors.InvalidInput("suggestion %s has no script", id)
	}
	s.Status = StatusExecuting
	script := s.GeneratedScript
	m.mu.Unlock()

	concurrency.SafeGo(func() {
		result := m.engine.Execute(ctx, script)
		m.finishExecution(id, result)
	}, func(any) {
		m.finishExecution(id, &executor.Result{FinalError: "execution panicked"})
	})

	return nil
}

func (m *Manager) finishExecution(id string, result *executor.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.suggestions[id]
	if !ok {
		return
	}
	s.ExecutionResult = result

	if result != nil && result.Success {
		s.Status = StatusCompleted
		m.ignored[s.PatternHash] = struct{}{}

		saved := m.estimateTimeSaved(s.Actions)
		s.TimeSavedSeconds = &saved
		m.timeSaved += saved
		slog.Info("Automation completed", "suggestion_id", id, "time_saved_seconds", saved)
		return
	}

	s.Status = StatusFailed
	if result != nil {
		s.ErrorDetails = result.FinalError
	}
	slog.Warn("Automation failed", "suggestion_id", id, "error", s.ErrorDetails)
}

// estimateTimeSaved weighs the triggering actions: renames count heavier than
// other file operations. Caller holds the lock.
func (m *Manager) estimateTimeSaved(actions []registry.Action) int64 {
	var fileOps, renames int64
	for _, a := range actions {
		switch {
		case a.Type == registry.TypeFileRenamed:
			renames++
		case a.IsFileEvent():
			fileOps++
		}
	}
	return fileOps*m.weights.PerFileOp + renames*m.weights.PerRename
}

// Mute silences the detector for the given number of minutes.
func (m *Manager) Mute(minutes int) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muteUntil = time.Now().Add(time.Duration(minutes) * time.Minute)
	return m.muteUntil
}

// IsMuted reports whether the detector must stay silent right now.
func (m *Manager) IsMuted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Now().Before(m.muteUntil)
}

// TimeSaved returns the monotonic accumulator value in seconds.
func (m *Manager) TimeSaved() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeSaved
}

// TimeSavedDisplay renders the accumulator for humans.
func (m *Manager) TimeSavedDisplay() string {
	total := m.TimeSaved()
	switch {
	case total >= 3600:
		return fmt.Sprintf("%dh %dm", total/3600, (total%3600)/60)
	case total >= 60:
		return fmt.Sprintf("%dm", total/60)
	default:
		return fmt.Sprintf("%ds", total)
	}
}

// Persist writes suggestions, the ignored set and the accumulator to disk.
func (m *Manager) Persist() error {
	m.mu.Lock()
	data := persisted{
		Suggestions:    make([]Suggestion, 0, len(m.order)),
		TotalTimeSaved: m.timeSaved,
	}
	for _, id := range m.order {
		if s := m.suggestions[id]; s != nil {
			data.Suggestions = append(data.Suggestions, s.clone())
		}
	}
	for hash := range m.ignored {
		data.IgnoredPatterns = append(data.IgnoredPatterns, hash)
	}
	m.mu.Unlock()

	return store.SaveJSON(m.path, data)
}

// Load restores state from disk. In-flight executions from a previous run
// come back as failed.
func (m *Manager) Load() {
	var data persisted
	ok, err := store.LoadJSON(m.path, &data)
	if err != nil {
		slog.Warn("Suggestions file unreadable, starting empty", "error", err)
		return
	}
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range data.Suggestions {
		s := data.Suggestions[i]
		if s.Status == StatusExecuting {
			s.Status = StatusFailed
			s.ErrorDetails = "process stopped while execution was in flight"
		}
		m.suggestions[s.SuggestionID] = &s
		m.order = append(m.order, s.SuggestionID)
	}
	for _, hash := range data.IgnoredPatterns {
		m.ignored[hash] = struct{}{}
	}
	m.timeSaved = data.TotalTimeSaved

	slog.Info("Suggestions loaded", "count", len(m.order), "ignored_patterns", len(m.ignored))
}
