package registry

import (
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	wingmanErrors "github.com/wingmanhq/wingman/internal/errors"
	"github.com/wingmanhq/wingman/internal/store"
)

// Registry admits, retains and queries observed events. Ids are strictly
// increasing; the store holds at most capacity actions and evicts FIFO.
type Registry struct {
	mu       sync.Mutex
	actions  []Action
	nextID   int64
	capacity int
	path     string

	automationRunning atomic.Bool
	dropped           atomic.Int64
}

// Stats summarises the current registry contents.
type Stats struct {
	Total    int            `json:"total"`
	ByType   map[string]int `json:"by_type"`
	BySource map[string]int `json:"by_source"`
}

type persisted struct {
	NextID  int64    `json:"next_id"`
	Actions []Action `json:"actions"`
}

func New(dataDir string, capacity int) *Registry {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Registry{
		capacity: capacity,
		nextID:   1,
		path:     filepath.Join(dataDir, store.ActionRegistryFile),
	}
}

// Register admits one event. Events from the file watcher and the input
// monitor are dropped while automation is running so the system's own
// activity is not mistaken for a new pattern.
func (r *Registry) Register(actionType string, details map[string]any, source string, metadata map[string]any) (int64, error) {
	if r.automationRunning.Load() && (source == SourceFileWatcher || source == SourceInputMonitor) {
		r.dropped.Add(1)
		return 0, wingmanErrors.ErrDropped
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	action := Action{
		ID:        r.nextID,
		Timestamp: now(),
		Type:      actionType,
		Source:    source,
		Details:   details,
		Metadata:  metadata,
	}
	r.nextID++

	r.actions = append(r.actions, action)
	if len(r.actions) > r.capacity {
		r.actions = r.actions[len(r.actions)-r.capacity:]
	}

	return action.ID, nil
}

// Recent returns all actions with timestamp >= now-window, oldest first.
func (r *Registry) Recent(window time.Duration) []Action {
	if window <= 0 {
		return nil
	}
	cutoff := now() - window.Seconds()

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Action
	for _, a := range r.actions {
		if a.Timestamp >= cutoff {
			out = append(out, a)
		}
	}
	return out
}

// All returns the newest limit actions, newest first.
func (r *Registry) All(limit int) []Action {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.actions)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]Action, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, r.actions[i])
	}
	return out
}

func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actions)
}

func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{
		Total:    len(r.actions),
		ByType:   make(map[string]int),
		BySource: make(map[string]int),
	}
	for _, a := range r.actions {
		stats.ByType[a.Type]++
		stats.BySource[a.Source]++
	}
	return stats
}

// SetAutomationRunning flips the quarantine gate. Only the executor calls
// this.
func (r *Registry) SetAutomationRunning(running bool) {
	r.automationRunning.Store(running)
}

func (r *Registry) IsAutomationRunning() bool {
	return r.automationRunning.Load()
}

// DroppedCount returns how many observer events were rejected while the
// quarantine gate was set.
func (r *Registry) DroppedCount() int64 {
	return r.dropped.Load()
}

// Persist serialises the registry atomically to disk.
func (r *Registry) Persist() error {
	r.mu.Lock()
	snapshot := persisted{
		NextID:  r.nextID,
		Actions: make([]Action, len(r.actions)),
	}
	copy(snapshot.Actions, r.actions)
	r.mu.Unlock()

	return store.SaveJSON(r.path, snapshot)
}

// Load restores the registry from disk. A missing or corrupt file yields an
// empty registry, never an error that stops startup.
func (r *Registry) Load() {
	var data persisted
	ok, err := store.LoadJSON(r.path, &data)
	if err != nil {
		slog.Warn("Action registry file unreadable, starting empty", "path", r.path, "error", err)
		return
	}
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(data.Actions) > r.capacity {
		data.Actions = data.Actions[len(data.Actions)-r.capacity:]
	}
	r.actions = data.Actions

	maxID := int64(0)
	for _, a := range r.actions {
		if a.ID > maxID {
			maxID = a.ID
		}
	}
	r.nextID = maxID + 1
	if data.NextID > r.nextID {
		r.nextID = data.NextID
	}

	slog.Info("Action registry loaded", "actions", len(r.actions), "next_id", r.nextID)
}

func now() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
