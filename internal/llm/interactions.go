package llm

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/wingmanhq/wingman/internal/store"
)

// Interaction is one prompt/response exchange with the model, kept for
// observability.
type Interaction struct {
	Timestamp float64 `json:"timestamp"`
	Agent     string  `json:"agent"`
	Prompt    string  `json:"prompt"`
	Response  string  `json:"response"`
}

const interactionSoftCap = 1000

// InteractionLog is an append-only, bounded, persisted log of model calls.
type InteractionLog struct {
	mu      sync.Mutex
	entries []Interaction
	path    string
}

func NewInteractionLog(dataDir string) *InteractionLog {
	return &InteractionLog{path: filepath.Join(dataDir, store.AIInteractionsFile)}
}

func (l *InteractionLog) Append(agent, prompt, response string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, Interaction{
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		Agent:     agent,
		Prompt:    prompt,
		Response:  response,
	})
	if len(l.entries) > interactionSoftCap {
		l.entries = l.entries[len(l.entries)-interactionSoftCap:]
	}
}

func (l *InteractionLog) Snapshot() []Interaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Interaction, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *InteractionLog) Persist() error {
	return store.SaveJSON(l.path, l.Snapshot())
}

func (l *InteractionLog) Load() error {
	var entries []Interaction
	ok, err := store.LoadJSON(l.path, &entries)
	if err != nil || !ok {
		return err
	}
	l.mu.Lock()
	l.entries = entries
	l.mu.Unlock()
	return nil
}
