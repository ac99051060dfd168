// Package summarizer batches recent registry activity into minute and
// ten-minute prose summaries through the shared model client.
package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/wingmanhq/wingman/internal/config"
	wingmanErrors "github.com/wingmanhq/wingman/internal/errors"
	"github.com/wingmanhq/wingman/internal/registry"
	"github.com/wingmanhq/wingman/internal/store"
)

// Source is the registry slice the summariser reads.
type Source interface {
	Recent(window time.Duration) []registry.Action
}

// Asker is the one-operation model client.
type Asker interface {
	Ask(ctx context.Context, prompt, agent string) (string, error)
}

type MinuteSummary struct {
	ID          string  `json:"id"`
	Timestamp   float64 `json:"timestamp"`
	Summary     string  `json:"summary"`
	ActionCount int     `json:"action_count"`
}

type TenMinuteSummary struct {
	ID           string  `json:"id"`
	Timestamp    float64 `json:"timestamp"`
	Summary      string  `json:"summary"`
	TotalActions int     `json:"total_actions"`
}

type Summarizer struct {
	source Source
	llm    Asker

	minActions int
	capacity   int

	mu         sync.Mutex
	minute     []MinuteSummary
	tenMinute  []TenMinuteSummary
	minutePath string
	tenPath    string
}

func New(source Source, llm Asker, cfg config.SummariesConfig, dataDir string) *Summarizer {
	minActions := cfg.MinActions
	if minActions <= 0 {
		minActions = config.DefaultSummariesMinActions
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = config.DefaultSummariesCapacity
	}
	return &Summarizer{
		source:     source,
		llm:        llm,
		minActions: minActions,
		capacity:   capacity,
		minutePath: filepath.Join(dataDir, store.MinuteSummariesFile),
		tenPath:    filepath.Join(dataDir, store.TenMinuteSummariesFile),
	}
}

// MinuteTick summarises the last 60 seconds of activity if there is enough of
// it. Model failures skip the tick.
func (s *Summarizer) MinuteTick(ctx context.Context) {
	acts := s.source.Recent(time.Minute)
	if len(acts) < s.minActions {
		return
	}

	text, err := s.llm.Ask(ctx, minutePrompt(acts), "activity_summarizer")
	if err != nil {
		slog.Warn("Minute summary model call failed, skipping tick", "error", err)
		return
	}

	now := time.Now()
	entry := MinuteSummary{
		ID:          fmt.Sprintf("minute_%d", now.Unix()),
		Timestamp:   float64(now.UnixNano()) / float64(time.Second),
		Summary:     text,
		ActionCount: len(acts),
	}

	s.mu.Lock()
	s.minute = append(s.minute, entry)
	if len(s.minute) > s.capacity {
		s.minute = s.minute[len(s.minute)-s.capacity:]
	}
	s.mu.Unlock()

	slog.Debug("Minute summary created", "actions", len(acts))
}

// TenMinuteTick composes a longer narrative from the last ten minutes of
// minute summaries, falling back to raw actions when none exist.
func (s *Summarizer) TenMinuteTick(ctx context.Context) {
	cutoff := float64(time.Now().Add(-10*time.Minute).UnixNano()) / float64(time.Second)

	s.mu.Lock()
	var recent []MinuteSummary
	for _, m := range s.minute {
		if m.Timestamp >= cutoff {
			recent = append(recent, m)
		}
	}
	s.mu.Unlock()

	var prompt string
	totalActions := 0
	if len(recent) > 0 {
		for _, m := range recent {
			totalActions += m.ActionCount
		}
		prompt = tenMinutePromptFromSummaries(recent)
	} else {
		acts := s.source.Recent(10 * time.Minute)
		if len(acts) < s.minActions {
			return
		}
		totalActions = len(acts)
		prompt = tenMinutePromptFromActions(acts)
	}

	text, err := s.llm.Ask(ctx, prompt, "activity_summarizer")
	if err != nil {
		slog.Warn("Ten-minute summary model call failed, skipping tick", "error", err)
		return
	}

	now := time.Now()
	entry := TenMinuteSummary{
		ID:           fmt.Sprintf("ten_minute_%d", now.Unix()),
		Timestamp:    float64(now.UnixNano()) / float64(time.Second),
		Summary:      text,
		TotalActions: totalActions,
	}

	s.mu.Lock()
	s.tenMinute = append(s.tenMinute, entry)
	if len(s.tenMinute) > s.capacity {
		s.tenMinute = s.tenMinute[len(s.tenMinute)-s.capacity:]
	}
	s.mu.Unlock()

	slog.Debug("Ten-minute summary created", "total_actions", totalActions)
}

func (s *Summarizer) Minute() []MinuteSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MinuteSummary, len(s.minute))
	copy(out, s.minute)
	return out
}

func (s *Summarizer) TenMinute() []TenMinuteSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TenMinuteSummary, len(s.tenMinute))
	copy(out, s.tenMinute)
	return out
}

func (s *Summarizer) DeleteMinute(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.minute {
		if m.ID == id {
			s.minute = append(s.minute[:i], s.minute[i+1:]...)
			return nil
		}
	}
	return wingmanErrors.NotFound("minute summary %s", id)
}

func (s *Summarizer) DeleteTenMinute(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.tenMinute {
		if m.ID == id {
			s.tenMinute = append(s.tenMinute[:i], s.tenMinute[i+1:]...)
			return nil
		}
	}
	return wingmanErrors.NotFound("ten-minute summary %s", id)
}

func (s *Summarizer) Persist() error {
	if err := store.SaveJSON(s.minutePath, s.Minute()); err != nil {
		return err
	}
	return store.SaveJSON(s.tenPath, s.TenMinute())
}

func (s *Summarizer) Load() {
	var minute []MinuteSummary
	if _, err := store.LoadJSON(s.minutePath, &minute); err != nil {
		slog.Warn("Minute summaries unreadable, starting empty", "error", err)
	}
	var tenMinute []TenMinuteSummary
	if _, err := store.LoadJSON(s.tenPath, &tenMinute); err != nil {
		slog.Warn("Ten-minute summaries unreadable, starting empty", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if minute != nil {
		s.minute = minute
	}
	if tenMinute != nil {
		s.tenMinute = tenMinute
	}
}

func minutePrompt(acts []registry.Action) string {
	var b strings.Builder
	b.WriteString("Summarise the user's last minute of desktop activity in one or two plain sentences. Mention concrete files or applications when they appear. Do not speculate beyond the listed actions.\n\nActions:\n")
	writeActionLines(&b, acts)
	return b.String()
}

func tenMinutePromptFromSummaries(summaries []MinuteSummary) string {
	var b strings.Builder
	b.WriteString("Combine these per-minute activity notes into a short narrative paragraph describing what the user worked on over the last ten minutes.\n\nNotes:\n")
	for _, m := range summaries {
		b.WriteString("- " + m.Summary + "\n")
	}
	return b.String()
}

func tenMinutePromptFromActions(acts []registry.Action) string {
	var b strings.Builder
	b.WriteString("Summarise the user's last ten minutes of desktop activity as a short narrative paragraph. Mention concrete files or applications when they appear.\n\nActions:\n")
	writeActionLines(&b, acts)
	return b.String()
}

func writeActionLines(b *strings.Builder, acts []registry.Action) {
	for _, a := range acts {
		line := "- " + a.Type
		switch {
		case a.IsFileEvent():
			line += " " + a.DetailString("src_path")
		case a.Type == registry.TypeAppFocus:
			line += " " + a.DetailString("app_name")
		case a.Type == registry.TypeKeySequence:
			seq := a.DetailString("sequence")
			if len(seq) > 60 {
				seq = seq[:60] + "..."
			}
			line += " " + seq
		}
		b.WriteString(line + "\n")
	}
}
