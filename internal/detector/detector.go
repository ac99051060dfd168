// Package detector periodically inspects the registry's recent window,
// filters out noise without spending a model call, and asks the model whether
// the remainder is an automatable pattern.
package detector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wingmanhq/wingman/internal/config"
	"github.com/wingmanhq/wingman/internal/registry"
)

// NoPattern is the exact model reply meaning "nothing worth automating".
const NoPattern = "NO_PATTERN"

// Source is the registry slice the detector reads.
type Source interface {
	Recent(window time.Duration) []registry.Action
}

// Sink is the lifecycle manager surface the detector drives.
type Sink interface {
	Add(description, hash string, actions []registry.Action)
	IsIgnored(hash string) bool
	IsMuted() bool
	HasActive() bool
}

// Asker is the one-operation model client.
type Asker interface {
	Ask(ctx context.Context, prompt, agent string) (string, error)
}

type Detector struct {
	source Source
	sink   Sink
	llm    Asker

	window         time.Duration
	cooldown       time.Duration
	minActions     int
	minSubstantive int

	lastEmission time.Time
}

func New(source Source, sink Sink, llm Asker, cfg config.DetectorConfig) *Detector {
	window := time.Duration(cfg.WindowSeconds) * time.Second
	if window <= 0 {
		window = time.Duration(config.DefaultDetectorWindowSeconds) * time.Second
	}
	cooldown := time.Duration(cfg.CooldownSeconds) * time.Second
	if cooldown <= 0 {
		cooldown = time.Duration(config.DefaultDetectorCooldownSeconds) * time.Second
	}
	minActions := cfg.MinActions
	if minActions <= 0 {
		minActions = config.DefaultDetectorMinActions
	}
	minSubstantive := cfg.MinSubstantive
	if minSubstantive <= 0 {
		minSubstantive = config.DefaultDetectorMinSubstantive
	}

	return &Detector{
		source:         source,
		sink:           sink,
		llm:            llm,
		window:         window,
		cooldown:       cooldown,
		minActions:     minActions,
		minSubstantive: minSubstantive,
	}
}

// Tick runs one detection cycle. Model failures are logged and treated as
// NO_PATTERN.
func (d *Detector) Tick(ctx context.Context) {
	if d.sink.IsMuted() {
		return
	}
	if !d.lastEmission.IsZero() && time.Since(d.lastEmission) < d.cooldown {
		return
	}
	if d.sink.HasActive() {
		return
	}

	acts := d.source.Recent(d.window)
	if !Prefilter(acts, d.minActions, d.minSubstantive) {
		return
	}

	response, err := d.llm.Ask(ctx, detectionPrompt(acts), "pattern_detector")
	if err != nil {
		slog.Warn("Pattern detection model call failed, treating as no pattern", "error", err)
		return
	}
	if isNoPattern(response) {
		return
	}

	hash := PatternHash(acts)
	if d.sink.IsIgnored(hash) {
		slog.Debug("Pattern hash ignored, suppressing suggestion", "hash", hash)
		return
	}

	d.sink.Add(firstLine(response), hash, acts)
	d.lastEmission = time.Now()
}

// Prefilter applies the cheap rejection rules that run before any model call.
func Prefilter(acts []registry.Action, minActions, minSubstantive int) bool {
	if len(acts) < minActions {
		return false
	}

	substantive := 0
	focusOnly := true
	fileSignatures := make(map[string]int)
	for _, a := range acts {
		if a.Type != registry.TypeAppFocus {
			focusOnly = false
		}
		switch {
		case a.IsFileEvent():
			substantive++
			sig := a.DetailString("event_type") + "|" + a.DetailString("file_extension")
			fileSignatures[sig]++
		case a.Type == registry.TypeKeySequence && containsShortcut(a.DetailString("sequence")):
			substantive++
		}
	}

	if focusOnly {
		return false
	}
	if substantive < minSubstantive {
		return false
	}

	for _, count := range fileSignatures {
		if count >= 3 {
			return true
		}
	}
	if copyPasteCycles(acts) >= 2 {
		return true
	}
	return substantive >= 5
}

// PatternHash digests the triggering actions' (event_type, file_extension)
// tuple sequence so the same workflow is never suggested twice.
func PatternHash(acts []registry.Action) string {
	var b strings.Builder
	for _, a := range acts {
		b.WriteString(a.DetailString("event_type"))
		b.WriteString(":")
		b.WriteString(a.DetailString("file_extension"))
		b.WriteString(":")
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:16]
}

var shortcuts = []string{
	"ctrl+c", "ctrl+v", "ctrl+x", "ctrl+s", "ctrl+z", "ctrl+y", "ctrl+a",
	"cmd+c", "cmd+v", "cmd+x", "cmd+s", "cmd+z", "alt+tab", "cmd+tab",
}

func containsShortcut(sequence string) bool {
	lower := strings.ToLower(sequence)
	for _, sc := range shortcuts {
		if strings.Contains(lower, sc) {
			return true
		}
	}
	return false
}

// copyPasteCycles counts copy-then-paste pairs across the window's key
// sequences, in order.
func copyPasteCycles(acts []registry.Action) int {
	cycles := 0
	copied := false
	for _, a := range acts {
		if a.Type != registry.TypeKeySequence {
			continue
		}
		for _, token := range strings.Fields(strings.ToLower(a.DetailString("sequence"))) {
			switch token {
			case "ctrl+c", "cmd+c":
				copied = true
			case "ctrl+v", "cmd+v":
				if copied {
					cycles++
					copied = false
				}
			}
		}
	}
	return cycles
}

func detectionPrompt(acts []registry.Action) string {
	var b strings.Builder
	b.WriteString("You watch a user's recent desktop activity and decide whether it contains a short repetitive workflow worth automating.\n\n")
	b.WriteString("Real patterns: several file operations of the same kind in the same or nearby directories (renaming, moving, organising), or repeated copy-paste cycles between applications.\n")
	b.WriteString("Not patterns: window-switching spam, isolated single actions, random browsing.\n\n")
	b.WriteString("If there is a real automatable pattern, answer with EXACTLY ONE line of the form:\n")
	b.WriteString("You <verb> <count> <noun> in <directory-or-context>. You might want to <proposal>.\n")
	b.WriteString("If there is no real pattern, answer with exactly: " + NoPattern + "\n\n")
	b.WriteString("Recent actions, oldest first:\n")
	for i, a := range acts {
		ts := time.Unix(int64(a.Timestamp), 0).Format("15:04:05")
		b.WriteString(fmt.Sprintf("%d. [%s] %s", i+1, ts, a.Type))
		switch {
		case a.IsFileEvent():
			b.WriteString(fmt.Sprintf(" | %s %s", a.DetailString("event_type"), a.DetailString("src_path")))
			if dest := a.DetailString("dest_path"); dest != "" {
				b.WriteString(" -> " + dest)
			}
		case a.Type == registry.TypeKeySequence:
			b.WriteString(" | keys: " + truncate(a.DetailString("sequence"), 100))
		case a.Type == registry.TypeAppFocus:
			b.WriteString(" | app: " + a.DetailString("app_name"))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func isNoPattern(response string) bool {
	return strings.Contains(strings.ToUpper(response), NoPattern)
}

func firstLine(response string) string {
	if idx := strings.IndexByte(response, '\n'); idx >= 0 {
		return strings.TrimSpace(response[:idx])
	}
	return strings.TrimSpace(response)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
