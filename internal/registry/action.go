// Package registry is the central bounded, time-ordered store of observed
// user activity. Observers hand events off here; the detector and the
// summariser read from here.
package registry

// Action sources.
const (
	SourceFileWatcher  = "file_watcher"
	SourceInputMonitor = "input_monitor"
	SourceAppTracker   = "app_tracker"
	SourceAutomation   = "automation"
)

// Action types.
const (
	TypeFileCreated  = "file_created"
	TypeFileModified = "file_modified"
	TypeFileMoved    = "file_moved"
	TypeFileDeleted  = "file_deleted"
	TypeFileRenamed  = "file_renamed"
	TypeKeySequence  = "key_sequence"
	TypeAppFocus     = "app_focus"
)

// Action is one observed, normalised event. Read-only after registration.
type Action struct {
	ID        int64          `json:"id"`
	Timestamp float64        `json:"timestamp"`
	Type      string         `json:"action_type"`
	Source    string         `json:"source"`
	Details   map[string]any `json:"details"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// IsFileEvent reports whether the action came from the filesystem observer.
func (a Action) IsFileEvent() bool {
	switch a.Type {
	case TypeFileCreated, TypeFileModified, TypeFileMoved, TypeFileDeleted, TypeFileRenamed:
		return true
	}
	return false
}

// DetailString returns a string-valued detail field, or "".
func (a Action) DetailString(key string) string {
	if a.Details == nil {
		return ""
	}
	if s, ok := a.Details[key].(string); ok {
		return s
	}
	return ""
}

// FileOperation is the details payload for filesystem actions.
type FileOperation struct {
	EventType         string `json:"event_type"`
	SrcPath           string `json:"src_path"`
	DestPath          string `json:"dest_path,omitempty"`
	FileExtension     string `json:"file_extension,omitempty"`
	FileSize          int64  `json:"file_size,omitempty"`
	OperationCategory string `json:"operation_category,omitempty"`
}

func (op FileOperation) Details() map[string]any {
	details := map[string]any{
		"event_type": op.EventType,
		"src_path":   op.SrcPath,
	}
	if op.DestPath != "" {
		details["dest_path"] = op.DestPath
	}
	if op.FileExtension != "" {
		details["file_extension"] = op.FileExtension
	}
	if op.FileSize > 0 {
		details["file_size"] = op.FileSize
	}
	if op.OperationCategory != "" {
		details["operation_category"] = op.OperationCategory
	}
	return details
}

// KeySequence is the details payload for coalesced keyboard activity.
type KeySequence struct {
	Sequence        string  `json:"sequence"`
	DurationSeconds float64 `json:"duration_seconds"`
	Application     string  `json:"application,omitempty"`
}

func (ks KeySequence) Details() map[string]any {
	details := map[string]any{
		"sequence":         ks.Sequence,
		"duration_seconds": ks.DurationSeconds,
	}
	if ks.Application != "" {
		details["application"] = ks.Application
	}
	return details
}
