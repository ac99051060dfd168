package lifecycle

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wingmanErrors "github.com/wingmanhq/wingman/internal/errors"
	"github.com/wingmanhq/wingman/internal/executor"
	"github.com/wingmanhq/wingman/internal/registry"
)

type fakeEngine struct {
	generateCalls atomic.Int64
	refineCalls   atomic.Int64
	executeCalls  atomic.Int64
	script        string
	summary       string
	execSuccess   bool
	execDelay     time.Duration
}

func (f *fakeEngine) Generate(ctx context.Context, patternDescription, userExplanation string, actions []registry.Action) (string, string, error) {
	n := f.generateCalls.Add(1)
	return fmt.Sprintf("%s v%d", f.script, n), f.summary, nil
}

func (f *fakeEngine) Refine(ctx context.Context, previousScript, refinement string) (string, string, error) {
	n := f.refineCalls.Add(1)
	return fmt.Sprintf("%s refined%d (%s)", f.script, n, refinement), f.summary, nil
}

func (f *fakeEngine) Execute(ctx context.Context, script string) *executor.Result {
	f.executeCalls.Add(1)
	if f.execDelay > 0 {
		time.Sleep(f.execDelay)
	}
	if f.execSuccess {
		return &executor.Result{Success: true, ExecutionID: "exec1"}
	}
	return &executor.Result{Success: false, FinalError: "boom", ExecutionID: "exec1"}
}

func renameActions(n int) []registry.Action {
	var acts []registry.Action
	for i := 0; i < n; i++ {
		acts = append(acts, registry.Action{
			ID:      int64(i + 1),
			Type:    registry.TypeFileRenamed,
			Source:  registry.SourceFileWatcher,
			Details: map[string]any{"event_type": "renamed", "file_extension": ".jpg"},
		})
	}
	return acts
}

func newTestManager(t *testing.T, engine ScriptEngine) *Manager {
	t.Helper()
	return NewManager(t.TempDir(), engine, Weights{PerFileOp: 20, PerRename: 25})
}

func waitForStatus(t *testing.T, m *Manager, id, status string) Suggestion {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s, err := m.Get(id)
		require.NoError(t, err)
		if s.Status == status {
			return s
		}
		time.Sleep(10 * time.Millisecond)
	}
	s, _ := m.Get(id)
	t.Fatalf("suggestion %s never reached %s, stuck at %s", id, status, s.Status)
	return Suggestion{}
}

func TestAccept_Idempotent(t *testing.T) {
	m := newTestManager(t, &fakeEngine{})
	s := m.Add("You renamed 5 files.", "hash1", nil)

	require.NoError(t, m.Accept(s.SuggestionID))
	require.NoError(t, m.Accept(s.SuggestionID))

	got, err := m.Get(s.SuggestionID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, got.Status)
}

func TestAccept_UnknownSuggestion(t *testing.T) {
	m := newTestManager(t, &fakeEngine{})
	err := m.Accept("nope")
	assert.ErrorIs(t, err, wingmanErrors.ErrNotFound)
}

func TestReject_AddsHashToIgnoredSet(t *testing.T) {
	m := newTestManager(t, &fakeEngine{})
	s := m.Add("You renamed 5 files.", "hash1", nil)

	require.False(t, m.IsIgnored("hash1"))
	require.NoError(t, m.Reject(s.SuggestionID))
	assert.True(t, m.IsIgnored("hash1"))

	got, _ := m.Get(s.SuggestionID)
	assert.Equal(t, StatusRejected, got.Status)

	// Rejecting again when the hash is already ignored is a no-op.
	require.NoError(t, m.Reject(s.SuggestionID))
	assert.True(t, m.IsIgnored("hash1"))
}

func TestExplain_RequiresAcceptedState(t *testing.T) {
	m := newTestManager(t, &fakeEngine{script: "print('hi')", summary: "• prints"})
	s := m.Add("pattern", "h", nil)

	_, _, err := m.Explain(context.Background(), s.SuggestionID, "rename them all")
	assert.ErrorIs(t, err, wingmanErrors.ErrInvalidTransition)
}

func TestExplain_GeneratesScriptAndSummary(t *testing.T) {
	engine := &fakeEngine{script: "print('hi')", summary: "• prints hi"}
	m := newTestManager(t, engine)
	s := m.Add("pattern", "h", nil)
	require.NoError(t, m.Accept(s.SuggestionID))

	script, summary, err := m.Explain(context.Background(), s.SuggestionID, "rename them all")
	require.NoError(t, err)
	assert.Contains(t, script, "print('hi')")
	assert.Equal(t, "• prints hi", summary)

	got, _ := m.Get(s.SuggestionID)
	assert.Equal(t, StatusExplained, got.Status)
	assert.Equal(t, "rename them all", got.UserExplanation)
	assert.Equal(t, script, got.GeneratedScript)
}

func TestRefine_ReplacesScriptAndStaysExplained(t *testing.T) {
	engine := &fakeEngine{script: "print('hi')", summary: "• prints"}
	m := newTestManager(t, engine)
	s := m.Add("pattern", "h", nil)
	require.NoError(t, m.Accept(s.SuggestionID))
	_, _, err := m.Explain(context.Background(), s.SuggestionID, "rename all")
	require.NoError(t, err)

	script1, _, err := m.RefineScript(context.Background(), s.SuggestionID, "only .png")
	require.NoError(t, err)
	script2, _, err := m.RefineScript(context.Background(), s.SuggestionID, "start at 100")
	require.NoError(t, err)
	assert.NotEqual(t, script1, script2)

	got, _ := m.Get(s.SuggestionID)
	assert.Equal(t, StatusExplained, got.Status)
	assert.Equal(t, script2, got.GeneratedScript)
	assert.Equal(t, int64(2), engine.refineCalls.Load())
	assert.Equal(t, int64(1), engine.generateCalls.Load())
}

func TestRefine_BeforeExplainFails(t *testing.T) {
	m := newTestManager(t, &fakeEngine{})
	s := m.Add("pattern", "h", nil)
	require.NoError(t, m.Accept(s.SuggestionID))

	_, _, err := m.RefineScript(context.Background(), s.SuggestionID, "only .png")
	assert.ErrorIs(t, err, wingmanErrors.ErrInvalidTransition)
}

func TestConfirmAndExecute_HappyPath(t *testing.T) {
	engine := &fakeEngine{script: "print('hi')", summary: "s", execSuccess: true}
	m := newTestManager(t, engine)
	s := m.Add("You renamed 5 image files.", "hash1", renameActions(5))
	require.NoError(t, m.Accept(s.SuggestionID))
	_, _, err := m.Explain(context.Background(), s.SuggestionID, "rename to photo_001.jpg")
	require.NoError(t, err)

	require.NoError(t, m.ConfirmAndExecute(context.Background(), s.SuggestionID))

	got := waitForStatus(t, m, s.SuggestionID, StatusCompleted)
	require.NotNil(t, got.TimeSavedSeconds)
	assert.Equal(t, int64(5*25), *got.TimeSavedSeconds)
	assert.Equal(t, int64(125), m.TimeSaved())
	assert.True(t, m.IsIgnored("hash1"))
	require.NotNil(t, got.ExecutionResult)
	assert.True(t, got.ExecutionResult.Success)
}

func TestConfirmAndExecute_Failure(t *testing.T) {
	engine := &fakeEngine{script: "print('hi')", summary: "s", execSuccess: false}
	m := newTestManager(t, engine)
	s := m.Add("pattern", "hash2", renameActions(2))
	require.NoError(t, m.Accept(s.SuggestionID))
	_, _, err := m.Explain(context.Background(), s.SuggestionID, "do it")
	require.NoError(t, err)
	require.NoError(t, m.ConfirmAndExecute(context.Background(), s.SuggestionID))

	got := waitForStatus(t, m, s.SuggestionID, StatusFailed)
	assert.Equal(t, "boom", got.ErrorDetails)
	assert.Nil(t, got.TimeSavedSeconds)
	assert.Zero(t, m.TimeSaved())
	assert.False(t, m.IsIgnored("hash2"))
}

func TestConfirmAndExecute_RequiresExplainedState(t *testing.T) {
	m := newTestManager(t, &fakeEngine{})
	s := m.Add("pattern", "h", nil)

	err := m.ConfirmAndExecute(context.Background(), s.SuggestionID)
	assert.ErrorIs(t, err, wingmanErrors.ErrInvalidTransition)
}

func TestTimeSaved_MixedOperations(t *testing.T) {
	m := newTestManager(t, &fakeEngine{})
	actions := append(renameActions(2), registry.Action{
		ID:      10,
		Type:    registry.TypeFileCreated,
		Details: map[string]any{"event_type": "created"},
	})
	assert.Equal(t, int64(2*25+1*20), m.estimateTimeSaved(actions))
}

func TestMute(t *testing.T) {
	m := newTestManager(t, &fakeEngine{})
	assert.False(t, m.IsMuted())

	until := m.Mute(30)
	assert.True(t, m.IsMuted())
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), until, time.Second)
}

func TestTimeSavedDisplay(t *testing.T) {
	m := newTestManager(t, &fakeEngine{})
	assert.Equal(t, "0s", m.TimeSavedDisplay())

	m.mu.Lock()
	m.timeSaved = 125
	m.mu.Unlock()
	assert.Equal(t, "2m", m.TimeSavedDisplay())

	m.mu.Lock()
	m.timeSaved = 7300
	m.mu.Unlock()
	assert.Equal(t, "2h 1m", m.TimeSavedDisplay())
}

func TestPersistAndLoad(t *testing.T) {
	dir := t.TempDir()
	engine := &fakeEngine{script: "print('hi')", summary: "s"}

	m := NewManager(dir, engine, Weights{})
	s := m.Add("pattern", "hash1", renameActions(3))
	require.NoError(t, m.Reject(s.SuggestionID))
	m.mu.Lock()
	m.timeSaved = 50
	m.mu.Unlock()
	require.NoError(t, m.Persist())

	restored := NewManager(dir, engine, Weights{})
	restored.Load()
	assert.True(t, restored.IsIgnored("hash1"))
	assert.Equal(t, int64(50), restored.TimeSaved())

	got, err := restored.Get(s.SuggestionID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, got.Status)
}

func TestLoad_InFlightExecutionBecomesFailed(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, &fakeEngine{}, Weights{})
	s := m.Add("pattern", "h", nil)
	m.mu.Lock()
	m.suggestions[s.SuggestionID].Status = StatusExecuting
	m.mu.Unlock()
	require.NoError(t, m.Persist())

	restored := NewManager(dir, &fakeEngine{}, Weights{})
	restored.Load()
	got, err := restored.Get(s.SuggestionID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
}
