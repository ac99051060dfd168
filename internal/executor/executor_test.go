package executor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingmanhq/wingman/internal/config"
)

type fakeGate struct {
	mu          sync.Mutex
	running     bool
	transitions []bool
}

func (g *fakeGate) SetAutomationRunning(running bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.running = running
	g.transitions = append(g.transitions, running)
}

func (g *fakeGate) isRunning() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

type fakeAsker struct {
	responses []string
	calls     int
}

func (f *fakeAsker) Ask(ctx context.Context, prompt, agent string) (string, error) {
	resp := f.responses[f.calls%len(f.responses)]
	f.calls++
	return resp, nil
}

type scriptedRun struct {
	exitCode int
	stderr   string
	timedOut bool
}

func newTestExecutor(t *testing.T, gate Gate, runs []scriptedRun) (*Executor, *[]string) {
	t.Helper()

	e, err := New(gate, &fakeAsker{responses: []string{"print('hi')", "• summary"}}, config.AutomationConfig{InterpreterPath: "/usr/bin/python3"}, t.TempDir())
	require.NoError(t, err)

	var commands []string
	var runIdx int
	e.runner = func(ctx context.Context, timeout time.Duration, name string, args ...string) commandResult {
		commands = append(commands, name+" "+args[0])
		var run scriptedRun
		if runIdx < len(runs) {
			run = runs[runIdx]
		}
		runIdx++
		return commandResult{exitCode: run.exitCode, stderr: run.stderr, timedOut: run.timedOut}
	}
	return e, &commands
}

func TestExecute_SuccessFirstAttempt(t *testing.T) {
	gate := &fakeGate{}
	e, _ := newTestExecutor(t, gate, []scriptedRun{{exitCode: 0}})

	result := e.Execute(context.Background(), "import os\nprint('hi')\n")

	assert.True(t, result.Success)
	require.Len(t, result.Attempts, 1)
	assert.Equal(t, 0, result.Attempts[0].ReturnCode)
	assert.NotEmpty(t, result.ExecutionID)

	// The materialised script is cleaned up on success.
	entries, err := os.ReadDir(e.scriptsDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExecute_RetriesThenFails(t *testing.T) {
	gate := &fakeGate{}
	e, _ := newTestExecutor(t, gate, []scriptedRun{
		{exitCode: 1, stderr: "first"},
		{exitCode: 1, stderr: "second"},
		{exitCode: 1, stderr: "third"},
	})

	result := e.Execute(context.Background(), "print('hi')\n")

	assert.False(t, result.Success)
	assert.Len(t, result.Attempts, 3)
	assert.Equal(t, "third", result.FinalError)

	// The failed script stays on disk for diagnostics.
	entries, err := os.ReadDir(e.scriptsDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "exec_"+result.ExecutionID+".py", entries[0].Name())
}

func TestExecute_TimeoutCountsAsFailedAttempt(t *testing.T) {
	gate := &fakeGate{}
	e, _ := newTestExecutor(t, gate, []scriptedRun{{timedOut: true}, {exitCode: 0}})

	result := e.Execute(context.Background(), "print('hi')\n")

	assert.True(t, result.Success)
	require.Len(t, result.Attempts, 2)
	assert.Equal(t, -1, result.Attempts[0].ReturnCode)
	assert.Contains(t, result.Attempts[0].Error, "timed out")
}

func TestExecute_GateSetForWholeCallAndClearedOnEveryExit(t *testing.T) {
	gate := &fakeGate{}
	e, _ := newTestExecutor(t, gate, []scriptedRun{{exitCode: 0}})

	require.False(t, gate.isRunning())
	result := e.Execute(context.Background(), "print('hi')\n")
	require.True(t, result.Success)

	assert.False(t, gate.isRunning())
	assert.Equal(t, []bool{true, false}, gate.transitions)

	// Failure path clears the gate too.
	e2, _ := newTestExecutor(t, gate, []scriptedRun{{exitCode: 1, stderr: "x"}, {exitCode: 1, stderr: "x"}, {exitCode: 1, stderr: "x"}})
	_ = e2.Execute(context.Background(), "print('hi')\n")
	assert.False(t, gate.isRunning())

	// Denied dependencies never run the script but still clear the gate.
	e3, _ := newTestExecutor(t, gate, nil)
	_ = e3.Execute(context.Background(), "import socket\n")
	assert.False(t, gate.isRunning())
}

func TestExecute_InstallsDeclaredDependenciesBeforeRun(t *testing.T) {
	gate := &fakeGate{}
	e, commands := newTestExecutor(t, gate, []scriptedRun{{exitCode: 0}, {exitCode: 0}})

	script := "# requires: Pillow\nfrom PIL import Image\nprint('ok')\n"
	result := e.Execute(context.Background(), script)

	require.True(t, result.Success)
	require.NotNil(t, result.LibraryInstallation)
	assert.True(t, result.LibraryInstallation.Success)
	assert.Equal(t, []string{"Pillow"}, result.LibraryInstallation.Installed)

	require.Len(t, *commands, 2)
	assert.Contains(t, (*commands)[0], "-m")
}

func TestExecute_InstallFailureAbortsBeforeRun(t *testing.T) {
	gate := &fakeGate{}
	e, commands := newTestExecutor(t, gate, []scriptedRun{{exitCode: 1, stderr: "no network"}})

	result := e.Execute(context.Background(), "# requires: Pillow\nprint('ok')\n")

	assert.False(t, result.Success)
	assert.Empty(t, result.Attempts)
	require.NotNil(t, result.LibraryInstallation)
	assert.False(t, result.LibraryInstallation.Success)
	require.Len(t, result.LibraryInstallation.Failed, 1)
	assert.Equal(t, "Pillow", result.LibraryInstallation.Failed[0].Library)
	assert.Len(t, *commands, 1)
}

func TestExecute_PackageOutsideAllowListFailsImmediately(t *testing.T) {
	gate := &fakeGate{}
	e, commands := newTestExecutor(t, gate, nil)

	result := e.Execute(context.Background(), "# requires: leftpad\nprint('ok')\n")

	assert.False(t, result.Success)
	require.NotNil(t, result.LibraryInstallation)
	require.Len(t, result.LibraryInstallation.Failed, 1)
	assert.Equal(t, "leftpad", result.LibraryInstallation.Failed[0].Library)
	assert.Empty(t, *commands)
}

func TestExecute_SequentialCallsShareSingleSlot(t *testing.T) {
	gate := &fakeGate{}
	e, _ := newTestExecutor(t, gate, []scriptedRun{{exitCode: 0}, {exitCode: 0}})

	// Sequential calls both succeed; the semaphore serialises them.
	r1 := e.Execute(context.Background(), "print('a')\n")
	r2 := e.Execute(context.Background(), "print('b')\n")
	assert.True(t, r1.Success)
	assert.True(t, r2.Success)
	assert.NotEqual(t, r1.ExecutionID, r2.ExecutionID)
}

func TestGenerate_StripsCodeFence(t *testing.T) {
	gate := &fakeGate{}
	e, err := New(gate, &fakeAsker{responses: []string{"```python\nprint('hi')\n```", "• prints hi"}}, config.AutomationConfig{InterpreterPath: "/usr/bin/python3"}, t.TempDir())
	require.NoError(t, err)

	script, summary, err := e.Generate(context.Background(), "pattern", "explanation", nil)
	require.NoError(t, err)
	assert.Equal(t, "print('hi')", script)
	assert.Equal(t, "• prints hi", summary)
}

func TestScanDependencies(t *testing.T) {
	tests := []struct {
		name       string
		script     string
		wantReq    []string
		wantDenied int
	}{
		{"stdlib only", "import os\nimport shutil\nprint('x')", nil, 0},
		{"requires header", "# requires: Pillow, openpyxl\nimport os", []string{"Pillow", "openpyxl"}, 0},
		{"inferred import with name fix", "from PIL import Image", []string{"Pillow"}, 0},
		{"disallowed import", "import subprocess", nil, 1},
		{"unknown package", "import leftpad", nil, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, denied := scanDependencies(tt.script)
			assert.ElementsMatch(t, tt.wantReq, req)
			assert.Len(t, denied, tt.wantDenied)
		})
	}
}

func TestMaterialize_WritesUnderScriptsDir(t *testing.T) {
	gate := &fakeGate{}
	e, err := New(gate, &fakeAsker{responses: []string{"x"}}, config.AutomationConfig{InterpreterPath: "/usr/bin/python3"}, t.TempDir())
	require.NoError(t, err)

	path, err := e.materialize("print('hi')", "01TEST")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(e.scriptsDir, "exec_01TEST.py"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "print('hi')", string(content))
}
