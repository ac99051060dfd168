// Package executor materialises generated scripts, installs their declared
// dependencies and runs them with retries under the registry quarantine.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/semaphore"

	"github.com/wingmanhq/wingman/internal/config"
	"github.com/wingmanhq/wingman/internal/registry"
	"github.com/wingmanhq/wingman/internal/store"
)

// Gate is the registry's automation flag. Set for the whole of one execute
// call so the script's own filesystem and input noise is never registered.
type Gate interface {
	SetAutomationRunning(running bool)
}

// Asker is the one-operation model client.
type Asker interface {
	Ask(ctx context.Context, prompt, agent string) (string, error)
}

// commandResult is the outcome of one subprocess run.
type commandResult struct {
	stdout   string
	stderr   string
	exitCode int
	timedOut bool
	err      error
}

type runnerFunc func(ctx context.Context, timeout time.Duration, name string, args ...string) commandResult

// Executor runs at most one script at a time.
type Executor struct {
	gate Gate
	llm  Asker

	maxAttempts    int
	scriptTimeout  time.Duration
	installTimeout time.Duration
	interpreter    string
	scriptsDir     string

	slot   *semaphore.Weighted
	runner runnerFunc
}

func New(gate Gate, llm Asker, cfg config.AutomationConfig, dataDir string) (*Executor, error) {
	scriptTimeout, err := config.DurationOrDefault(cfg.ScriptTimeout, config.DefaultAutomationScriptTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse script timeout: %w", err)
	}
	installTimeout, err := config.DurationOrDefault(cfg.InstallTimeout, config.DefaultAutomationInstallTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse install timeout: %w", err)
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = config.DefaultAutomationMaxAttempts
	}

	interpreter := cfg.InterpreterPath
	if interpreter == "" {
		if path, err := exec.LookPath("python3"); err == nil {
			interpreter = path
		} else if path, err := exec.LookPath("python"); err == nil {
			interpreter = path
		} else {
			interpreter = "python3"
		}
	}

	return &Executor{
		gate:           gate,
		llm:            llm,
		maxAttempts:    maxAttempts,
		scriptTimeout:  scriptTimeout,
		installTimeout: installTimeout,
		interpreter:    interpreter,
		scriptsDir:     filepath.Join(dataDir, store.ScriptDir),
		slot:           semaphore.NewWeighted(1),
		runner:         runCommand,
	}, nil
}

// Generate produces a script plus a plain-language bullet summary from the
// pattern description and the user's explanation. No execution happens here.
func (e *Executor) Generate(ctx context.Context, patternDescription, userExplanation string, actions []registry.Action) (script, summary string, err error) {
	raw, err := e.llm.Ask(ctx, scriptPrompt(patternDescription, userExplanation, actions), "script_generator")
	if err != nil {
		return "", "", err
	}
	script = stripCodeFence(raw)

	summary, err = e.summarize(ctx, script)
	if err != nil {
		return "", "", err
	}
	return script, summary, nil
}

// Refine feeds the previous script and the user's feedback back to the model
// and returns the replacement script and summary.
func (e *Executor) Refine(ctx context.Context, previousScript, refinement string) (script, summary string, err error) {
	raw, err := e.llm.Ask(ctx, refinePrompt(previousScript, refinement), "script_generator")
	if err != nil {
		return "", "", err
	}
	script = stripCodeFence(raw)

	summary, err = e.summarize(ctx, script)
	if err != nil {
		return "", "", err
	}
	return script, summary, nil
}

func (e *Executor) summarize(ctx context.Context, script string) (string, error) {
	summary, err := e.llm.Ask(ctx, summaryPrompt(script), "script_summarizer")
	if err != nil {
		slog.Warn("Script summary generation failed", "error", err)
		return "• The script automates the detected workflow\n• Review it carefully before executing", nil
	}
	return summary, nil
}

// Execute runs the script: scan declared dependencies, install them, run the
// subprocess with retries. The registry gate is set before installation and
// cleared on every exit path.
func (e *Executor) Execute(ctx context.Context, script string) *Result {
	result := &Result{
		ExecutionID: ulid.Make().String(),
		Timestamp:   float64(time.Now().UnixNano()) / float64(time.Second),
	}

	if err := e.slot.Acquire(ctx, 1); err != nil {
		result.FinalError = fmt.Sprintf("execution slot unavailable: %v", err)
		return result
	}
	defer e.slot.Release(1)

	e.gate.SetAutomationRunning(true)
	defer e.gate.SetAutomationRunning(false)

	required, denied := scanDependencies(script)
	if len(denied) > 0 {
		result.LibraryInstallation = &InstallResult{Success: false, Failed: denied}
		result.FinalError = "script requires packages that are not permitted"
		slog.Warn("Execution refused", "execution_id", result.ExecutionID, "denied", len(denied))
		return result
	}

	if len(required) > 0 {
		install := e.installLibraries(ctx, required)
		result.LibraryInstallation = install
		if !install.Success {
			result.FinalError = "failed to install required libraries"
			return result
		}
	}

	scriptPath, err := e.materialize(script, result.ExecutionID)
	if err != nil {
		result.FinalError = fmt.Sprintf("write script file: %v", err)
		return result
	}

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		start := time.Now()
		run := e.runner(ctx, e.scriptTimeout, e.interpreter, scriptPath)

		a := Attempt{
			Attempt:       attempt,
			ReturnCode:    run.exitCode,
			Output:        run.stdout,
			ExecutionTime: time.Since(start).Seconds(),
		}
		switch {
		case run.timedOut:
			a.ReturnCode = -1
			a.Error = fmt.Sprintf("script execution timed out after %s", e.scriptTimeout)
		case run.err != nil && run.exitCode == 0:
			a.ReturnCode = -1
			a.Error = run.err.Error()
		case run.exitCode != 0:
			a.Error = run.stderr
		}
		result.Attempts = append(result.Attempts, a)

		if a.ReturnCode == 0 && a.Error == "" {
			result.Success = true
			if err := os.Remove(scriptPath); err != nil {
				slog.Debug("Failed to remove script file", "path", scriptPath, "error", err)
			}
			slog.Info("Script execution succeeded", "execution_id", result.ExecutionID, "attempt", attempt)
			return result
		}

		slog.Warn("Script attempt failed", "execution_id", result.ExecutionID, "attempt", attempt, "error", a.Error)
		if ctx.Err() != nil {
			break
		}
	}

	// Keep the materialised script around for diagnostics.
	last := result.Attempts[len(result.Attempts)-1]
	result.FinalError = last.Error
	slog.Error("Script execution failed", "execution_id", result.ExecutionID, "attempts", len(result.Attempts), "script", scriptPath)
	return result
}

func (e *Executor) installLibraries(ctx context.Context, libraries []string) *InstallResult {
	out := &InstallResult{Success: true}
	for _, library := range libraries {
		run := e.runner(ctx, e.installTimeout, e.interpreter, "-m", "pip", "install", library)
		if run.timedOut || run.err != nil || run.exitCode != 0 {
			msg := run.stderr
			if run.timedOut {
				msg = fmt.Sprintf("install timed out after %s", e.installTimeout)
			} else if msg == "" && run.err != nil {
				msg = run.err.Error()
			}
			out.Success = false
			out.Failed = append(out.Failed, InstallFailure{Library: library, Error: msg})
			slog.Warn("Library install failed", "library", library, "error", msg)
			continue
		}
		out.Installed = append(out.Installed, library)
		slog.Info("Library installed", "library", library)
	}
	return out
}

func (e *Executor) materialize(script, executionID string) (string, error) {
	if err := os.MkdirAll(e.scriptsDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(e.scriptsDir, fmt.Sprintf("exec_%s.py", executionID))
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func runCommand(ctx context.Context, timeout time.Duration, name string, args ...string) commandResult {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := commandResult{
		stdout: stdout.String(),
		stderr: stderr.String(),
	}
	if runCtx.Err() == context.DeadlineExceeded {
		res.timedOut = true
		return res
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.exitCode = exitErr.ExitCode()
		} else {
			res.err = err
		}
	}
	return res
}
