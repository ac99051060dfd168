// Package input turns raw key and focus events into key_sequence and
// app_focus actions. Raw capture is platform specific and supplied through
// the Source interface; this package owns the buffering contract.
package input

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/wingmanhq/wingman/internal/registry"
)

// KeyEvent is one formatted key press ("h", "ctrl+c", "Alt+Tab").
type KeyEvent struct {
	Key string
	At  time.Time
}

// FocusEvent is a foreground-application change.
type FocusEvent struct {
	App         string
	WindowTitle string
	At          time.Time
}

// Source produces raw events. Implementations wrap the OS capture APIs.
type Source interface {
	Start() error
	Stop()
	Keys() <-chan KeyEvent
	Focus() <-chan FocusEvent
}

// Sink receives normalised actions. Satisfied by *registry.Registry.
type Sink interface {
	Register(actionType string, details map[string]any, source string, metadata map[string]any) (int64, error)
}

// FocusListener is notified of every focus change, in addition to the
// app_focus action.
type FocusListener func(app, windowTitle string)

const recentKeysCap = 30

// Observer buffers keystrokes into one KeySequence action, flushed when the
// focus changes, the keyboard goes idle, or the buffer fills up.
type Observer struct {
	sink      Sink
	source    Source
	flushIdle time.Duration
	maxTokens int
	listeners []FocusListener

	mu          sync.Mutex
	buffer      []string
	bufferStart time.Time
	idleTimer   *time.Timer
	currentApp  string
	currentWin  string
	recentKeys  []string
	switches    []FocusEvent
	running     bool

	done chan struct{}
	wg   sync.WaitGroup
}

func New(sink Sink, source Source, flushIdle time.Duration, maxTokens int) *Observer {
	if flushIdle <= 0 {
		flushIdle = 3 * time.Second
	}
	if maxTokens <= 0 {
		maxTokens = 64
	}
	return &Observer{
		sink:      sink,
		source:    source,
		flushIdle: flushIdle,
		maxTokens: maxTokens,
		done:      make(chan struct{}),
	}
}

// OnFocusChange registers a listener. Must be called before Start.
func (o *Observer) OnFocusChange(fn FocusListener) {
	o.listeners = append(o.listeners, fn)
}

func (o *Observer) Start() error {
	if err := o.source.Start(); err != nil {
		return err
	}

	o.mu.Lock()
	o.running = true
	o.mu.Unlock()

	o.wg.Add(1)
	go o.loop()

	slog.Info("Input observer started")
	return nil
}

func (o *Observer) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	o.mu.Unlock()

	o.source.Stop()
	close(o.done)
	o.wg.Wait()
	o.flush("shutdown")
	slog.Info("Input observer stopped")
}

func (o *Observer) loop() {
	defer o.wg.Done()

	for {
		select {
		case ev, ok := <-o.source.Keys():
			if !ok {
				return
			}
			o.onKey(ev)
		case ev, ok := <-o.source.Focus():
			if !ok {
				return
			}
			o.onFocus(ev)
		case <-o.done:
			return
		}
	}
}

func (o *Observer) onKey(ev KeyEvent) {
	o.mu.Lock()
	if len(o.buffer) == 0 {
		o.bufferStart = ev.At
	}
	o.buffer = append(o.buffer, ev.Key)

	o.recentKeys = append(o.recentKeys, ev.Key)
	if len(o.recentKeys) > recentKeysCap {
		o.recentKeys = o.recentKeys[len(o.recentKeys)-recentKeysCap:]
	}

	if o.idleTimer != nil {
		o.idleTimer.Stop()
	}
	o.idleTimer = time.AfterFunc(o.flushIdle, func() { o.flush("idle") })

	full := len(o.buffer) >= o.maxTokens
	o.mu.Unlock()

	if full {
		o.flush("buffer_full")
	}
}

func (o *Observer) onFocus(ev FocusEvent) {
	o.flush("focus_change")

	o.mu.Lock()
	previous := o.currentApp
	o.currentApp = ev.App
	o.currentWin = ev.WindowTitle
	o.switches = append(o.switches, ev)
	if len(o.switches) > 10 {
		o.switches = o.switches[len(o.switches)-10:]
	}
	listeners := o.listeners
	o.mu.Unlock()

	if previous == ev.App {
		return
	}

	details := map[string]any{"app_name": ev.App}
	if ev.WindowTitle != "" {
		details["window_title"] = ev.WindowTitle
	}
	if previous != "" {
		details["previous_app"] = previous
	}
	if _, err := o.sink.Register(registry.TypeAppFocus, details, registry.SourceInputMonitor, nil); err != nil {
		slog.Debug("Focus event not admitted", "app", ev.App, "error", err)
	}

	for _, fn := range listeners {
		fn(ev.App, ev.WindowTitle)
	}
}

// flush emits the buffered keys as one key_sequence action.
func (o *Observer) flush(reason string) {
	o.mu.Lock()
	if len(o.buffer) == 0 {
		o.mu.Unlock()
		return
	}
	seq := registry.KeySequence{
		Sequence:        strings.Join(o.buffer, " "),
		DurationSeconds: time.Since(o.bufferStart).Seconds(),
		Application:     o.currentApp,
	}
	o.buffer = nil
	if o.idleTimer != nil {
		o.idleTimer.Stop()
		o.idleTimer = nil
	}
	o.mu.Unlock()

	if _, err := o.sink.Register(registry.TypeKeySequence, seq.Details(), registry.SourceInputMonitor, map[string]any{"flush_reason": reason}); err != nil {
		slog.Debug("Key sequence not admitted", "reason", reason, "error", err)
	}
}

// RecentKeys returns the last keys pressed, oldest first.
func (o *Observer) RecentKeys() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.recentKeys))
	copy(out, o.recentKeys)
	return out
}

// CurrentFocus returns the foreground application and window title.
func (o *Observer) CurrentFocus() (app, windowTitle string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.currentApp, o.currentWin
}

// RecentSwitches returns the last focus transitions, oldest first.
func (o *Observer) RecentSwitches() []FocusEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]FocusEvent, len(o.switches))
	copy(out, o.switches)
	return out
}
