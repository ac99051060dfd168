// Package apptracker polls the foreground application and aggregates usage
// into a per-day, hour-bucketed ledger.
package apptracker

import (
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/wingmanhq/wingman/internal/store"
)

// ForegroundFunc reports the current foreground application. ok is false when
// nothing is focused (the interval counts as idle).
type ForegroundFunc func() (app, windowTitle string, ok bool)

// HourUsage is one hour bucket of a day.
type HourUsage struct {
	Apps  map[string]float64 `json:"apps"`
	Total float64            `json:"total"`
}

// DayUsage aggregates one calendar day. Invariant: Total equals the sum of
// the hour bucket totals.
type DayUsage struct {
	Apps  map[string]float64    `json:"apps"`
	Hours map[string]*HourUsage `json:"hours"`
	Total float64               `json:"total"`
}

type ledger struct {
	Days map[string]*DayUsage `json:"days"`
}

// Tracker owns the ledger and the poll/flush loops.
type Tracker struct {
	mu       sync.Mutex
	data     ledger
	path     string
	fg       ForegroundFunc
	poll     time.Duration
	flush    time.Duration
	lastPoll time.Time
	current  string
	running  bool

	done chan struct{}
	wg   sync.WaitGroup
}

func New(dataDir string, fg ForegroundFunc, poll, flush time.Duration) *Tracker {
	if poll <= 0 {
		poll = time.Second
	}
	if flush <= 0 {
		flush = time.Minute
	}
	return &Tracker{
		data:  ledger{Days: make(map[string]*DayUsage)},
		path:  filepath.Join(dataDir, store.AppUsageFile),
		fg:    fg,
		poll:  poll,
		flush: flush,
		done:  make(chan struct{}),
	}
}

func (t *Tracker) Start() {
	t.Load()

	t.mu.Lock()
	t.running = true
	t.lastPoll = time.Now()
	t.mu.Unlock()

	t.wg.Add(1)
	go t.run()
	slog.Info("App usage tracker started")
}

func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	t.mu.Unlock()

	close(t.done)
	t.wg.Wait()

	if err := t.Persist(); err != nil {
		slog.Warn("Failed to persist app usage on shutdown", "error", err)
	}
	slog.Info("App usage tracker stopped")
}

func (t *Tracker) run() {
	defer t.wg.Done()

	pollTicker := time.NewTicker(t.poll)
	defer pollTicker.Stop()
	flushTicker := time.NewTicker(t.flush)
	defer flushTicker.Stop()

	for {
		select {
		case now := <-pollTicker.C:
			t.sample(now)
		case <-flushTicker.C:
			if err := t.Persist(); err != nil {
				slog.Warn("Failed to persist app usage", "error", err)
			}
		case <-t.done:
			return
		}
	}
}

func (t *Tracker) sample(now time.Time) {
	app, _, ok := t.fg()

	t.mu.Lock()
	elapsed := now.Sub(t.lastPoll)
	t.lastPoll = now
	t.current = app
	t.mu.Unlock()

	// Gaps (no focus, or a long suspend) count as idle.
	if !ok || app == "" || elapsed <= 0 || elapsed > 2*t.poll {
		return
	}

	t.accumulate(app, now, elapsed)
}

func (t *Tracker) accumulate(app string, at time.Time, dur time.Duration) {
	day := at.Format("2006-01-02")
	hour := at.Format("15")
	seconds := dur.Seconds()

	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.data.Days[day]
	if !ok {
		d = &DayUsage{Apps: make(map[string]float64), Hours: make(map[string]*HourUsage)}
		t.data.Days[day] = d
	}
	h, ok := d.Hours[hour]
	if !ok {
		h = &HourUsage{Apps: make(map[string]float64)}
		d.Hours[hour] = h
	}

	d.Apps[app] += seconds
	d.Total += seconds
	h.Apps[app] += seconds
	h.Total += seconds
}

// Today returns the usage map and total for the current day.
func (t *Tracker) Today() (map[string]float64, float64) {
	return t.Day(time.Now().Format("2006-01-02"))
}

// Day returns the usage map and total for a specific date.
func (t *Tracker) Day(date string) (map[string]float64, float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.data.Days[date]
	if !ok {
		return map[string]float64{}, 0
	}
	usage := make(map[string]float64, len(d.Apps))
	for app, secs := range d.Apps {
		usage[app] = secs
	}
	return usage, d.Total
}

// Week returns the last seven days keyed by date.
func (t *Tracker) Week() map[string]map[string]any {
	out := make(map[string]map[string]any, 7)
	now := time.Now()
	for i := 0; i < 7; i++ {
		date := now.AddDate(0, 0, -i).Format("2006-01-02")
		usage, total := t.Day(date)
		out[date] = map[string]any{"usage": usage, "total_seconds": total}
	}
	return out
}

// Hourly returns the hour buckets for a date, keyed "00".."23".
func (t *Tracker) Hourly(date string) map[string]map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]map[string]any)
	d, ok := t.data.Days[date]
	if !ok {
		return out
	}
	for hour, h := range d.Hours {
		usage := make(map[string]float64, len(h.Apps))
		for app, secs := range h.Apps {
			usage[app] = secs
		}
		out[hour] = map[string]any{"usage": usage, "total_seconds": h.Total}
	}
	return out
}

// Stats summarises today plus the live foreground app.
func (t *Tracker) Stats() map[string]any {
	usage, total := t.Today()

	mostUsed := ""
	var mostSecs float64
	apps := make([]string, 0, len(usage))
	for app := range usage {
		apps = append(apps, app)
	}
	sort.Strings(apps)
	for _, app := range apps {
		if usage[app] > mostSecs {
			mostUsed = app
			mostSecs = usage[app]
		}
	}

	t.mu.Lock()
	current := t.current
	t.mu.Unlock()

	return map[string]any{
		"total_today":     total,
		"most_used_today": mostUsed,
		"apps_tracked":    len(usage),
		"current_app":     current,
	}
}

func (t *Tracker) Persist() error {
	t.mu.Lock()
	snapshot := ledger{Days: make(map[string]*DayUsage, len(t.data.Days))}
	for date, d := range t.data.Days {
		day := &DayUsage{
			Apps:  make(map[string]float64, len(d.Apps)),
			Hours: make(map[string]*HourUsage, len(d.Hours)),
			Total: d.Total,
		}
		for app, secs := range d.Apps {
			day.Apps[app] = secs
		}
		for hour, h := range d.Hours {
			hb := &HourUsage{Apps: make(map[string]float64, len(h.Apps)), Total: h.Total}
			for app, secs := range h.Apps {
				hb.Apps[app] = secs
			}
			day.Hours[hour] = hb
		}
		snapshot.Days[date] = day
	}
	t.mu.Unlock()

	return store.SaveJSON(t.path, snapshot)
}

func (t *Tracker) Load() {
	var data ledger
	ok, err := store.LoadJSON(t.path, &data)
	if err != nil {
		slog.Warn("App usage ledger unreadable, starting empty", "error", err)
		return
	}
	if !ok || data.Days == nil {
		return
	}

	t.mu.Lock()
	t.data = data
	t.mu.Unlock()
	slog.Info("App usage ledger loaded", "days", len(data.Days))
}
