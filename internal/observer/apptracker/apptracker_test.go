package apptracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noForeground() (string, string, bool) { return "", "", false }

func TestAccumulate_SpansHourBuckets(t *testing.T) {
	tr := New(t.TempDir(), noForeground, time.Second, time.Minute)

	day := time.Date(2026, 8, 6, 13, 0, 0, 0, time.Local)

	// 35 minutes in hour 13, 30 minutes in hour 14.
	for i := 0; i < 35; i++ {
		tr.accumulate("editor", day.Add(time.Duration(i)*time.Minute), time.Minute)
	}
	hour14 := time.Date(2026, 8, 6, 14, 0, 0, 0, time.Local)
	for i := 0; i < 30; i++ {
		tr.accumulate("editor", hour14.Add(time.Duration(i)*time.Minute), time.Minute)
	}

	usage, total := tr.Day("2026-08-06")
	assert.InDelta(t, 65*60, total, 1)
	assert.InDelta(t, 65*60, usage["editor"], 1)

	hourly := tr.Hourly("2026-08-06")
	require.Len(t, hourly, 2)
	assert.InDelta(t, 35*60, hourly["13"]["total_seconds"], 1)
	assert.InDelta(t, 30*60, hourly["14"]["total_seconds"], 1)

	// Day total equals the sum over hour buckets.
	sum := 0.0
	for _, h := range hourly {
		sum += h["total_seconds"].(float64)
	}
	assert.InDelta(t, total, sum, 0.001)
}

func TestDay_UnknownDateIsEmpty(t *testing.T) {
	tr := New(t.TempDir(), noForeground, time.Second, time.Minute)
	usage, total := tr.Day("1999-01-01")
	assert.Empty(t, usage)
	assert.Zero(t, total)
}

func TestStats(t *testing.T) {
	tr := New(t.TempDir(), noForeground, time.Second, time.Minute)

	now := time.Now()
	tr.accumulate("editor", now, 120*time.Second)
	tr.accumulate("browser", now, 300*time.Second)

	stats := tr.Stats()
	assert.Equal(t, "browser", stats["most_used_today"])
	assert.Equal(t, 2, stats["apps_tracked"])
	assert.InDelta(t, 420, stats["total_today"].(float64), 1)
}

func TestWeek_ContainsSevenDays(t *testing.T) {
	tr := New(t.TempDir(), noForeground, time.Second, time.Minute)
	tr.accumulate("editor", time.Now(), time.Minute)

	week := tr.Week()
	assert.Len(t, week, 7)

	today := time.Now().Format("2006-01-02")
	assert.InDelta(t, 60, week[today]["total_seconds"].(float64), 1)
}

func TestSample_GapCountsAsIdle(t *testing.T) {
	tr := New(t.TempDir(), func() (string, string, bool) { return "editor", "", true }, time.Second, time.Minute)

	tr.mu.Lock()
	tr.lastPoll = time.Now().Add(-10 * time.Second)
	tr.mu.Unlock()

	// Elapsed is far beyond twice the poll interval, so nothing accrues.
	tr.sample(time.Now())
	_, total := tr.Today()
	assert.Zero(t, total)
}

func TestPersistAndLoad(t *testing.T) {
	dir := t.TempDir()

	tr := New(dir, noForeground, time.Second, time.Minute)
	tr.accumulate("editor", time.Date(2026, 8, 6, 9, 0, 0, 0, time.Local), 90*time.Second)
	require.NoError(t, tr.Persist())

	restored := New(dir, noForeground, time.Second, time.Minute)
	restored.Load()

	usage, total := restored.Day("2026-08-06")
	assert.InDelta(t, 90, total, 0.001)
	assert.InDelta(t, 90, usage["editor"], 0.001)
}

func TestStartStop(t *testing.T) {
	tr := New(t.TempDir(), func() (string, string, bool) { return "editor", "", true }, 10*time.Millisecond, time.Minute)

	tr.Start()
	time.Sleep(60 * time.Millisecond)
	tr.Stop()

	_, total := tr.Today()
	assert.Greater(t, total, 0.0)
}
