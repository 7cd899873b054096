// Package report provides reporter sinks for sync outcomes.
package report

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/fatih/color"

	"github.com/bucketsync/bucketsync/pkg/syncer"
)

var stateColors = map[syncer.State]*color.Color{
	syncer.StateCreate: color.New(color.FgGreen),
	syncer.StateUpdate: color.New(color.FgCyan),
	syncer.StateDelete: color.New(color.FgRed),
	syncer.StateSkip:   color.New(color.Faint),
	syncer.StateCache:  color.New(color.Faint),
}

// Console writes one line per record, colored by state.
type Console struct {
	Out io.Writer
	// Quiet suppresses skip and cache lines.
	Quiet bool

	mu sync.Mutex
}

func (c *Console) Report(rec *syncer.FileRecord) {
	state := rec.Outcome.State
	if c.Quiet && (state == syncer.StateSkip || state == syncer.StateCache) {
		return
	}

	label := string(state)
	if label == "" {
		label = "simulate"
	}
	if painter, ok := stateColors[state]; ok {
		label = painter.Sprint(label)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.Out, "[%s] %s\n", label, rec.Outcome.Key)
}

// Log reports records through slog, useful when the sync runs embedded in a
// larger process.
type Log struct {
	Logger *slog.Logger
}

func (l *Log) Report(rec *syncer.FileRecord) {
	l.Logger.Info("sync",
		"state", string(rec.Outcome.State),
		"key", rec.Outcome.Key,
	)
}

// Counter tallies outcomes per state for an end-of-run summary.
type Counter struct {
	mu     sync.Mutex
	counts map[syncer.State]int
}

func (c *Counter) Report(rec *syncer.FileRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[syncer.State]int)
	}
	c.counts[rec.Outcome.State]++
}

// Count returns the number of records that ended in state.
func (c *Counter) Count(state syncer.State) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[state]
}

// Multi fans a record out to several reporters in order.
type Multi []syncer.Reporter

func (m Multi) Report(rec *syncer.FileRecord) {
	for _, r := range m {
		r.Report(rec)
	}
}
