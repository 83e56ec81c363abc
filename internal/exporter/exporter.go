// Package exporter writes session backups to disk on a cron schedule.
package exporter

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/zulandar/crewdesk/internal/logging"
	"github.com/zulandar/crewdesk/internal/session"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Source produces the export document.
type Source interface {
	ExportAllSessions(w io.Writer) error
}

// Exporter writes exports of a Source into a directory.
type Exporter struct {
	source   Source
	dir      string
	schedule cron.Schedule
	now      func() time.Time
	log      zerolog.Logger
}

// Opts holds parameters for creating an Exporter.
type Opts struct {
	Source   Source
	Dir      string
	Schedule string // empty disables Run
	Now      func() time.Time
}

// New creates an Exporter. An invalid schedule is an error.
func New(opts Opts) (*Exporter, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("exporter: source is required")
	}
	if opts.Dir == "" {
		return nil, fmt.Errorf("exporter: dir is required")
	}
	e := &Exporter{
		source: opts.Source,
		dir:    opts.Dir,
		now:    opts.Now,
		log:    logging.For("exporter"),
	}
	if e.now == nil {
		e.now = time.Now
	}
	if opts.Schedule != "" {
		sched, err := cronParser.Parse(opts.Schedule)
		if err != nil {
			return nil, fmt.Errorf("exporter: schedule %q: %w", opts.Schedule, err)
		}
		e.schedule = sched
	}
	return e, nil
}

// Scheduled reports whether Run has a schedule to follow.
func (e *Exporter) Scheduled() bool { return e.schedule != nil }

// Next returns the first fire time after t, or the zero time when unscheduled.
func (e *Exporter) Next(t time.Time) time.Time {
	if e.schedule == nil {
		return time.Time{}
	}
	return e.schedule.Next(t)
}

// WriteOnce writes one export file and returns its path. A file for the same
// day is overwritten.
func (e *Exporter) WriteOnce() (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("exporter: create %s: %w", e.dir, err)
	}
	path := filepath.Join(e.dir, session.ExportFileName(e.now()))
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("exporter: create %s: %w", tmp, err)
	}
	if err := e.source.ExportAllSessions(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("exporter: write: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("exporter: close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("exporter: rename %s: %w", path, err)
	}
	return path, nil
}

// Run writes an export at every scheduled time until ctx is cancelled. It
// returns immediately when no schedule is configured. Failed exports are
// logged and retried at the next fire time.
func (e *Exporter) Run(ctx context.Context) {
	if e.schedule == nil {
		return
	}
	timer := time.NewTimer(e.untilNext())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if path, err := e.WriteOnce(); err != nil {
				e.log.Warn().Err(err).Msg("scheduled export failed")
			} else {
				e.log.Info().Str("path", path).Msg("sessions exported")
			}
			timer.Reset(e.untilNext())
		}
	}
}

func (e *Exporter) untilNext() time.Duration {
	now := e.now()
	return max(e.schedule.Next(now).Sub(now), 0)
}
