// Package watch polls a SQLite database for changes and runs a reload
// action when one lands. The session state feed is the consumer: the
// recording-state row carries a version counter, the watcher polls it,
// and engines learn about panel toggles without anyone pushing into
// them.
//
//	w := watch.New(db, watch.Options{
//		Interval: 250 * time.Millisecond,
//		Detector: stateVersion,
//	})
//	w.OnChange(ctx, func() error { return feed.Reload() })
package watch

import (
	"context"
	"database/sql"
	"log/slog"
	"sync/atomic"
	"time"
)

// ChangeDetector reads a version token from the database. Two calls
// returning different values mean "something changed". int64 fits all
// the usual sources: a version column, PRAGMA data_version, PRAGMA
// user_version.
type ChangeDetector func(ctx context.Context, db *sql.DB) (int64, error)

// Options tunes the watcher.
type Options struct {
	// Interval is the polling frequency. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period after a detected change before the
	// action fires; further changes inside the window reset it.
	// 0 fires immediately.
	Debounce time.Duration
	// Detector defaults to PragmaDataVersion. Note its limitation:
	// data_version only moves for writes from OTHER connections, so
	// watchers sharing a pool with the writer need their own detector.
	Detector ChangeDetector
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Watcher polls for version changes and runs a reload action. Safe for
// concurrent use.
type Watcher struct {
	db      *sql.DB
	opts    Options
	version atomic.Int64
}

// New creates a Watcher. Call OnChange to start polling.
func New(db *sql.DB, opts Options) *Watcher {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Detector == nil {
		opts.Detector = PragmaDataVersion
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Watcher{db: db, opts: opts}
}

// Version returns the last version whose reload succeeded.
func (w *Watcher) Version() int64 { return w.version.Load() }

// OnChange polls at the configured interval until ctx is cancelled,
// calling action after each debounced version change. When action
// fails the version is not advanced, so the next poll retries it.
func (w *Watcher) OnChange(ctx context.Context, action func() error) {
	log := w.opts.Logger

	if v, err := w.opts.Detector(ctx, w.db); err != nil {
		log.Warn("watch: initial version read failed", "error", err)
	} else {
		w.version.Store(v)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var settle *time.Timer
	var settleC <-chan time.Time
	pending := int64(-1)

	log.Debug("watch: polling", "interval", w.opts.Interval, "debounce", w.opts.Debounce)

	for {
		select {
		case <-ctx.Done():
			if settle != nil {
				settle.Stop()
			}
			return

		case <-ticker.C:
			cur, err := w.opts.Detector(ctx, w.db)
			if err != nil {
				log.Warn("watch: version read failed", "error", err)
				continue
			}
			if cur == w.version.Load() || cur == pending {
				continue
			}
			pending = cur
			if w.opts.Debounce <= 0 {
				w.fire(action, pending, log)
				pending = -1
				continue
			}
			// Restart the quiet-period timer on every fresh version.
			if settle != nil {
				settle.Stop()
			}
			settle = time.NewTimer(w.opts.Debounce)
			settleC = settle.C

		case <-settleC:
			settleC = nil
			if pending >= 0 {
				w.fire(action, pending, log)
				pending = -1
			}
		}
	}
}

// fire runs the action for version v, advancing the watcher's version
// on success. On failure the version stays put, so the caller's next
// poll sees the change again and retries.
func (w *Watcher) fire(action func() error, v int64, log *slog.Logger) {
	if err := action(); err != nil {
		log.Error("watch: reload failed", "version", v, "error", err)
		return
	}
	w.version.Store(v)
	log.Debug("watch: reloaded", "version", v)
}

// PragmaDataVersion reads PRAGMA data_version, which increments when
// another connection writes the database file. It never moves for
// writes on the polling connection itself.
func PragmaDataVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}

// PragmaUserVersion reads PRAGMA user_version, an application-managed
// counter the writer bumps explicitly.
func PragmaUserVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v)
	return v, err
}
