package session

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/harrydbarnes/recordsteps/step"
	"github.com/harrydbarnes/recordsteps/watch"
)

// StateFeed turns the persisted recording state into a reactive
// subscription. It polls the state row's version counter (via watch)
// and broadcasts the fresh state to subscribers whenever it actually
// differs — engines in other processes or goroutines follow recording
// on/off and verbosity without the store pushing into them.
//
// The feed is eventually consistent: a subscriber may hold a stale
// state for up to one poll interval.
type StateFeed struct {
	store  *Store
	w      *watch.Watcher
	logger *slog.Logger

	mu   sync.Mutex
	last step.State
	seen bool
	subs map[int]chan step.State
	next int
}

// FeedOptions tunes the feed.
type FeedOptions struct {
	// Interval is the store poll frequency. Default: 250ms.
	Interval time.Duration
	Logger   *slog.Logger
}

// NewStateFeed creates a feed over the store. Call Run to start
// polling.
func NewStateFeed(store *Store, opts FeedOptions) *StateFeed {
	if opts.Interval <= 0 {
		opts.Interval = 250 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	f := &StateFeed{
		store:  store,
		logger: opts.Logger,
		subs:   make(map[int]chan step.State),
	}
	f.w = watch.New(store.DB, watch.Options{
		Interval: opts.Interval,
		Detector: stateVersion,
		Logger:   opts.Logger,
	})
	return f
}

// stateVersion reads the counter SetState bumps. Unlike PRAGMA
// data_version it moves for writes on any connection, including the
// watcher's own.
func stateVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx,
		`SELECT version FROM recording_state WHERE id = 1`).Scan(&v)
	return v, err
}

// Current reads the recording state directly from the store. Engines
// use it at initialisation, where a read failure must prevent startup.
func (f *StateFeed) Current(ctx context.Context) (step.State, error) {
	return f.store.State(ctx)
}

// Run blocks polling for state changes until ctx is cancelled.
func (f *StateFeed) Run(ctx context.Context) {
	// Seed subscribers created before the first change.
	if st, err := f.store.State(ctx); err == nil {
		f.mu.Lock()
		f.last, f.seen = st, true
		f.mu.Unlock()
	}
	f.w.OnChange(ctx, func() error {
		return f.reload(ctx)
	})
}

// Subscribe registers a state subscriber. The channel immediately
// carries the last known state when one has been observed, then every
// change. Cancel releases the subscription.
func (f *StateFeed) Subscribe() (<-chan step.State, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	ch := make(chan step.State, 8)
	if f.seen {
		ch <- f.last
	}
	f.subs[id] = ch
	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(ch)
		}
	}
}

// reload re-reads the state and broadcasts it when it changed. A
// version bump with an unchanged state (idempotent SetState) is
// swallowed.
func (f *StateFeed) reload(ctx context.Context) error {
	st, err := f.store.State(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen && st == f.last {
		return nil
	}
	f.last, f.seen = st, true
	f.logger.Debug("session: state changed",
		"active", st.Active, "session", st.SessionID, "verbosity", st.Verbosity)
	for _, ch := range f.subs {
		select {
		case ch <- st:
		default:
			// A full subscriber buffer means it has unprocessed older
			// states; the newest one still matters, so drop the oldest.
			select {
			case <-ch:
			default:
			}
			ch <- st
		}
	}
	return nil
}
