package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harrydbarnes/recordsteps/idgen"
	"github.com/harrydbarnes/recordsteps/step"
)

// ErrNotRecording is returned by Stop when no session is active.
var ErrNotRecording = errors.New("session: not recording")

// ErrAlreadyRecording is returned by Start when a session is active.
var ErrAlreadyRecording = errors.New("session: already recording")

// Service owns the recording lifecycle: it is the only writer of the
// persisted recording state. Engines observe that state through the
// StateFeed; the panel and MCP tools drive it through this type.
type Service struct {
	store  *Store
	logger *slog.Logger

	sessionID idgen.Generator
	stepID    idgen.Generator
	now       func() time.Time

	mu   sync.Mutex
	subs map[int]chan step.Record
	next int
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithIDGenerators overrides the session and step ID generators.
func WithIDGenerators(sessionID, stepID idgen.Generator) ServiceOption {
	return func(s *Service) {
		s.sessionID = sessionID
		s.stepID = stepID
	}
}

// NewService creates a Service over the store.
func NewService(store *Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:     store,
		logger:    slog.Default(),
		sessionID: idgen.Prefixed("sess_", idgen.UUIDv7()),
		stepID:    idgen.Prefixed("step_", idgen.UUIDv7()),
		now:       time.Now,
		subs:      make(map[int]chan step.Record),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start begins a new recording session at the given verbosity and
// flips the persisted state to active. Engines pick the change up on
// their next state observation.
func (s *Service) Start(ctx context.Context, startURL string, verbosity step.Verbosity) (*Session, error) {
	st, err := s.store.State(ctx)
	if err != nil {
		return nil, err
	}
	if st.Active {
		return nil, ErrAlreadyRecording
	}

	sess := &Session{
		ID:          s.sessionID(),
		StartedAtMs: s.now().UnixMilli(),
		StartURL:    startURL,
		Verbosity:   int(verbosity.Clamp()),
	}
	if err := s.store.InsertSession(ctx, sess); err != nil {
		return nil, err
	}
	err = s.store.SetState(ctx, step.State{
		Active:      true,
		SessionID:   sess.ID,
		StartedAtMs: sess.StartedAtMs,
		Verbosity:   verbosity.Clamp(),
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("session: recording started",
		"session", sess.ID, "verbosity", sess.Verbosity, "url", startURL)
	return sess, nil
}

// Stop ends the active session. The verbosity survives in the state
// row so the next Start without an explicit level reuses it.
func (s *Service) Stop(ctx context.Context) (*Session, error) {
	st, err := s.store.State(ctx)
	if err != nil {
		return nil, err
	}
	if !st.Active {
		return nil, ErrNotRecording
	}

	endedAt := s.now().UnixMilli()
	if err := s.store.EndSession(ctx, st.SessionID, endedAt); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	err = s.store.SetState(ctx, step.State{
		Active:    false,
		Verbosity: st.Verbosity,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("session: recording stopped", "session", st.SessionID)
	return s.store.GetSession(ctx, st.SessionID)
}

// SetVerbosity changes the capture level mid-session (or the level the
// next session starts with, when idle).
func (s *Service) SetVerbosity(ctx context.Context, v step.Verbosity) error {
	st, err := s.store.State(ctx)
	if err != nil {
		return err
	}
	st.Verbosity = v.Clamp()
	return s.store.SetState(ctx, st)
}

// State returns the current recording state.
func (s *Service) State(ctx context.Context) (step.State, error) {
	return s.store.State(ctx)
}

// Status is the panel-facing view: state plus the active session's
// step count.
type Status struct {
	State     step.State `json:"state"`
	StepCount int        `json:"step_count"`
}

// Status reports the current state and, when recording, how many steps
// the active session holds.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	st, err := s.store.State(ctx)
	if err != nil {
		return nil, err
	}
	out := &Status{State: st}
	if st.Active && st.SessionID != "" {
		n, err := s.store.StepCount(ctx, st.SessionID)
		if err != nil {
			return nil, err
		}
		out.StepCount = n
	}
	return out, nil
}

// Append persists one record under the active session and notifies
// live-stream subscribers. Records arriving while no session is active
// are rejected: the engines' gating normally prevents this, but a
// stale engine may still deliver after a stop.
func (s *Service) Append(ctx context.Context, rec step.Record) (step.Record, error) {
	st, err := s.store.State(ctx)
	if err != nil {
		return rec, err
	}
	if !st.Active {
		return rec, ErrNotRecording
	}
	stored, err := s.store.AppendStep(ctx, st.SessionID, s.stepID(), rec)
	if err != nil {
		return rec, err
	}
	s.broadcast(stored)
	return stored, nil
}

// Steps returns a session's ordered record log.
func (s *Service) Steps(ctx context.Context, sessionID string) ([]step.Record, error) {
	return s.store.Steps(ctx, sessionID)
}

// Sessions lists all sessions, newest first.
func (s *Service) Sessions(ctx context.Context) ([]*Session, error) {
	return s.store.ListSessions(ctx)
}

// Session returns one session by ID.
func (s *Service) Session(ctx context.Context, id string) (*Session, error) {
	return s.store.GetSession(ctx, id)
}

// Clear deletes a session and its steps. The active session cannot be
// cleared; stop first.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	st, err := s.store.State(ctx)
	if err != nil {
		return err
	}
	if st.Active && st.SessionID == sessionID {
		return fmt.Errorf("session: clear %s: %w", sessionID, ErrAlreadyRecording)
	}
	return s.store.DeleteSession(ctx, sessionID)
}

// Subscribe registers a live-stream subscriber receiving every record
// appended from now on. The returned cancel function must be called to
// release the subscription. Slow subscribers drop records rather than
// block appends.
func (s *Service) Subscribe() (<-chan step.Record, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	ch := make(chan step.Record, 64)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
}

func (s *Service) broadcast(rec step.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- rec:
		default:
			s.logger.Debug("session: dropping record for slow subscriber", "seq", rec.Seq)
		}
	}
}
