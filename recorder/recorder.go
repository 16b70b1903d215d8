// Package recorder orchestrates browser interaction recording: it owns
// the Chrome lifecycle, attaches a capture script plus a coalescing
// engine to each page, and follows the externally persisted recording
// state so engines gate reactively without page reloads.
//
// The recorder observes, it does not decide: recording starts and
// stops in the session coordinator, and the engines here are passive
// followers of its broadcast state.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/harrydbarnes/recordsteps/idgen"
	"github.com/harrydbarnes/recordsteps/recorder/internal/browser"
	"github.com/harrydbarnes/recordsteps/recorder/internal/capture"
	"github.com/harrydbarnes/recordsteps/recorder/internal/engine"
	"github.com/harrydbarnes/recordsteps/recorder/sink"
	"github.com/harrydbarnes/recordsteps/step"
)

// StateSource is where the recorder observes the coordinator-owned
// recording state: one authoritative read at page attach, then a
// change subscription. session.StateFeed implements it.
type StateSource interface {
	Current(ctx context.Context) (step.State, error)
	Subscribe() (<-chan step.State, func())
}

// Recorder is the top-level orchestrator. Create one per process.
type Recorder struct {
	cfg    *Config
	mgr    *browser.Manager
	snk    sink.Sink
	states StateSource
	logger *slog.Logger
	pageID idgen.Generator

	mu    sync.Mutex
	pages map[string]*pageSession
}

// pageSession bundles everything attached to one tab.
type pageSession struct {
	tab *browser.Tab
	eng *engine.Engine
	lst *capture.Listener
}

// New creates a Recorder. Records flow to all given sinks through a
// fan-out router.
func New(cfg *Config, states StateSource, logger *slog.Logger, sinks ...sink.Sink) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.ApplyDefaults()
	return &Recorder{
		cfg: cfg,
		mgr: browser.NewManager(browser.Config{
			RemoteURL: cfg.Browser.Remote,
			Headless:  cfg.Browser.Headless,
			Stealth:   cfg.Browser.Stealth,
			Logger:    logger,
		}),
		snk:    sink.NewRouter(logger, sinks...),
		states: states,
		logger: logger,
		pageID: idgen.Prefixed("page_", idgen.UUIDv7()),
		pages:  make(map[string]*pageSession),
	}
}

// Start launches (or connects to) the browser and begins following
// state changes. It returns once the browser is up; the follow loop
// runs until ctx is cancelled.
func (r *Recorder) Start(ctx context.Context) error {
	if err := r.mgr.Start(); err != nil {
		return fmt.Errorf("recorder: %w", err)
	}
	go r.follow(ctx)
	return nil
}

// Attach opens a tab on the URL and wires capture into it. The initial
// recording state is read before anything touches the page: a page
// whose gating state cannot be determined must not record at all.
func (r *Recorder) Attach(ctx context.Context, pageURL string) (string, error) {
	st, err := r.states.Current(ctx)
	if err != nil {
		return "", fmt.Errorf("recorder: initial state unreadable, refusing to attach: %w", err)
	}

	id := r.pageID()
	tab, err := browser.OpenTab(ctx, r.mgr, pageURL, id)
	if err != nil {
		return "", fmt.Errorf("recorder: %w", err)
	}

	eng := engine.New(engine.Config{
		Host:         tab,
		Sink:         r.snk,
		State:        st,
		URL:          tab.URL(),
		Title:        tab.Title(),
		AttrDebounce: r.cfg.Capture.AttrDebounce,
		AttrCap:      r.cfg.Capture.AttrCap,
		HoverDelay:   r.cfg.Capture.HoverDelay,
		TypingCap:    r.cfg.Capture.TypingCap,
		Logger:       r.logger,
	})
	eng.Start()

	lst, err := capture.Attach(tab, eng, r.logger)
	if err != nil {
		eng.Stop()
		tab.Close()
		return "", fmt.Errorf("recorder: %w", err)
	}

	r.mu.Lock()
	r.pages[id] = &pageSession{tab: tab, eng: eng, lst: lst}
	r.mu.Unlock()

	r.logger.Info("recorder: attached", "page", id, "url", pageURL, "recording", st.Active)
	return id, nil
}

// Detach tears down one page: the engine flushes buffered attribute
// data and discards any unfinished typing run with its page.
func (r *Recorder) Detach(pageID string) error {
	r.mu.Lock()
	ps, ok := r.pages[pageID]
	delete(r.pages, pageID)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("recorder: unknown page %s", pageID)
	}
	ps.lst.Detach()
	ps.eng.Stop()
	if err := ps.tab.Close(); err != nil {
		r.logger.Warn("recorder: close tab", "page", pageID, "error", err)
	}
	return nil
}

// Pages lists the currently attached page IDs.
func (r *Recorder) Pages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.pages))
	for id := range r.pages {
		out = append(out, id)
	}
	return out
}

// Stop detaches every page and shuts the browser down.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	pages := r.pages
	r.pages = make(map[string]*pageSession)
	r.mu.Unlock()

	for id, ps := range pages {
		ps.lst.Detach()
		ps.eng.Stop()
		if err := ps.tab.Close(); err != nil {
			r.logger.Debug("recorder: close tab", "page", id, "error", err)
		}
	}
	return r.mgr.Close()
}

// follow fans every state observation out to all engines. Engines are
// level-triggered, so replaying an unchanged state is harmless.
func (r *Recorder) follow(ctx context.Context) {
	updates, cancel := r.states.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			r.mu.Lock()
			for _, ps := range r.pages {
				ps.eng.ApplyState(st)
			}
			r.mu.Unlock()
		}
	}
}
