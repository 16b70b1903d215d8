// Package engine implements the capture and coalescing state machine:
// one instance per page context, fed raw events by the capture
// listener, emitting finished records to a sink.
//
// The engine is a passive follower of externally owned recording
// state. It never writes that state; it observes changes through
// ApplyState and recomputes its gating level-triggered, so a stale
// flag is corrected by the next observation rather than by any
// handshake.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/harrydbarnes/recordsteps/describe"
	"github.com/harrydbarnes/recordsteps/dom"
	"github.com/harrydbarnes/recordsteps/recorder/internal/page"
	"github.com/harrydbarnes/recordsteps/recorder/sink"
	"github.com/harrydbarnes/recordsteps/step"
)

// Host is the narrow surface the engine needs from its page context.
// A nil Host disables pulses, capture-level adjustment and selector
// verification, which the offline tests rely on.
type Host interface {
	dom.Query

	// SetCaptureLevel attaches or detaches the in-page mutation
	// observer and hover listeners. Invoked only when a state change
	// flips what the current tier consumes, so idle pages carry no
	// observation cost.
	SetCaptureLevel(ctx context.Context, mutations, hover bool) error

	// Pulse shows the transient click indicator at page coordinates.
	// Best-effort: failures are logged at debug and ignored.
	Pulse(ctx context.Context, x, y float64) error
}

// Config assembles an Engine. State is the initial recording state the
// orchestrator read before construction; a page whose state cannot be
// read never gets an engine at all.
type Config struct {
	Host  Host
	Sink  sink.Sink
	State step.State
	URL   string
	Title string

	// AttrDebounce is the quiet window closing an attribute batch.
	// Default: 200ms.
	AttrDebounce time.Duration
	// AttrCap flushes the attribute batch immediately at this size.
	// Default: 50.
	AttrCap int
	// HoverDelay is how long the pointer must rest on one element.
	// Default: 500ms.
	HoverDelay time.Duration
	// TypingCap flushes the typing accumulator at this many
	// sub-events. Default: 200.
	TypingCap int

	Logger *slog.Logger
	// Now is the clock used for flush-time stamps. Default: time.Now.
	Now func() time.Time
}

func (c *Config) defaults() {
	if c.AttrDebounce <= 0 {
		c.AttrDebounce = 200 * time.Millisecond
	}
	if c.AttrCap <= 0 {
		c.AttrCap = 50
	}
	if c.HoverDelay <= 0 {
		c.HoverDelay = 500 * time.Millisecond
	}
	if c.TypingCap <= 0 {
		c.TypingCap = 200
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Engine coalesces raw page events into records. All mutable fields
// below the channels are owned by the run loop goroutine.
type Engine struct {
	host   Host
	snk    sink.Sink
	desc   *describe.Builder
	logger *slog.Logger
	now    func() time.Time

	typingCap int

	events chan page.Event
	states chan step.State
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	st       step.State
	url      string
	title    string
	typing   typingBuffer
	attrs    *attrBatch
	attrDesc *describe.Batch
	hover    hoverState
	lastRel  int64

	mutationsOn bool
	hoverOn     bool
}

// New builds an Engine. Call Start to begin processing and Stop to
// tear it down.
func New(cfg Config) *Engine {
	cfg.defaults()
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		host:      cfg.Host,
		snk:       cfg.Sink,
		logger:    cfg.Logger,
		now:       cfg.Now,
		typingCap: cfg.TypingCap,
		events:    make(chan page.Event, 1024),
		states:    make(chan step.State, 8),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		st:        cfg.State,
		url:       cfg.URL,
		title:     cfg.Title,
		hover:     hoverState{delay: cfg.HoverDelay},
	}
	e.st.Verbosity = e.st.Verbosity.Clamp()
	e.desc = &describe.Builder{Query: dom.Query(cfg.Host), Logger: cfg.Logger}
	e.attrs = newAttrBatch(cfg.AttrDebounce, cfg.AttrCap, e.emitAttrBatch)
	return e
}

// Start syncs the in-page capture level, emits the navigation marker
// when the session is already active, and launches the loop.
func (e *Engine) Start() {
	e.start()
	go e.loop()
}

// Stop ends processing and waits for the loop to drain: buffered
// attribute data is flushed, the typing accumulator is discarded with
// its page. Stop must only be called after Start.
func (e *Engine) Stop() {
	e.cancel()
	<-e.done
}

// Handle queues one raw event.
func (e *Engine) Handle(ev page.Event) {
	select {
	case e.events <- ev:
	case <-e.ctx.Done():
	}
}

// ApplyState queues an external recording-state observation.
func (e *Engine) ApplyState(st step.State) {
	select {
	case e.states <- st:
	case <-e.ctx.Done():
	}
}

func (e *Engine) loop() {
	defer close(e.done)
	for {
		select {
		case <-e.ctx.Done():
			e.teardown()
			return
		case ev := <-e.events:
			e.process(ev)
		case <-e.attrs.timerC():
			e.attrs.flush()
		case <-e.hover.timerC():
			e.hoverFired()
		case st := <-e.states:
			e.applyState(st)
		}
	}
}

func (e *Engine) start() {
	e.syncCapture(true)
	if e.st.Active {
		e.emit(step.Record{
			Type:           step.TypePageLoad,
			RelativeTimeMs: e.rel(e.nowMs()),
			URL:            e.url,
			Title:          e.title,
		})
	}
}

func (e *Engine) process(ev page.Event) {
	if ev.URL != "" {
		e.url = ev.URL
	}
	switch ev.Kind {
	case page.KindClick:
		e.handleClick(ev)
	case page.KindFocus:
		e.handleFocus(ev)
	case page.KindBlur:
		e.handleBlur(ev)
	case page.KindKeydown:
		e.handleKeydown(ev)
	case page.KindInput:
		e.handleInput(ev)
	case page.KindPaste:
		e.handlePaste(ev)
	case page.KindAttr:
		e.handleAttr(ev)
	case page.KindMouseOver:
		e.handleMouseOver(ev)
	case page.KindMouseOut:
		e.handleMouseOut(ev)
	case page.KindNavigate:
		e.handleNavigate(ev)
	default:
		e.logger.Debug("engine: unknown event kind", "kind", ev.Kind)
	}
}

// applyState recomputes gating from a fresh state observation.
// Turning recording off discards the typing run (an interrupted run
// has no blur inside the session) but flushes attribute data already
// collected while the conditions held. Those flushes run before the
// state swap so their records stamp against the ending session.
func (e *Engine) applyState(st step.State) {
	st.Verbosity = st.Verbosity.Clamp()
	prev := e.st

	if prev.Active && !st.Active {
		e.typing.reset(nil)
		e.attrs.flush()
	}
	if prev.Verbosity.Attributes() && !st.Verbosity.Attributes() {
		e.attrs.flush()
	}

	e.st = st
	if st.Active && (!prev.Active || prev.SessionID != st.SessionID) {
		e.lastRel = 0
	}
	if !st.Active || !st.Verbosity.Hover() {
		e.hover.clear()
	}
	e.syncCapture(false)
}

func (e *Engine) syncCapture(force bool) {
	mut := e.st.Active && e.st.Verbosity.Attributes()
	hov := e.st.Active && e.st.Verbosity.Hover()
	if !force && mut == e.mutationsOn && hov == e.hoverOn {
		return
	}
	e.mutationsOn, e.hoverOn = mut, hov
	if e.host == nil {
		return
	}
	if err := e.host.SetCaptureLevel(e.ctx, mut, hov); err != nil {
		e.logger.Warn("engine: set capture level", "error", err)
	}
}

func (e *Engine) handleClick(ev page.Event) {
	if !e.st.Active {
		return
	}
	// A click ends any typing session. Flushing first keeps logical
	// order: the click lands after the keystrokes it depends on.
	e.flushTyping(flushKeepFocus)
	e.emit(step.Record{
		Type:           step.TypeClick,
		RelativeTimeMs: e.rel(ev.AtMs),
		Element:        e.desc.Describe(ev.Target, describe.Options{}),
		X:              ev.X,
		Y:              ev.Y,
	})
	e.pulse(ev.X, ev.Y)
}

// handleNavigate covers soft navigations (history API) where the page
// context survives. Attribute data flushes, the typing run dies with
// the old page, and a fresh pageLoad marks the new URL.
func (e *Engine) handleNavigate(ev page.Event) {
	e.attrs.flush()
	e.typing.reset(nil)
	e.hover.clear()
	if ev.Title != "" {
		e.title = ev.Title
	}
	if e.st.Active {
		e.emit(step.Record{
			Type:           step.TypePageLoad,
			RelativeTimeMs: e.rel(ev.AtMs),
			URL:            e.url,
			Title:          e.title,
		})
	}
}

// teardown runs when the page context goes away.
func (e *Engine) teardown() {
	e.attrs.flush()
	e.typing.reset(nil)
	e.hover.clear()
}

func (e *Engine) emit(rec step.Record) {
	if rec.URL == "" {
		rec.URL = e.url
	}
	if e.snk == nil {
		return
	}
	ctx := e.ctx
	if ctx.Err() != nil {
		// The teardown flush runs after e.ctx is cancelled; the final
		// records still need a live context to deliver.
		ctx = context.Background()
	}
	if err := e.snk.Send(ctx, rec); err != nil {
		e.logger.Error("engine: emit failed", "type", rec.Type, "error", err)
	}
}

func (e *Engine) pulse(x, y float64) {
	if e.host == nil {
		return
	}
	if err := e.host.Pulse(e.ctx, x, y); err != nil {
		e.logger.Debug("engine: pulse", "error", err)
	}
}

func (e *Engine) nowMs() int64 {
	return e.now().UnixMilli()
}

// rel converts an absolute timestamp into the record's offset from
// session start, clamped non-negative and monotonically non-decreasing
// within this page context.
func (e *Engine) rel(atMs int64) int64 {
	r := atMs - e.st.StartedAtMs
	if e.st.StartedAtMs <= 0 || r < 0 {
		r = 0
	}
	if r < e.lastRel {
		r = e.lastRel
	}
	e.lastRel = r
	return r
}

// subRel is the capture-time offset for sub-events inside a coalesced
// record. It does not enter the monotonic clamp: sub-events order
// within their record, not within the stream.
func (e *Engine) subRel(atMs int64) int64 {
	r := atMs - e.st.StartedAtMs
	if e.st.StartedAtMs <= 0 || r < 0 {
		return 0
	}
	return r
}
