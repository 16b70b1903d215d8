// Package capture injects the in-page capture script and decodes its
// binding payloads into engine events. The script batches raw events
// and ships them as JSON arrays over a CDP binding; nothing here
// blocks the page.
package capture

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod/lib/proto"

	"github.com/harrydbarnes/recordsteps/recorder/internal/browser"
	"github.com/harrydbarnes/recordsteps/recorder/internal/engine"
	"github.com/harrydbarnes/recordsteps/recorder/internal/page"
)

//go:embed capture.js
var captureJS string

const bindingName = "__recordsteps_feed"

// Listener wires one tab's capture feed into its engine.
type Listener struct {
	tab    *browser.Tab
	eng    *engine.Engine
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// Attach sets up the binding, registers the capture script for every
// future document in the tab (hard navigations re-inject themselves),
// and injects it into the current document.
func Attach(tab *browser.Tab, eng *engine.Engine, logger *slog.Logger) (*Listener, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{tab: tab, eng: eng, logger: logger, ctx: ctx, cancel: cancel}

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(tab.Page); err != nil {
		// The binding survives navigations; a second Attach on the same
		// tab sees it already registered.
		logger.Warn("capture: add binding", "error", err)
	}

	go l.listen()

	_, err := proto.PageAddScriptToEvaluateOnNewDocument{Source: captureJS}.Call(tab.Page)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("capture: register script: %w", err)
	}

	// The current document gets a quiet first injection: the engine
	// emits its own load marker at startup, so the script must not
	// send a duplicate navigate event.
	if _, err := tab.Page.Eval(`() => { window.__recordsteps_quiet = true; }`); err != nil {
		cancel()
		return nil, fmt.Errorf("capture: prepare inject: %w", err)
	}
	if _, err := tab.Page.Eval(captureJS); err != nil {
		cancel()
		return nil, fmt.Errorf("capture: inject: %w", err)
	}
	return l, nil
}

// Detach stops forwarding events. The in-page script notices the dead
// binding on its next flush and stops accumulating.
func (l *Listener) Detach() {
	l.cancel()
}

func (l *Listener) listen() {
	l.tab.Page.Context(l.ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		events, err := decodeEvents([]byte(e.Payload))
		if err != nil {
			l.logger.Warn("capture: bad payload", "error", err)
			return
		}
		for _, ev := range events {
			l.eng.Handle(ev)
		}
	})()
}

// decodeEvents parses one binding payload: a JSON array of raw events.
func decodeEvents(payload []byte) ([]page.Event, error) {
	var events []page.Event
	if err := json.Unmarshal(payload, &events); err != nil {
		return nil, fmt.Errorf("capture: decode events: %w", err)
	}
	return events, nil
}
