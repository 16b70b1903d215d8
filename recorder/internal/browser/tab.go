package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Tab wraps a Rod page with the hooks the engine and capture layer
// need: selector counting for uniqueness probes, the capture-level
// switch, and the click pulse.
type Tab struct {
	Page   *rod.Page
	PageID string
}

// OpenTab creates a new page, navigates it and waits for load.
func OpenTab(ctx context.Context, mgr *Manager, pageURL, pageID string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	var page *rod.Page
	var err error
	if mgr.Stealth() {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	t := &Tab{Page: page, PageID: pageID}
	if pageURL != "" {
		if err := t.Navigate(ctx, pageURL); err != nil {
			page.Close()
			return nil, err
		}
	}
	return t, nil
}

// Navigate loads a URL with a bounded wait.
func (t *Tab) Navigate(ctx context.Context, pageURL string) error {
	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := t.Page.Context(navCtx).Navigate(pageURL); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := t.Page.Context(navCtx).WaitLoad(); err != nil {
		// Slow pages still record; interaction capture does not need a
		// finished load event.
		return nil
	}
	return nil
}

// URL reads the page's current URL.
func (t *Tab) URL() string {
	info, err := t.Page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Title reads the page's current title.
func (t *Tab) Title() string {
	info, err := t.Page.Info()
	if err != nil {
		return ""
	}
	return info.Title
}

// Count implements dom.Query against the live document. Malformed
// selectors make querySelectorAll throw, which surfaces here as an
// error the synthesizer swallows before falling through.
func (t *Tab) Count(sel string) (int, error) {
	res, err := t.Page.Eval(`(sel) => document.querySelectorAll(sel).length`, sel)
	if err != nil {
		return 0, fmt.Errorf("browser: count %q: %w", sel, err)
	}
	return res.Value.Int(), nil
}

// SetCaptureLevel flips the in-page mutation observer and hover
// listeners through the capture script's hook. Detached observers
// cost the page nothing while recording is off or below tier.
func (t *Tab) SetCaptureLevel(ctx context.Context, mutations, hover bool) error {
	_, err := t.Page.Context(ctx).Eval(
		`(mut, hov) => { if (window.__recordsteps) window.__recordsteps.setLevel(mut, hov); }`,
		mutations, hover)
	if err != nil {
		return fmt.Errorf("browser: set capture level: %w", err)
	}
	return nil
}

// Pulse shows the transient click indicator at page coordinates.
func (t *Tab) Pulse(ctx context.Context, x, y float64) error {
	_, err := t.Page.Context(ctx).Eval(pulseJS, x, y)
	if err != nil {
		return fmt.Errorf("browser: pulse: %w", err)
	}
	return nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}

// pulseJS draws a short-lived ring where a click was recorded. Purely
// cosmetic feedback; removal is timer-driven so nothing leaks.
const pulseJS = `(x, y) => {
	const el = document.createElement('div');
	el.style.cssText = 'position:fixed;pointer-events:none;z-index:2147483647;' +
		'width:24px;height:24px;border-radius:50%;border:2px solid #e5484d;' +
		'transform:translate(-50%,-50%);transition:all 300ms ease-out;opacity:0.9;' +
		'left:' + x + 'px;top:' + y + 'px;';
	document.documentElement.appendChild(el);
	requestAnimationFrame(() => {
		el.style.width = '48px';
		el.style.height = '48px';
		el.style.opacity = '0';
	});
	setTimeout(() => el.remove(), 350);
}`
