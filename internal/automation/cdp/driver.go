package cdp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	cdpexec "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/smoke/internal/models"
)

// ErrConnectionClosed is returned once the DevTools connection is gone,
// either through Close or because the application went away
var ErrConnectionClosed = errors.New("devtools connection closed")

// Driver automates one renderer window through the Chrome DevTools Protocol
type Driver struct {
	logger arbor.ILogger
	tabCtx context.Context
	cancel func()

	mu     sync.Mutex
	closed bool
}

func newDriver(tabCtx context.Context, cancel func(), logger arbor.ILogger) *Driver {
	return &Driver{
		logger: logger,
		tabCtx: tabCtx,
		cancel: cancel,
	}
}

// run executes actions on the attached target bounded by the caller's ctx
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed || d.tabCtx.Err() != nil {
		return ErrConnectionClosed
	}

	runCtx, cancel := context.WithCancel(d.tabCtx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if d.tabCtx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrConnectionClosed, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (d *Driver) QueryAll(ctx context.Context, sel models.Selector) ([]models.ElementHandle, error) {
	var results []queryResult
	if err := d.run(ctx, chromedp.Evaluate(queryJS(sel.String()), &results)); err != nil {
		if strings.Contains(err.Error(), "SyntaxError") {
			return nil, fmt.Errorf("%w: %q: %v", models.ErrInvalidSelector, sel, err)
		}
		return nil, err
	}

	now := time.Now()
	handles := make([]models.ElementHandle, 0, len(results))
	for i, r := range results {
		handles = append(handles, models.ElementHandle{
			Selector:   sel,
			Index:      i,
			NodeID:     r.ID,
			Tag:        r.Tag,
			Text:       r.Text,
			Attributes: r.Attrs,
			ResolvedAt: now,
		})
	}
	return handles, nil
}

func (d *Driver) Click(ctx context.Context, el models.ElementHandle) error {
	var loc locateResult
	if err := d.run(ctx, chromedp.Evaluate(locateJS(el.NodeID), &loc)); err != nil {
		return err
	}
	if loc.Stale {
		return models.ErrStaleElement
	}
	if loc.W == 0 && loc.H == 0 {
		return fmt.Errorf("element %q[%d] has no size and cannot be clicked", el.Selector, el.Index)
	}

	d.logger.Trace().
		Str("selector", el.Selector.String()).
		Float64("x", loc.X).
		Float64("y", loc.Y).
		Msg("Dispatching click")

	return d.run(ctx, chromedp.MouseClickXY(loc.X, loc.Y))
}

func (d *Driver) TypeText(ctx context.Context, text string) error {
	return d.run(ctx, chromedp.KeyEvent(text))
}

func (d *Driver) KeyPress(ctx context.Context, chord models.KeyChord) error {
	events, err := keyEvents(chord)
	if err != nil {
		return err
	}
	return d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, ev := range events {
			if err := ev.Do(ctx); err != nil {
				return fmt.Errorf("dispatch %s %s: %w", ev.Type, chord, err)
			}
		}
		return nil
	}))
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := d.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *Driver) Snapshot(ctx context.Context) (string, error) {
	var html string
	if err := d.run(ctx, chromedp.Evaluate(snapshotJS, &html)); err != nil {
		return "", err
	}
	return html, nil
}

// Shutdown asks the browser process to close all windows and quit
func (d *Driver) Shutdown(ctx context.Context) error {
	return d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		c := chromedp.FromContext(ctx)
		if c == nil || c.Browser == nil {
			return ErrConnectionClosed
		}
		return browser.Close().Do(cdpexec.WithExecutor(ctx, c.Browser))
	}))
}

// Close drops the DevTools connection. The attached window is detached and
// closed by chromedp, the application process is left alone.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	return nil
}
