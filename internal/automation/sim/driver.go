package sim

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/ternarybob/smoke/internal/models"
)

const maxHandleText = 256

// Driver implements interfaces.Driver against an App
type Driver struct {
	app    *App
	mu     sync.Mutex
	closed bool
}

func newDriver(app *App) *Driver {
	return &Driver{app: app}
}

// App exposes the simulated application, for tests
func (d *Driver) App() *App {
	return d.app
}

// lock takes the app lock after checking both ends of the channel are alive
func (d *Driver) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return fmt.Errorf("sim driver closed: %w", errTargetClosed)
	}
	d.app.mu.Lock()
	if d.app.closed {
		d.app.mu.Unlock()
		return errTargetClosed
	}
	return nil
}

func (d *Driver) unlock() {
	d.app.mu.Unlock()
}

func (d *Driver) QueryAll(ctx context.Context, sel models.Selector) ([]models.ElementHandle, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	if err := d.lock(ctx); err != nil {
		return nil, err
	}
	defer d.unlock()

	now := time.Now()
	var handles []models.ElementHandle
	d.app.doc.Find(sel.String()).Each(func(i int, s *goquery.Selection) {
		node := s.Nodes[0]
		text := strings.TrimSpace(s.Text())
		if len(text) > maxHandleText {
			text = text[:maxHandleText]
		}
		handles = append(handles, models.ElementHandle{
			Selector:   sel,
			Index:      i,
			NodeID:     d.app.nodeID(node),
			Tag:        goquery.NodeName(s),
			Text:       text,
			Attributes: attributes(node),
			ResolvedAt: now,
		})
	})
	return handles, nil
}

func (d *Driver) Click(ctx context.Context, el models.ElementHandle) error {
	if err := d.lock(ctx); err != nil {
		return err
	}
	defer d.unlock()

	node, ok := d.app.lookup(el.NodeID)
	if !ok {
		return fmt.Errorf("%w: %q[%d]", models.ErrStaleElement, el.Selector, el.Index)
	}

	for n := node; n != nil; n = n.Parent {
		action := attr(n, "data-sim-action")
		if action == "" {
			continue
		}
		index, _ := strconv.Atoi(attr(n, "data-sim-index"))
		d.app.click(action, attr(n, "data-sim-path"), index)
		return nil
	}
	return nil
}

func (d *Driver) TypeText(ctx context.Context, text string) error {
	if err := d.lock(ctx); err != nil {
		return err
	}
	defer d.unlock()

	d.app.typeText(text)
	return nil
}

func (d *Driver) KeyPress(ctx context.Context, chord models.KeyChord) error {
	if err := d.lock(ctx); err != nil {
		return err
	}
	defer d.unlock()

	d.app.keyPress(chord)
	return nil
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	if err := d.lock(ctx); err != nil {
		return nil, err
	}
	defer d.unlock()

	return d.app.screenshot()
}

func (d *Driver) Snapshot(ctx context.Context) (string, error) {
	if err := d.lock(ctx); err != nil {
		return "", err
	}
	defer d.unlock()

	body, err := goquery.OuterHtml(d.app.doc.Find("html"))
	if err != nil {
		return "", fmt.Errorf("failed to serialize sim document: %w", err)
	}
	return "<!DOCTYPE html>" + body, nil
}

// Shutdown asks the simulated window to quit, which ends its process
func (d *Driver) Shutdown(ctx context.Context) error {
	if err := d.lock(ctx); err != nil {
		return err
	}
	defer d.unlock()

	d.app.requestQuit()
	return nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func attributes(n *html.Node) map[string]string {
	if len(n.Attr) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		attrs[a.Key] = a.Val
	}
	return attrs
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
