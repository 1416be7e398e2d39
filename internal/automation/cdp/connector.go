package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/tidwall/gjson"

	"github.com/ternarybob/smoke/internal/interfaces"
	"github.com/ternarybob/smoke/internal/services/waiter"
)

// VersionInfo is the /json/version document of a DevTools endpoint
type VersionInfo struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	UserAgent            string `json:"User-Agent"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// TargetInfo is one entry of /json/list
type TargetInfo struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Connector attaches a Driver to a launched application's main window
type Connector struct {
	logger arbor.ILogger
	waiter *waiter.Waiter
	client *http.Client
	dialer *websocket.Dialer

	// SelectTarget picks the window to automate. Defaults to the first page
	// that is not a devtools window.
	SelectTarget func(targets []TargetInfo) (TargetInfo, bool)
}

// NewConnector creates a connector that polls with w
func NewConnector(w *waiter.Waiter, logger arbor.ILogger) *Connector {
	return &Connector{
		logger:       logger,
		waiter:       w,
		client:       &http.Client{Timeout: 5 * time.Second},
		dialer:       &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		SelectTarget: firstPage,
	}
}

// Connect waits for the DevTools endpoint to answer, picks the main window,
// checks it evaluates script, then attaches chromedp to it
func (c *Connector) Connect(ctx context.Context, proc interfaces.Process) (interfaces.Driver, error) {
	endpoint := strings.TrimSuffix(proc.DebugEndpoint(), "/")
	timeout := budget(ctx, c.waiter.DefaultTimeout())

	version, err := waiter.Until(ctx, c.waiter, c.waiter.Spec("devtools endpoint "+endpoint).WithTimeout(timeout),
		func(ctx context.Context) (VersionInfo, bool, error) {
			v, err := c.Version(ctx, endpoint)
			return v, err == nil && v.WebSocketDebuggerURL != "", err
		})
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("browser", version.Browser).
		Str("protocol", version.ProtocolVersion).
		Msg("DevTools endpoint available")

	tgt, err := waiter.Until(ctx, c.waiter, c.waiter.Spec("application window").WithTimeout(budget(ctx, timeout)),
		func(ctx context.Context) (TargetInfo, bool, error) {
			targets, err := c.Targets(ctx, endpoint)
			if err != nil {
				return TargetInfo{}, false, err
			}
			t, ok := c.SelectTarget(targets)
			return t, ok, nil
		})
	if err != nil {
		return nil, err
	}

	state, err := c.Probe(ctx, tgt.WebSocketDebuggerURL)
	if err != nil {
		return nil, fmt.Errorf("window %s not responding: %w", tgt.ID, err)
	}

	c.logger.Debug().
		Str("target", tgt.ID).
		Str("url", tgt.URL).
		Str("ready_state", state).
		Msg("Attaching to application window")

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), version.WebSocketDebuggerURL)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithTargetID(target.ID(tgt.ID)),
		chromedp.WithLogf(func(format string, args ...any) {
			c.logger.Trace().Msg(fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			c.logger.Debug().Msg(fmt.Sprintf(format, args...))
		}),
	)
	cancel := func() {
		tabCancel()
		allocCancel()
	}

	driver := newDriver(tabCtx, cancel, c.logger)
	// First run attaches to the target
	if err := driver.run(ctx); err != nil {
		driver.Close()
		return nil, fmt.Errorf("attach to window %s: %w", tgt.ID, err)
	}
	return driver, nil
}

// Version fetches /json/version
func (c *Connector) Version(ctx context.Context, endpoint string) (VersionInfo, error) {
	var v VersionInfo
	err := c.getJSON(ctx, endpoint+"/json/version", &v)
	return v, err
}

// Targets fetches /json/list
func (c *Connector) Targets(ctx context.Context, endpoint string) ([]TargetInfo, error) {
	var targets []TargetInfo
	err := c.getJSON(ctx, endpoint+"/json/list", &targets)
	return targets, err
}

// Probe evaluates document.readyState over a raw DevTools websocket and
// returns it
func (c *Connector) Probe(ctx context.Context, wsURL string) (string, error) {
	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	} else {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	}

	req := map[string]any{
		"id":     1,
		"method": "Runtime.evaluate",
		"params": map[string]any{"expression": readyStateJS, "returnByValue": true},
	}
	if err := conn.WriteJSON(req); err != nil {
		return "", fmt.Errorf("send probe: %w", err)
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return "", fmt.Errorf("read probe reply: %w", err)
		}
		// Events may arrive before the reply
		if gjson.GetBytes(msg, "id").Int() != 1 {
			continue
		}
		if e := gjson.GetBytes(msg, "error.message"); e.Exists() {
			return "", fmt.Errorf("probe failed: %s", e.String())
		}
		return gjson.GetBytes(msg, "result.result.value").String(), nil
	}
}

func (c *Connector) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func firstPage(targets []TargetInfo) (TargetInfo, bool) {
	for _, t := range targets {
		if t.Type == "page" && !strings.HasPrefix(t.URL, "devtools://") && t.WebSocketDebuggerURL != "" {
			return t, true
		}
	}
	return TargetInfo{}, false
}

// budget is what is left of ctx's deadline, or fallback without one
func budget(ctx context.Context, fallback time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return fallback
	}
	if remaining := time.Until(deadline); remaining > time.Millisecond {
		return remaining
	}
	return time.Millisecond
}
