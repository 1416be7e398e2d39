package input

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/smoke/internal/interfaces"
	"github.com/ternarybob/smoke/internal/models"
	"github.com/ternarybob/smoke/internal/services/locator"
	"github.com/ternarybob/smoke/internal/services/waiter"
)

// recordingDriver logs every input call in order
type recordingDriver struct {
	interfaces.Driver

	mu     sync.Mutex
	events []string
	stale  map[int64]bool
}

func (d *recordingDriver) record(event string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
}

func (d *recordingDriver) Events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.events...)
}

func (d *recordingDriver) QueryAll(ctx context.Context, sel models.Selector) ([]models.ElementHandle, error) {
	if sel == ".missing" {
		return nil, nil
	}
	return []models.ElementHandle{{Selector: sel, NodeID: 7}}, nil
}

func (d *recordingDriver) Click(ctx context.Context, el models.ElementHandle) error {
	if d.stale[el.NodeID] {
		return models.ErrStaleElement
	}
	d.record(fmt.Sprintf("click %s", el.Selector))
	return nil
}

func (d *recordingDriver) TypeText(ctx context.Context, text string) error {
	d.record("type " + text)
	return nil
}

func (d *recordingDriver) KeyPress(ctx context.Context, chord models.KeyChord) error {
	d.record("key " + chord.String())
	return nil
}

type staticProvider struct {
	driver interfaces.Driver
	err    error
}

func (p staticProvider) Driver() (interfaces.Driver, error) {
	return p.driver, p.err
}

func newTestService(provider interfaces.DriverProvider, kps int) *Service {
	logger := arbor.NewLogger()
	w := waiter.NewWaiter(logger, time.Second, 100*time.Millisecond, 100*time.Millisecond)
	return NewService(provider, locator.NewLocator(provider, w, logger), kps, logger)
}

func TestService_OrderPreserved(t *testing.T) {
	driver := &recordingDriver{}
	svc := newTestService(staticProvider{driver: driver}, 0)
	ctx := context.Background()

	require.NoError(t, svc.Press(ctx, "Ctrl+P"))
	require.NoError(t, svc.TypeText(ctx, "style.css"))
	require.NoError(t, svc.Press(ctx, "Enter"))
	require.NoError(t, svc.ClickSelector(ctx, ".tab"))

	assert.Equal(t, []string{
		"key Ctrl+P",
		"type style.css",
		"key Enter",
		"click .tab",
	}, driver.Events())
}

func TestService_PacedTyping(t *testing.T) {
	driver := &recordingDriver{}
	svc := newTestService(staticProvider{driver: driver}, 50)

	start := time.Now()
	require.NoError(t, svc.TypeText(context.Background(), "abcdef"))
	elapsed := time.Since(start)

	events := driver.Events()
	require.Len(t, events, 6, "one driver call per character")
	assert.Equal(t, "type a", events[0])
	assert.Equal(t, "type f", events[5])
	// Burst of one at 50/s: five waits of 20ms
	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond)
}

func TestService_PacedTypingCancelled(t *testing.T) {
	driver := &recordingDriver{}
	svc := newTestService(staticProvider{driver: driver}, 5)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := svc.TypeText(ctx, strings.Repeat("x", 20))

	assert.Error(t, err)
	assert.Less(t, len(driver.Events()), 20)
}

func TestService_ConcurrentCallsDoNotInterleave(t *testing.T) {
	driver := &recordingDriver{}
	svc := newTestService(staticProvider{driver: driver}, 1000)

	var wg sync.WaitGroup
	for _, text := range []string{"aaaa", "bbbb"} {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			assert.NoError(t, svc.TypeText(context.Background(), text))
		}(text)
	}
	wg.Wait()

	typed := ""
	for _, e := range driver.Events() {
		typed += strings.TrimPrefix(e, "type ")
	}
	assert.Contains(t, []string{"aaaabbbb", "bbbbaaaa"}, typed)
}

func TestService_InvalidChord(t *testing.T) {
	driver := &recordingDriver{}
	svc := newTestService(staticProvider{driver: driver}, 0)

	assert.Error(t, svc.Press(context.Background(), "Hyper+X"))
	assert.Error(t, svc.Press(context.Background(), ""))
	assert.Empty(t, driver.Events())
}

func TestService_StaleClick(t *testing.T) {
	driver := &recordingDriver{stale: map[int64]bool{7: true}}
	svc := newTestService(staticProvider{driver: driver}, 0)

	err := svc.Click(context.Background(), models.ElementHandle{Selector: ".row", NodeID: 7})
	assert.ErrorIs(t, err, models.ErrStaleElement)
}

func TestService_ClickSelectorNotFound(t *testing.T) {
	driver := &recordingDriver{}
	svc := newTestService(staticProvider{driver: driver}, 0)

	err := svc.ClickSelector(context.Background(), ".missing")

	var notFound *models.NotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Empty(t, driver.Events())
}

func TestService_NotReady(t *testing.T) {
	svc := newTestService(staticProvider{err: &models.LifecycleError{Op: "resolve driver", State: models.SessionStopped}}, 0)
	ctx := context.Background()

	assert.ErrorIs(t, svc.TypeText(ctx, "x"), models.ErrNotReady)
	assert.ErrorIs(t, svc.Press(ctx, "Enter"), models.ErrNotReady)
	assert.ErrorIs(t, svc.Click(ctx, models.ElementHandle{Selector: ".x"}), models.ErrNotReady)
}
