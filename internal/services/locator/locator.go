package locator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/smoke/internal/interfaces"
	"github.com/ternarybob/smoke/internal/models"
	"github.com/ternarybob/smoke/internal/services/waiter"
)

// Locator resolves selectors against the live UI tree of the current session.
// Nothing is cached: every call asks the driver again.
type Locator struct {
	logger   arbor.ILogger
	provider interfaces.DriverProvider
	waiter   *waiter.Waiter
}

// NewLocator creates a locator bound to a driver provider (normally the session)
func NewLocator(provider interfaces.DriverProvider, w *waiter.Waiter, logger arbor.ILogger) *Locator {
	return &Locator{
		logger:   logger,
		provider: provider,
		waiter:   w,
	}
}

// Find returns all elements matching sel in document order. Zero matches is
// not an error. Before the session is Ready it fails with a LifecycleError.
func (l *Locator) Find(ctx context.Context, sel models.Selector) ([]models.ElementHandle, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	driver, err := l.provider.Driver()
	if err != nil {
		return nil, err
	}

	handles, err := driver.QueryAll(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("find %q: %w", sel, err)
	}
	return handles, nil
}

// FindOne returns the first match or a *models.NotFoundError
func (l *Locator) FindOne(ctx context.Context, sel models.Selector) (models.ElementHandle, error) {
	handles, err := l.Find(ctx, sel)
	if err != nil {
		return models.ElementHandle{}, err
	}
	if len(handles) == 0 {
		return models.ElementHandle{}, &models.NotFoundError{Selector: sel}
	}
	return handles[0], nil
}

// Count returns the number of current matches
func (l *Locator) Count(ctx context.Context, sel models.Selector) (int, error) {
	handles, err := l.Find(ctx, sel)
	if err != nil {
		return 0, err
	}
	return len(handles), nil
}

// WaitForElement waits until sel matches at least one element and returns the first.
// timeout <= 0 uses the waiter default.
func (l *Locator) WaitForElement(ctx context.Context, sel models.Selector, timeout time.Duration) (models.ElementHandle, error) {
	if err := sel.Validate(); err != nil {
		return models.ElementHandle{}, err
	}

	spec := l.waiter.Spec(fmt.Sprintf("element %q", sel)).WithTimeout(timeout)
	return waiter.Until(ctx, l.waiter, spec, func(ctx context.Context) (models.ElementHandle, bool, error) {
		handles, err := l.find(ctx, sel)
		if err != nil || len(handles) == 0 {
			return models.ElementHandle{}, false, err
		}
		return handles[0], true, nil
	})
}

// WaitForCount waits until sel matches exactly n elements
func (l *Locator) WaitForCount(ctx context.Context, sel models.Selector, n int, timeout time.Duration) ([]models.ElementHandle, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	spec := l.waiter.Spec(fmt.Sprintf("%d elements matching %q", n, sel)).WithTimeout(timeout)
	return waiter.Until(ctx, l.waiter, spec, func(ctx context.Context) ([]models.ElementHandle, bool, error) {
		handles, err := l.find(ctx, sel)
		if err != nil {
			return nil, false, err
		}
		if len(handles) != n {
			return nil, false, fmt.Errorf("found %d elements", len(handles))
		}
		return handles, true, nil
	})
}

// WaitForAbsent waits until sel matches nothing
func (l *Locator) WaitForAbsent(ctx context.Context, sel models.Selector, timeout time.Duration) error {
	if err := sel.Validate(); err != nil {
		return err
	}

	spec := l.waiter.Spec(fmt.Sprintf("no element %q", sel)).WithTimeout(timeout)
	return l.waiter.Wait(ctx, spec, func(ctx context.Context) (bool, error) {
		handles, err := l.find(ctx, sel)
		if err != nil {
			return false, err
		}
		return len(handles) == 0, nil
	})
}

// WaitForAny waits until any of sels matches and returns the selector that
// matched first in argument order together with its first element
func (l *Locator) WaitForAny(ctx context.Context, timeout time.Duration, sels ...models.Selector) (models.Selector, models.ElementHandle, error) {
	if len(sels) == 0 {
		return "", models.ElementHandle{}, fmt.Errorf("%w: no selectors given", models.ErrInvalidSelector)
	}
	names := make([]string, 0, len(sels))
	for _, sel := range sels {
		if err := sel.Validate(); err != nil {
			return "", models.ElementHandle{}, err
		}
		names = append(names, sel.String())
	}

	type match struct {
		sel    models.Selector
		handle models.ElementHandle
	}

	spec := l.waiter.Spec(fmt.Sprintf("any of [%s]", strings.Join(names, ", "))).WithTimeout(timeout)
	m, err := waiter.Until(ctx, l.waiter, spec, func(ctx context.Context) (match, bool, error) {
		var lastErr error
		for _, sel := range sels {
			handles, err := l.find(ctx, sel)
			if err != nil {
				var lifecycleErr *models.LifecycleError
				if errors.As(err, &lifecycleErr) {
					return match{}, false, err
				}
				lastErr = err
				continue
			}
			if len(handles) > 0 {
				return match{sel: sel, handle: handles[0]}, true, nil
			}
		}
		return match{}, false, lastErr
	})
	return m.sel, m.handle, err
}

// find is Find for use inside a wait: lifecycle errors pass through so the
// waiter aborts, everything else is a retryable miss
func (l *Locator) find(ctx context.Context, sel models.Selector) ([]models.ElementHandle, error) {
	driver, err := l.provider.Driver()
	if err != nil {
		return nil, err
	}
	handles, err := driver.QueryAll(ctx, sel)
	if err != nil {
		if errors.Is(err, models.ErrInvalidSelector) {
			return nil, waiter.Permanent(err)
		}
		return nil, fmt.Errorf("find %q: %w", sel, err)
	}
	return handles, nil
}
