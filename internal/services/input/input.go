package input

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/smoke/internal/interfaces"
	"github.com/ternarybob/smoke/internal/models"
	"github.com/ternarybob/smoke/internal/services/locator"
)

// Service issues synthetic input to the focused element of the current session.
// Operations are applied in call order. Nothing here waits for the UI to react.
type Service struct {
	logger   arbor.ILogger
	provider interfaces.DriverProvider
	locator  *locator.Locator
	limiter  *rate.Limiter // nil = unpaced
	mu       sync.Mutex
}

// NewService creates an input service. keystrokesPerSecond <= 0 sends text in one call.
func NewService(provider interfaces.DriverProvider, loc *locator.Locator, keystrokesPerSecond int, logger arbor.ILogger) *Service {
	s := &Service{
		logger:   logger,
		provider: provider,
		locator:  loc,
	}
	if keystrokesPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(keystrokesPerSecond), 1)
	}
	return s
}

// TypeText sends text to whatever currently has focus
func (s *Service) TypeText(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	driver, err := s.provider.Driver()
	if err != nil {
		return err
	}

	s.logger.Debug().
		Int("chars", len([]rune(text))).
		Bool("paced", s.limiter != nil).
		Msg("Typing text")

	if s.limiter == nil {
		if err := driver.TypeText(ctx, text); err != nil {
			return fmt.Errorf("type text: %w", err)
		}
		return nil
	}

	for _, r := range text {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("type text: %w", err)
		}
		if err := driver.TypeText(ctx, string(r)); err != nil {
			return fmt.Errorf("type text: %w", err)
		}
	}
	return nil
}

// KeyPress sends one chord to the focused element
func (s *Service) KeyPress(ctx context.Context, chord models.KeyChord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	driver, err := s.provider.Driver()
	if err != nil {
		return err
	}

	s.logger.Debug().Str("chord", chord.String()).Msg("Pressing keys")

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("key press %s: %w", chord, err)
		}
	}
	if err := driver.KeyPress(ctx, chord); err != nil {
		return fmt.Errorf("key press %s: %w", chord, err)
	}
	return nil
}

// Press parses chord ("Ctrl+Shift+O") and sends it
func (s *Service) Press(ctx context.Context, chord string) error {
	parsed, err := models.ParseKeyChord(chord)
	if err != nil {
		return err
	}
	return s.KeyPress(ctx, parsed)
}

// Click clicks a previously resolved element. A handle from before a
// re-render fails with models.ErrStaleElement.
func (s *Service) Click(ctx context.Context, el models.ElementHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	driver, err := s.provider.Driver()
	if err != nil {
		return err
	}

	s.logger.Debug().
		Str("selector", el.Selector.String()).
		Int("index", el.Index).
		Msg("Clicking element")

	if err := driver.Click(ctx, el); err != nil {
		return fmt.Errorf("click %q[%d]: %w", el.Selector, el.Index, err)
	}
	return nil
}

// ClickSelector resolves sel fresh and clicks the first match
func (s *Service) ClickSelector(ctx context.Context, sel models.Selector) error {
	el, err := s.locator.FindOne(ctx, sel)
	if err != nil {
		return err
	}
	return s.Click(ctx, el)
}
