package models

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
)

// Selector is a structural CSS query identifying zero or more UI elements.
// It is an opaque tagged string: nothing checks it until it is used.
type Selector string

// String returns the raw selector text
func (s Selector) String() string {
	return string(s)
}

// Validate compiles the selector so malformed queries fail with ErrInvalidSelector
// instead of surfacing as an endless wait.
func (s Selector) Validate() error {
	raw := strings.TrimSpace(string(s))
	if raw == "" {
		return fmt.Errorf("%w: empty selector", ErrInvalidSelector)
	}
	if _, err := cascadia.ParseGroup(raw); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidSelector, raw, err)
	}
	return nil
}

// Descendant scopes child under s (s child)
func (s Selector) Descendant(child Selector) Selector {
	return Selector(strings.TrimSpace(string(s)) + " " + strings.TrimSpace(string(child)))
}

// And combines two compound selectors that must match the same element.
// Only meaningful for simple selectors such as ".a" and ".b".
func (s Selector) And(other Selector) Selector {
	return Selector(strings.TrimSpace(string(s)) + strings.TrimSpace(string(other)))
}
