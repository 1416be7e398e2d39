package models

import (
	"strings"
	"time"
)

// ElementHandle is a reference to a located element at the moment it was
// resolved. Handles go stale on re-render: re-resolve, never keep them.
type ElementHandle struct {
	Selector   Selector          `json:"selector"`
	Index      int               `json:"index"`   // Position in document order among matches
	NodeID     int64             `json:"node_id"` // Driver-specific node identity
	Tag        string            `json:"tag"`
	Text       string            `json:"text,omitempty"` // Full trimmed rendered text
	Attributes map[string]string `json:"attributes,omitempty"`
	ResolvedAt time.Time         `json:"resolved_at"`
}

// Attr returns an attribute value and whether it was present
func (h ElementHandle) Attr(name string) (string, bool) {
	if h.Attributes == nil {
		return "", false
	}
	v, ok := h.Attributes[name]
	return v, ok
}

// HasClass reports whether the element carried class name when resolved
func (h ElementHandle) HasClass(name string) bool {
	classes, ok := h.Attr("class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(classes) {
		if c == name {
			return true
		}
	}
	return false
}
