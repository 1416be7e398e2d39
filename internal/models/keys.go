package models

import (
	"fmt"
	"strings"
)

// Modifier is a keyboard modifier held during a key press
type Modifier string

const (
	ModAlt   Modifier = "alt"
	ModCtrl  Modifier = "ctrl"
	ModMeta  Modifier = "meta"
	ModShift Modifier = "shift"
)

// KeyChord is a single key press with optional modifiers, e.g. Ctrl+Shift+O
type KeyChord struct {
	Key       string     `json:"key" yaml:"key"`
	Modifiers []Modifier `json:"modifiers,omitempty" yaml:"modifiers,omitempty"`
}

// keyAliases normalizes common spellings to DOM key names
var keyAliases = map[string]string{
	"enter":     "Enter",
	"return":    "Enter",
	"esc":       "Escape",
	"escape":    "Escape",
	"tab":       "Tab",
	"space":     " ",
	"backspace": "Backspace",
	"delete":    "Delete",
	"del":       "Delete",
	"up":        "ArrowUp",
	"down":      "ArrowDown",
	"left":      "ArrowLeft",
	"right":     "ArrowRight",
	"home":      "Home",
	"end":       "End",
	"pageup":    "PageUp",
	"pagedown":  "PageDown",
	"comma":     ",",
	"plus":      "+",
}

// ParseKeyChord parses "Ctrl+Shift+O" style chords. Modifier names are case
// insensitive; "cmd" maps to meta and "control" to ctrl.
func ParseKeyChord(s string) (KeyChord, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return KeyChord{}, fmt.Errorf("empty key chord")
	}

	var parts []string
	if raw == "+" {
		parts = []string{"+"}
	} else {
		parts = strings.Split(raw, "+")
		// "Ctrl++" splits into ["Ctrl", "", ""]
		if strings.HasSuffix(raw, "++") {
			parts = append(parts[:len(parts)-2], "+")
		}
	}

	chord := KeyChord{}
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if i < len(parts)-1 {
			mod, ok := parseModifier(p)
			if !ok {
				return KeyChord{}, fmt.Errorf("unknown modifier %q in %q", p, s)
			}
			chord.Modifiers = append(chord.Modifiers, mod)
			continue
		}
		if p == "" {
			return KeyChord{}, fmt.Errorf("missing key in %q", s)
		}
		chord.Key = normalizeKey(p)
	}
	return chord, nil
}

// MustParseKeyChord is ParseKeyChord for constant chords
func MustParseKeyChord(s string) KeyChord {
	c, err := ParseKeyChord(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Has reports whether the chord holds modifier m
func (k KeyChord) Has(m Modifier) bool {
	for _, mod := range k.Modifiers {
		if mod == m {
			return true
		}
	}
	return false
}

// String renders the chord in canonical Ctrl+Shift+Key form
func (k KeyChord) String() string {
	var b strings.Builder
	for _, m := range []Modifier{ModCtrl, ModAlt, ModShift, ModMeta} {
		if k.Has(m) {
			b.WriteString(strings.ToUpper(string(m[:1])) + string(m[1:]))
			b.WriteString("+")
		}
	}
	b.WriteString(k.Key)
	return b.String()
}

func parseModifier(s string) (Modifier, bool) {
	switch strings.ToLower(s) {
	case "ctrl", "control":
		return ModCtrl, true
	case "shift":
		return ModShift, true
	case "alt", "option":
		return ModAlt, true
	case "meta", "cmd", "command", "super":
		return ModMeta, true
	}
	return "", false
}

func normalizeKey(s string) string {
	if alias, ok := keyAliases[strings.ToLower(s)]; ok {
		return alias
	}
	if len(s) == 1 {
		return s
	}
	// F1..F12 and other named keys keep DOM capitalisation
	return strings.ToUpper(s[:1]) + s[1:]
}
