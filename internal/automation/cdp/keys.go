package cdp

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp/kb"

	"github.com/ternarybob/smoke/internal/models"
)

// namedKeys maps DOM key names ("Enter", "ArrowDown", "F5") to the rune kb
// encodes them under. The lowest rune wins when a name appears twice.
var namedKeys = func() map[string]rune {
	m := map[string]rune{}
	for r, k := range kb.Keys {
		if utf8.RuneCountInString(k.Key) <= 1 {
			continue
		}
		if existing, ok := m[k.Key]; !ok || r < existing {
			m[k.Key] = r
		}
	}
	return m
}()

var modifierBits = map[models.Modifier]input.Modifier{
	models.ModAlt:   input.ModifierAlt,
	models.ModCtrl:  input.ModifierCtrl,
	models.ModMeta:  input.ModifierMeta,
	models.ModShift: input.ModifierShift,
}

// keyEvents encodes one chord as keyDown/keyUp (plus char for plain printable
// keys). Chords holding ctrl, alt or meta never produce a char event, so a
// shortcut does not also insert its letter.
func keyEvents(chord models.KeyChord) ([]*input.DispatchKeyEventParams, error) {
	r, err := keyRune(chord)
	if err != nil {
		return nil, err
	}

	var mods input.Modifier
	for _, m := range chord.Modifiers {
		mods |= modifierBits[m]
	}
	shortcut := chord.Has(models.ModCtrl) || chord.Has(models.ModAlt) || chord.Has(models.ModMeta)

	var events []*input.DispatchKeyEventParams
	for _, ev := range kb.Encode(r) {
		if shortcut && ev.Type == input.KeyChar {
			continue
		}
		ev.Modifiers |= mods
		events = append(events, ev)
	}
	return events, nil
}

func keyRune(chord models.KeyChord) (rune, error) {
	if r, ok := namedKeys[chord.Key]; ok {
		return r, nil
	}
	if utf8.RuneCountInString(chord.Key) != 1 {
		return 0, fmt.Errorf("unsupported key %q", chord.Key)
	}
	r, _ := utf8.DecodeRuneInString(chord.Key)
	// Letters in shortcuts are sent unshifted unless Shift is part of the chord
	if unicode.IsLetter(r) {
		if chord.Has(models.ModShift) {
			return unicode.ToUpper(r), nil
		}
		if len(chord.Modifiers) > 0 {
			return unicode.ToLower(r), nil
		}
	}
	return r, nil
}
