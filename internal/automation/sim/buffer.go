package sim

import (
	"path"
	"strings"
)

const settingsPath = "settings.json"

// buffer is the text model of one open editor
type buffer struct {
	path      string
	text      []rune
	cursor    int
	selectAll bool
	dirty     bool
}

func newBuffer(path, text string) *buffer {
	return &buffer{path: path, text: []rune(text)}
}

func (b *buffer) String() string {
	return string(b.text)
}

func (b *buffer) language() string {
	switch strings.ToLower(path.Ext(b.path)) {
	case ".css", ".scss", ".less":
		return "css"
	case ".json":
		return "json"
	}
	return "plaintext"
}

func (b *buffer) insert(s string) {
	if b.selectAll {
		b.text = nil
		b.cursor = 0
		b.selectAll = false
	}
	r := []rune(s)
	text := make([]rune, 0, len(b.text)+len(r))
	text = append(text, b.text[:b.cursor]...)
	text = append(text, r...)
	text = append(text, b.text[b.cursor:]...)
	b.text = text
	b.cursor += len(r)
	b.dirty = true
}

func (b *buffer) backspace() {
	if b.selectAll {
		b.text = nil
		b.cursor = 0
		b.selectAll = false
		b.dirty = true
		return
	}
	if b.cursor == 0 {
		return
	}
	b.text = append(b.text[:b.cursor-1], b.text[b.cursor:]...)
	b.cursor--
	b.dirty = true
}

func (b *buffer) moveCursor(delta int) {
	b.selectAll = false
	b.cursor += delta
	if b.cursor < 0 {
		b.cursor = 0
	}
	if b.cursor > len(b.text) {
		b.cursor = len(b.text)
	}
}

func (b *buffer) lineStart() {
	b.selectAll = false
	for b.cursor > 0 && b.text[b.cursor-1] != '\n' {
		b.cursor--
	}
}

func (b *buffer) lineEnd() {
	b.selectAll = false
	for b.cursor < len(b.text) && b.text[b.cursor] != '\n' {
		b.cursor++
	}
}

func (b *buffer) lines() []string {
	return strings.Split(string(b.text), "\n")
}

// position converts a rune offset into 1-based line and column
func (b *buffer) position(offset int) (line, col int) {
	line, col = 1, 1
	for i := 0; i < offset && i < len(b.text); i++ {
		if b.text[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
