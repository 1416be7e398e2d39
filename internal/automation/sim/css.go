package sim

import "strings"

// cssRule is a top-level rule found by scanCSS
type cssRule struct {
	selector string
	start    int // Rune offset of the selector
	empty    bool
}

// scanCSS finds top-level rules. Comments and strings are skipped; at-rules
// with blocks are reported under their prelude like the editor's outline does.
func scanCSS(text []rune) []cssRule {
	var rules []cssRule
	depth := 0
	preludeStart := -1
	bodyStart := 0
	var current *cssRule

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			end := indexFrom(text, i+2, "*/")
			if end < 0 {
				return rules
			}
			i = end + 1
		case c == '"' || c == '\'':
			i = skipString(text, i)
		case c == '{':
			if depth == 0 {
				start := preludeStart
				if start < 0 {
					start = i
				}
				current = &cssRule{
					selector: strings.TrimSpace(string(text[start:i])),
					start:    start,
				}
				bodyStart = i + 1
			}
			depth++
		case c == '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && current != nil {
				current.empty = strings.TrimSpace(stripComments(text[bodyStart:i])) == ""
				rules = append(rules, *current)
				current = nil
				preludeStart = -1
			}
		case c == ';':
			if depth == 0 {
				preludeStart = -1
			}
		case !isSpace(c):
			if depth == 0 && preludeStart < 0 {
				preludeStart = i
			}
		}
	}
	return rules
}

func indexFrom(text []rune, from int, needle string) int {
	if from > len(text) {
		return -1
	}
	idx := strings.Index(string(text[from:]), needle)
	if idx < 0 {
		return -1
	}
	return from + len([]rune(string(text[from:])[:idx]))
}

func skipString(text []rune, i int) int {
	quote := text[i]
	for j := i + 1; j < len(text); j++ {
		switch text[j] {
		case '\\':
			j++
		case quote, '\n':
			return j
		}
	}
	return len(text) - 1
}

func stripComments(text []rune) string {
	s := string(text)
	for {
		start := strings.Index(s, "/*")
		if start < 0 {
			return s
		}
		end := strings.Index(s[start+2:], "*/")
		if end < 0 {
			return s[:start]
		}
		s = s[:start] + s[start+2+end+2:]
	}
}

func isSpace(c rune) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
