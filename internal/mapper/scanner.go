// Package mapper converts tasks and contacts to iCalendar and vCard
// payloads and extracts a known field set back out of them.
package mapper

import (
	"strings"
)

// Setter receives the value that follows a matched prefix. A non-nil
// error drops that field only; the scan carries on with the next line.
type Setter func(value string) error

type Field struct {
	Prefix string
	Set    Setter
}

// Scanner is a tolerant line-oriented key:value reader. Lines are
// matched against field prefixes in declaration order and the first
// match wins. Unmatched lines are ignored.
type Scanner struct {
	fields  []Field
	ignored map[string]bool
	OnSkip  func(prefix, value string, err error)
}

func NewScanner(fields ...Field) *Scanner {
	return &Scanner{fields: fields}
}

// Ignore drops every line between BEGIN:<name> and the matching
// END:<name>, nested blocks included.
func (s *Scanner) Ignore(components ...string) *Scanner {
	if s.ignored == nil {
		s.ignored = make(map[string]bool, len(components))
	}
	for _, c := range components {
		s.ignored[strings.ToUpper(c)] = true
	}
	return s
}

func (s *Scanner) Scan(text string) {
	depth := 0
	for _, line := range unfold(text) {
		if name, ok := strings.CutPrefix(line, "BEGIN:"); ok && (depth > 0 || s.ignored[strings.ToUpper(strings.TrimSpace(name))]) {
			depth++
			continue
		}
		if depth > 0 {
			if strings.HasPrefix(line, "END:") {
				depth--
			}
			continue
		}
		for _, f := range s.fields {
			if !strings.HasPrefix(line, f.Prefix) {
				continue
			}
			value := strings.TrimSpace(line[len(f.Prefix):])
			if err := f.Set(value); err != nil && s.OnSkip != nil {
				s.OnSkip(f.Prefix, value, err)
			}
			break
		}
	}
}

// unfold splits text into logical lines. It accepts LF or CRLF and joins
// continuation lines that begin with a space or a tab.
func unfold(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimRight(line, "\r")
		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') && len(lines) > 0 {
			lines[len(lines)-1] += line[1:]
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func unescapeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// splitComponents splits a structured value on unescaped semicolons and
// unescapes each part.
func splitComponents(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case ';':
			parts = append(parts, unescapeText(s[start:i]))
			start = i + 1
		}
	}
	return append(parts, unescapeText(s[start:]))
}
