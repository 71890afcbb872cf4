package bibtex

import (
	"fmt"
	"strings"
	"unicode"
)

// Entry is one BibTeX entry. Field names are lowercased.
type Entry struct {
	EntryType   string
	CitationKey string
	Fields      map[string]string
	order       []string
}

// Get returns a field value, or "" when the field is absent.
func (e *Entry) Get(name string) string {
	return e.Fields[strings.ToLower(name)]
}

// Set adds or replaces a field, keeping first-insertion order for output.
func (e *Entry) Set(name, value string) {
	if value == "" {
		return
	}
	name = strings.ToLower(name)
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[name]; !ok {
		e.order = append(e.order, name)
	}
	e.Fields[name] = value
}

var monthMacros = map[string]string{
	"jan": "1", "feb": "2", "mar": "3", "apr": "4", "may": "5", "jun": "6",
	"jul": "7", "aug": "8", "sep": "9", "oct": "10", "nov": "11", "dec": "12",
}

// lexer reads entries from BibTeX source.
type lexer struct {
	src     []rune
	pos     int
	strings map[string]string
}

// parseEntries reads every entry in src. @string macros are expanded,
// @preamble and @comment blocks are skipped.
func parseEntries(src string) ([]*Entry, error) {
	l := &lexer{src: []rune(src), strings: make(map[string]string)}
	var entries []*Entry

	for {
		if !l.skipTo('@') {
			break
		}
		l.pos++
		kind := strings.ToLower(l.ident())
		l.skipSpace()
		if l.eof() {
			return nil, fmt.Errorf("unexpected end of input after @%s", kind)
		}
		open := l.src[l.pos]
		if open != '{' && open != '(' {
			return nil, fmt.Errorf("expected { after @%s at offset %d", kind, l.pos)
		}
		closeRune := '}'
		if open == '(' {
			closeRune = ')'
		}
		l.pos++

		switch kind {
		case "comment", "preamble":
			if err := l.skipBalanced(closeRune); err != nil {
				return nil, err
			}
		case "string":
			name, value, err := l.field()
			if err != nil {
				return nil, err
			}
			l.strings[name] = value
			if err := l.skipBalanced(closeRune); err != nil {
				return nil, err
			}
		default:
			e, err := l.entry(kind, closeRune)
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
		}
	}

	return entries, nil
}

func (l *lexer) entry(kind string, closeRune rune) (*Entry, error) {
	e := &Entry{EntryType: kind}

	l.skipSpace()
	start := l.pos
	for !l.eof() && l.src[l.pos] != ',' && l.src[l.pos] != closeRune {
		l.pos++
	}
	e.CitationKey = strings.TrimSpace(string(l.src[start:l.pos]))

	for {
		l.skipSpace()
		if l.eof() {
			return nil, fmt.Errorf("unterminated entry %s", e.CitationKey)
		}
		switch l.src[l.pos] {
		case closeRune:
			l.pos++
			return e, nil
		case ',':
			l.pos++
			continue
		}

		name, value, err := l.field()
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.CitationKey, err)
		}
		e.Set(name, value)
	}
}

// field reads "name = value" where value is a concatenation of braced,
// quoted, numeric or macro parts.
func (l *lexer) field() (string, string, error) {
	l.skipSpace()
	name := strings.ToLower(l.ident())
	if name == "" {
		return "", "", fmt.Errorf("expected field name at offset %d", l.pos)
	}
	l.skipSpace()
	if l.eof() || l.src[l.pos] != '=' {
		return "", "", fmt.Errorf("expected = after field %s", name)
	}
	l.pos++

	var sb strings.Builder
	for {
		l.skipSpace()
		if l.eof() {
			return "", "", fmt.Errorf("unterminated field %s", name)
		}
		switch r := l.src[l.pos]; {
		case r == '{':
			l.pos++
			part, err := l.until('}')
			if err != nil {
				return "", "", fmt.Errorf("field %s: %w", name, err)
			}
			sb.WriteString(part)
		case r == '"':
			l.pos++
			part, err := l.until('"')
			if err != nil {
				return "", "", fmt.Errorf("field %s: %w", name, err)
			}
			sb.WriteString(part)
		default:
			word := l.ident()
			if word == "" {
				return "", "", fmt.Errorf("field %s: unexpected %q", name, r)
			}
			lower := strings.ToLower(word)
			switch {
			case l.strings[lower] != "":
				sb.WriteString(l.strings[lower])
			case monthMacros[lower] != "":
				sb.WriteString(monthMacros[lower])
			default:
				sb.WriteString(word)
			}
		}

		l.skipSpace()
		if !l.eof() && l.src[l.pos] == '#' {
			l.pos++
			continue
		}
		return name, sb.String(), nil
	}
}

// until reads to the matching terminator, keeping nested braces.
func (l *lexer) until(term rune) (string, error) {
	depth := 0
	start := l.pos
	for ; !l.eof(); l.pos++ {
		r := l.src[l.pos]
		switch {
		case r == '\\':
			l.pos++
		case r == '{':
			depth++
		case r == '}' && depth > 0:
			depth--
		case r == term && depth == 0:
			out := string(l.src[start:l.pos])
			l.pos++
			return out, nil
		}
	}
	return "", fmt.Errorf("missing closing %q", term)
}

func (l *lexer) skipBalanced(closeRune rune) error {
	_, err := l.until(closeRune)
	return err
}

func (l *lexer) ident() string {
	start := l.pos
	for !l.eof() {
		r := l.src[l.pos]
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("_-:.+/", r) {
			l.pos++
			continue
		}
		break
	}
	return string(l.src[start:l.pos])
}

func (l *lexer) skipSpace() {
	for !l.eof() && unicode.IsSpace(l.src[l.pos]) {
		l.pos++
	}
}

func (l *lexer) skipTo(r rune) bool {
	for !l.eof() {
		if l.src[l.pos] == r {
			return true
		}
		l.pos++
	}
	return false
}

func (l *lexer) eof() bool {
	return l.pos >= len(l.src)
}
