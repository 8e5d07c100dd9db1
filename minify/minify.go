// Package minify strips insignificant whitespace and comments from RON
// metadata before it is compressed into an archive.
//
// String literals are opaque: regular strings, raw strings (r"…", r#"…"#)
// and char literals are copied byte-for-byte, escape sequences included.
// Whitespace separating two word characters is kept as a single space so
// adjacent tokens never merge. Minify is idempotent.
package minify

import "bytes"

// String minifies a RON document held in a string.
func String(s string) string {
	return string(Minify([]byte(s)))
}

// Minify returns a minified copy of src.
func Minify(src []byte) []byte {
	m := minifier{src: src, out: make([]byte, 0, len(src))}
	m.run()
	return m.out
}

type minifier struct {
	src []byte
	out []byte
	pos int
	gap bool // whitespace or a comment was skipped since the last token byte
}

func (m *minifier) run() {
	for m.pos < len(m.src) {
		c := m.src[m.pos]
		switch {
		case isSpace(c):
			m.gap = true
			m.pos++
		case c == '/' && m.peek(1) == '/':
			m.skipLineComment()
		case c == '/' && m.peek(1) == '*':
			m.skipBlockComment()
		case c == '"':
			m.emitSeparator(c)
			m.copyQuoted('"')
		case c == '\'':
			m.emitSeparator(c)
			m.copyQuoted('\'')
		case c == 'r' && m.rawStringAhead():
			m.emitSeparator(c)
			m.copyRawString()
		default:
			m.emitSeparator(c)
			m.out = append(m.out, c)
			m.pos++
		}
	}
}

func (m *minifier) peek(n int) byte {
	if m.pos+n < len(m.src) {
		return m.src[m.pos+n]
	}
	return 0
}

// emitSeparator writes one space when a skipped gap sat between two word
// characters, e.g. "a b" must not become "ab". A slash is likewise kept
// apart from a following slash or star so no comment opener is formed, and
// a word is kept apart from a following hash so "r #" never becomes a raw
// string opener.
func (m *minifier) emitSeparator(next byte) {
	if m.gap && len(m.out) > 0 {
		prev := m.out[len(m.out)-1]
		if (isWord(prev) && (isWord(next) || next == '#')) ||
			(prev == '/' && (next == '/' || next == '*')) {
			m.out = append(m.out, ' ')
		}
	}
	m.gap = false
}

func (m *minifier) skipLineComment() {
	end := bytes.IndexByte(m.src[m.pos:], '\n')
	if end < 0 {
		m.pos = len(m.src)
	} else {
		m.pos += end + 1
	}
	m.gap = true
}

// skipBlockComment skips a block comment; RON allows them to nest.
func (m *minifier) skipBlockComment() {
	depth := 0
	for m.pos < len(m.src) {
		switch {
		case m.src[m.pos] == '/' && m.peek(1) == '*':
			depth++
			m.pos += 2
		case m.src[m.pos] == '*' && m.peek(1) == '/':
			depth--
			m.pos += 2
			if depth == 0 {
				m.gap = true
				return
			}
		default:
			m.pos++
		}
	}
	m.gap = true
}

// copyQuoted copies a quote-delimited literal verbatim, honouring
// backslash escapes. An unterminated literal runs to the end of input.
func (m *minifier) copyQuoted(quote byte) {
	start := m.pos
	m.pos++
	for m.pos < len(m.src) {
		c := m.src[m.pos]
		if c == '\\' {
			m.pos += 2
			continue
		}
		m.pos++
		if c == quote {
			break
		}
	}
	m.pos = min(m.pos, len(m.src))
	m.out = append(m.out, m.src[start:m.pos]...)
}

// rawStringAhead reports whether the r at pos opens a raw string rather
// than ending or starting an identifier.
func (m *minifier) rawStringAhead() bool {
	if len(m.out) > 0 && isWord(m.out[len(m.out)-1]) && !m.gap {
		return false
	}
	i := m.pos + 1
	for i < len(m.src) && m.src[i] == '#' {
		i++
	}
	return i < len(m.src) && m.src[i] == '"'
}

func (m *minifier) copyRawString() {
	start := m.pos
	i := m.pos + 1
	hashes := 0
	for m.src[i] == '#' {
		hashes++
		i++
	}
	i++ // opening quote
	for i < len(m.src) {
		if m.src[i] == '"' && closesRaw(m.src[i+1:], hashes) {
			i += 1 + hashes
			m.out = append(m.out, m.src[start:i]...)
			m.pos = i
			return
		}
		i++
	}
	m.out = append(m.out, m.src[start:]...)
	m.pos = len(m.src)
}

func closesRaw(rest []byte, hashes int) bool {
	if len(rest) < hashes {
		return false
	}
	for _, c := range rest[:hashes] {
		if c != '#' {
			return false
		}
	}
	return true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

// isWord reports bytes that may continue an identifier or number literal.
// Bytes >= 0x80 are treated as word bytes so multi-byte UTF-8 identifiers
// stay separated.
func isWord(c byte) bool {
	return c == '_' || c == '.' || c == '+' || c == '-' ||
		('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') ||
		c >= 0x80
}
