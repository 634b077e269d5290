// Package preprocess rewrites script source before it is compiled so that
// float literals such as 1.0, which the engine would otherwise hand over as
// integers, reach natives as floats.
package preprocess

import (
	"fmt"
	"strings"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("cellbridge.preprocess")

// Default keywords recognised at call sites.
const (
	DefaultNativeKeyword     = "Native"
	DefaultCallPublicKeyword = "Call_Public"
	DefaultFloatWrapper      = "Float"
)

// Sources shorter than this cannot hold a marked call.
const minSourceLen = 8

// numContext holds the characters after which a sign belongs to the literal.
const numContext = ",(=[:{"

// Syntax selects the lexical rules used to recognise strings and comments.
type Syntax uint8

const (
	// JavaScript: '...', "...", `...`, // and /* */.
	JavaScript Syntax = iota
	// Lua: '...', "...", [[...]] and [==[...]==], -- and --[[ ]].
	Lua
)

var syntaxNames = [...]string{
	JavaScript: "js",
	Lua:        "lua",
}

func (s Syntax) String() string {
	if int(s) < len(syntaxNames) {
		return syntaxNames[s]
	}
	return "unknown"
}

// ParseSyntax resolves a syntax name ("js", "javascript" or "lua").
func ParseSyntax(name string) (Syntax, error) {
	switch strings.ToLower(name) {
	case "js", "javascript":
		return JavaScript, nil
	case "lua":
		return Lua, nil
	}
	return 0, fmt.Errorf("unknown source syntax %q", name)
}

// Transformer wraps integral-looking float literals passed to marked calls
// (<NativeKeyword>.name(...) and <CallPublicKeyword>.name(...)) in
// FloatWrapper(...). The zero value is not usable; see New.
type Transformer struct {
	NativeKeyword     string
	CallPublicKeyword string
	FloatWrapper      string
	Syntax            Syntax
}

// New returns a transformer for JavaScript sources with the default
// keywords.
func New() *Transformer {
	return NewFor(JavaScript)
}

// NewFor returns a transformer for sources in syntax with the default
// keywords.
func NewFor(syntax Syntax) *Transformer {
	return &Transformer{
		NativeKeyword:     DefaultNativeKeyword,
		CallPublicKeyword: DefaultCallPublicKeyword,
		FloatWrapper:      DefaultFloatWrapper,
		Syntax:            syntax,
	}
}

var std = New()

// TransformNativeCalls rewrites src with the default keywords.
func TransformNativeCalls(src string) string {
	return std.Transform(src)
}

type state uint8

const (
	stateNormal state = iota
	stateCall
	stateString
	stateLineComment
	stateBlockComment
	stateLongBracket
)

// lexeme is a string or comment opening at some position.
type lexeme struct {
	st     state
	quote  byte   // stateString
	closer string // stateLongBracket
	width  int    // length of the opener
}

// Transform rewrites src. It never fails: if anything goes wrong the
// original text is returned unchanged. Transform is idempotent.
func (t *Transformer) Transform(src string) (out string) {
	if len(src) < minSourceLen {
		return src
	}
	if !strings.Contains(src, t.NativeKeyword+".") && !strings.Contains(src, t.CallPublicKeyword+".") {
		return src
	}

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("preprocessor failed, source left unchanged: %s", fmt.Sprint(r))
			out = src
		}
	}()
	return t.scan(src)
}

func (t *Transformer) scan(src string) string {
	var b strings.Builder
	b.Grow(len(src) + len(src)/10)

	n := len(src)
	st, resume := stateNormal, stateNormal
	var quote byte
	var closer string
	depth := 0
	open := 0
	chunk := 0

	for i := 0; i < n; i++ {
		c := src[i]
		var next byte
		if i+1 < n {
			next = src[i+1]
		}

		switch st {
		case stateLineComment:
			if c == '\n' {
				st = resume
			}
			continue
		case stateBlockComment:
			if c == '*' && next == '/' {
				st = resume
				i++
			}
			continue
		case stateLongBracket:
			if c == ']' && strings.HasPrefix(src[i:], closer) {
				st = resume
				i += len(closer) - 1
			}
			continue
		case stateString:
			if c == '\\' {
				i++
			} else if c == quote {
				st = resume
			}
			continue
		}

		if lx, ok := t.lexemeAt(src, i); ok {
			st, resume = lx.st, st
			quote, closer = lx.quote, lx.closer
			i += lx.width - 1
			continue
		}

		if st == stateNormal {
			if end, ok := t.matchCall(src, i); ok {
				st = stateCall
				depth = 1
				open = end
				i = end
			}
			continue
		}

		// Inside a marked call.
		switch {
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				st = stateNormal
			}
		case isDigit(c) && !isIdentChar(src[i-1]):
			start, end, ok := parseLiteral(src, i, open)
			if !ok || t.wrapped(src, start) {
				continue
			}
			b.WriteString(src[chunk:start])
			b.WriteString(t.FloatWrapper)
			b.WriteByte('(')
			b.WriteString(src[start:end])
			b.WriteByte(')')
			chunk = end
			i = end - 1
		}
	}

	if chunk == 0 {
		return src
	}
	b.WriteString(src[chunk:])
	return b.String()
}

// lexemeAt reports whether a string or comment of t's syntax opens at i.
func (t *Transformer) lexemeAt(src string, i int) (lexeme, bool) {
	c := src[i]
	var next byte
	if i+1 < len(src) {
		next = src[i+1]
	}

	if c == '"' || c == '\'' {
		return lexeme{st: stateString, quote: c, width: 1}, true
	}

	switch t.Syntax {
	case Lua:
		switch {
		case c == '-' && next == '-':
			if w, cl, ok := longBracket(src, i+2); ok {
				return lexeme{st: stateLongBracket, closer: cl, width: 2 + w}, true
			}
			return lexeme{st: stateLineComment, width: 2}, true
		case c == '[':
			if w, cl, ok := longBracket(src, i); ok {
				return lexeme{st: stateLongBracket, closer: cl, width: w}, true
			}
		}
	default:
		switch {
		case c == '`':
			return lexeme{st: stateString, quote: c, width: 1}, true
		case c == '/' && next == '/':
			return lexeme{st: stateLineComment, width: 2}, true
		case c == '/' && next == '*':
			return lexeme{st: stateBlockComment, width: 2}, true
		}
	}
	return lexeme{}, false
}

// longBracket matches a Lua long bracket opener ([[, [=[, [==[ ...) at i and
// returns its width and the matching closer.
func longBracket(src string, i int) (int, string, bool) {
	if i >= len(src) || src[i] != '[' {
		return 0, "", false
	}
	p := i + 1
	for p < len(src) && src[p] == '=' {
		p++
	}
	if p >= len(src) || src[p] != '[' {
		return 0, "", false
	}
	level := p - i - 1
	return level + 2, "]" + strings.Repeat("=", level) + "]", true
}

// matchCall reports whether a marked call starts at i and returns the index
// of its opening parenthesis.
func (t *Transformer) matchCall(src string, i int) (int, bool) {
	for _, kw := range [...]string{t.NativeKeyword, t.CallPublicKeyword} {
		if kw == "" || !matchWord(src, i, kw) {
			continue
		}
		p := skipSpace(src, i+len(kw))
		if p >= len(src) || src[p] != '.' {
			continue
		}
		p = skipSpace(src, p+1)
		if p >= len(src) || !isIdentStart(src[p]) {
			continue
		}
		for p < len(src) && isIdentChar(src[p]) {
			p++
		}
		p = skipSpace(src, p)
		if p < len(src) && src[p] == '(' {
			return p, true
		}
	}
	return 0, false
}

// parseLiteral matches digits '.' zeros at i, followed by a non-identifier
// character. A sign is included when, skipping whitespace, it follows an
// expression start. The backward scan stops at open, the opening parenthesis
// of the marked call.
func parseLiteral(src string, i, open int) (start, end int, ok bool) {
	n := len(src)
	p := i
	for p < n && isDigit(src[p]) {
		p++
	}
	if p >= n || src[p] != '.' {
		return 0, 0, false
	}
	p++
	frac := p
	for p < n && src[p] == '0' {
		p++
	}
	if p == frac || (p < n && (isDigit(src[p]) || isIdentChar(src[p]))) {
		return 0, 0, false
	}

	start = i
	s := i - 1
	for s > open && isSpace(src[s]) {
		s--
	}
	if s > open && (src[s] == '-' || src[s] == '+') {
		ctx := s - 1
		for ctx > open && isSpace(src[ctx]) {
			ctx--
		}
		if strings.IndexByte(numContext, src[ctx]) >= 0 {
			start = s
		}
	}
	return start, p, true
}

// wrapped reports whether the literal at start is already the sole argument
// opening a FloatWrapper call.
func (t *Transformer) wrapped(src string, start int) bool {
	if start == 0 {
		return false
	}
	p := start - 1
	for p > 0 && isSpace(src[p]) {
		p--
	}
	if src[p] != '(' || p == 0 {
		return false
	}
	p--
	for p > 0 && isSpace(src[p]) {
		p--
	}
	w := t.FloatWrapper
	begin := p - len(w) + 1
	if begin < 0 || src[begin:p+1] != w {
		return false
	}
	return begin == 0 || !isIdentChar(src[begin-1])
}

func matchWord(src string, i int, kw string) bool {
	if !strings.HasPrefix(src[i:], kw) {
		return false
	}
	if i > 0 && isIdentChar(src[i-1]) {
		return false
	}
	end := i + len(kw)
	return end >= len(src) || !isIdentChar(src[end])
}

func skipSpace(src string, p int) int {
	for p < len(src) && isSpace(src[p]) {
		p++
	}
	return p
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || c == '$'
}

func isIdentChar(c byte) bool { return isIdentStart(c) || isDigit(c) }
