package lexer

import (
	"strings"

	"nsref/internal/engine/token"
)

var keywords = map[string]token.Kind{
	"use":       token.KwUse,
	"function":  token.KwFunction,
	"const":     token.KwConst,
	"as":        token.KwAs,
	"namespace": token.KwNamespace,
	"class":     token.KwClass,
	"interface": token.KwClass,
	"trait":     token.KwClass,
	"enum":      token.KwClass,
}

// Lexer tokenizes source modules of the host language.
type Lexer struct{}

func New() *Lexer {
	return &Lexer{}
}

func (l *Lexer) Name() string {
	return "native"
}

func (l *Lexer) Tokenize(source []byte) ([]token.Token, error) {
	return Tokenize(source), nil
}

// Tokenize splits source into tokens. Text outside open/close tags becomes
// Other tokens. Tokenize never fails: unterminated strings and comments run to
// the end of the input.
func Tokenize(source []byte) []token.Token {
	s := &state{src: string(source), line: 1}
	s.lexTemplate()
	return s.toks
}

type state struct {
	src  string
	pos  int
	line int
	toks []token.Token
}

func (s *state) lexTemplate() {
	for s.pos < len(s.src) {
		rest := s.src[s.pos:]
		idx, tagLen := findOpenTag(rest)
		if idx < 0 {
			s.emitSpan(token.Other, len(rest))
			return
		}
		if idx > 0 {
			s.emitSpan(token.Other, idx)
		}
		s.emitSpan(token.OpenTag, tagLen)
		s.lexCode(false)
	}
}

// findOpenTag locates the first `<?php` (any case) or `<?=` in text. Offsets
// index text itself, so inline bytes of any encoding keep their positions.
func findOpenTag(text string) (int, int) {
	for i := strings.Index(text, "<?"); i >= 0; {
		rest := text[i:]
		switch {
		case len(rest) >= 5 && strings.EqualFold(rest[:5], "<?php"):
			return i, 5
		case strings.HasPrefix(rest, "<?="):
			return i, 3
		}
		next := strings.Index(text[i+2:], "<?")
		if next < 0 {
			break
		}
		i += 2 + next
	}
	return -1, 0
}

// lexCode lexes code until a close tag, the end of input or, when inInterp is
// set, the `}` closing an interpolation.
func (s *state) lexCode(inInterp bool) {
	depth := 0
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case isSpace(c):
			n := 0
			for s.pos+n < len(s.src) && isSpace(s.src[s.pos+n]) {
				n++
			}
			s.emitSpan(token.Whitespace, n)
		case s.hasPrefix("#["):
			s.emitSpan(token.Other, 2)
		case c == '#' || s.hasPrefix("//"):
			n := 0
			for s.pos+n < len(s.src) && s.src[s.pos+n] != '\n' && !strings.HasPrefix(s.src[s.pos+n:], "?>") {
				n++
			}
			s.emitSpan(token.Comment, n)
		case s.hasPrefix("/*"):
			kind := token.Comment
			if s.hasPrefix("/**") && !s.hasPrefix("/**/") {
				kind = token.DocComment
			}
			end := strings.Index(s.src[s.pos+2:], "*/")
			n := len(s.src) - s.pos
			if end >= 0 {
				n = end + 4
			}
			s.emitSpan(kind, n)
		case !inInterp && s.hasPrefix("?>"):
			n := 2
			if strings.HasPrefix(s.src[s.pos+2:], "\n") {
				n = 3
			} else if strings.HasPrefix(s.src[s.pos+2:], "\r\n") {
				n = 4
			}
			s.emitSpan(token.Other, n)
			return
		case s.hasPrefix("?->"):
			s.emitSpan(token.Other, 3)
		case s.hasPrefix("->"), s.hasPrefix("::"), s.hasPrefix("=>"):
			s.emitSpan(token.Other, 2)
		case s.hasPrefix("<<<"):
			s.lexHeredoc()
		case isIdentStart(c):
			s.lexWord()
		case c == '\\':
			s.emitSpan(token.NsSeparator, 1)
		case c == '$' && s.pos+1 < len(s.src) && isIdentStart(s.src[s.pos+1]):
			n := 2
			for s.pos+n < len(s.src) && isIdentChar(s.src[s.pos+n]) {
				n++
			}
			s.emitSpan(token.Other, n)
		case isDigit(c):
			n := 1
			for s.pos+n < len(s.src) && (isIdentChar(s.src[s.pos+n]) || s.src[s.pos+n] == '.') {
				n++
			}
			s.emitSpan(token.Other, n)
		case c == '\'':
			s.lexSingleQuoted()
		case c == '"' || c == '`':
			quote := c
			s.lexInterpolated(1, func() int {
				if s.src[s.pos] == quote {
					return 1
				}
				return 0
			})
		case c == '{':
			depth++
			s.emitPunct("{")
		case c == '}':
			if inInterp && depth == 0 {
				s.emitPunct("}")
				return
			}
			depth--
			s.emitPunct("}")
		default:
			s.emitPunct(string(c))
		}
	}
}

func (s *state) lexWord() {
	n := 1
	for s.pos+n < len(s.src) && isIdentChar(s.src[s.pos+n]) {
		n++
	}
	word := s.src[s.pos : s.pos+n]
	lower := strings.ToLower(word)
	kind := token.Identifier
	if kw, ok := keywords[lower]; ok && !s.afterMemberAccess() && !s.nameSegment(n) {
		if lower != "enum" || s.followedByName(n) {
			kind = kw
		}
	}
	s.emitSpan(kind, n)
}

// nameSegment reports whether the n-byte word at pos is glued to a namespace
// separator, as in App\Enum\Status, where keywords are plain segments.
func (s *state) nameSegment(n int) bool {
	if s.pos+n < len(s.src) && s.src[s.pos+n] == '\\' {
		return true
	}
	if len(s.toks) > 0 && s.pos > 0 && s.src[s.pos-1] == '\\' {
		return s.toks[len(s.toks)-1].Kind == token.NsSeparator
	}
	return false
}

// followedByName reports whether whitespace and then an identifier follow
// the n-byte word at pos. `enum` is only a keyword in that position.
func (s *state) followedByName(n int) bool {
	i := s.pos + n
	if i >= len(s.src) || !isSpace(s.src[i]) {
		return false
	}
	for i < len(s.src) && isSpace(s.src[i]) {
		i++
	}
	if i >= len(s.src) || !isIdentStart(s.src[i]) {
		return false
	}
	j := i
	for j < len(s.src) && isIdentChar(s.src[j]) {
		j++
	}
	next := strings.ToLower(s.src[i:j])
	return next != "extends" && next != "implements"
}

// afterMemberAccess reports whether the last significant token is `->`,
// `?->` or `::`, where keywords are plain member names.
func (s *state) afterMemberAccess() bool {
	for i := len(s.toks) - 1; i >= 0; i-- {
		tok := s.toks[i]
		if tok.IsInsignificant() {
			continue
		}
		return tok.Kind == token.Other && (tok.Text == "->" || tok.Text == "?->" || tok.Text == "::")
	}
	return false
}

func (s *state) lexSingleQuoted() {
	n := 1
	for s.pos+n < len(s.src) {
		c := s.src[s.pos+n]
		if c == '\\' {
			n += 2
			continue
		}
		n++
		if c == '\'' {
			break
		}
	}
	if s.pos+n > len(s.src) {
		n = len(s.src) - s.pos
	}
	s.emitSpan(token.Other, n)
}

// lexInterpolated lexes a string body that may contain `{$expr}` and
// `${expr}` interpolations. openLen bytes of opening delimiter are skipped;
// closer reports the length of the closing delimiter at the current position.
func (s *state) lexInterpolated(openLen int, closer func() int) {
	segStart, segLine := s.pos, s.line
	s.advance(openLen)
	flush := func() {
		if s.pos > segStart {
			s.toks = append(s.toks, token.New(token.Other, s.src[segStart:s.pos], segLine))
		}
	}
	for s.pos < len(s.src) {
		if n := closer(); n > 0 {
			s.advance(n)
			flush()
			return
		}
		switch {
		case s.src[s.pos] == '\\':
			s.advance(min(2, len(s.src)-s.pos))
		case s.hasPrefix("{$"):
			flush()
			s.toks = append(s.toks, token.New(token.CurlyOpen, "{", s.line))
			s.pos++
			s.lexCode(true)
			segStart, segLine = s.pos, s.line
		case s.hasPrefix("${"):
			flush()
			s.toks = append(s.toks, token.New(token.CurlyOpen, "${", s.line))
			s.pos += 2
			s.lexCode(true)
			segStart, segLine = s.pos, s.line
		default:
			s.advance(1)
		}
	}
	flush()
}

func (s *state) lexHeredoc() {
	i := s.pos + 3
	for i < len(s.src) && (s.src[i] == ' ' || s.src[i] == '\t') {
		i++
	}
	nowdoc := false
	quoted := byte(0)
	if i < len(s.src) && (s.src[i] == '\'' || s.src[i] == '"') {
		quoted = s.src[i]
		nowdoc = quoted == '\''
		i++
	}
	idStart := i
	for i < len(s.src) && isIdentChar(s.src[i]) {
		i++
	}
	id := s.src[idStart:i]
	if id == "" {
		s.emitPunct("<")
		return
	}
	if quoted != 0 && i < len(s.src) && s.src[i] == quoted {
		i++
	}
	if i < len(s.src) && s.src[i] == '\r' {
		i++
	}
	if i < len(s.src) && s.src[i] == '\n' {
		i++
	}
	openLen := i - s.pos
	bodyStart := i

	closer := func() int {
		if s.pos != bodyStart && s.src[s.pos-1] != '\n' {
			return 0
		}
		j := s.pos
		for j < len(s.src) && (s.src[j] == ' ' || s.src[j] == '\t') {
			j++
		}
		if !strings.HasPrefix(s.src[j:], id) {
			return 0
		}
		end := j + len(id)
		if end < len(s.src) && isIdentChar(s.src[end]) {
			return 0
		}
		return end - s.pos
	}

	if !nowdoc {
		s.lexInterpolated(openLen, closer)
		return
	}
	start, line := s.pos, s.line
	s.advance(openLen)
	for s.pos < len(s.src) {
		if n := closer(); n > 0 {
			s.advance(n)
			break
		}
		s.advance(1)
	}
	s.toks = append(s.toks, token.New(token.Other, s.src[start:s.pos], line))
}

func (s *state) emitSpan(kind token.Kind, n int) {
	text := s.src[s.pos : s.pos+n]
	s.toks = append(s.toks, token.New(kind, text, s.line))
	s.advance(n)
}

func (s *state) emitPunct(ch string) {
	s.toks = append(s.toks, token.P(ch))
	s.pos += len(ch)
}

func (s *state) advance(n int) {
	s.line += strings.Count(s.src[s.pos:s.pos+n], "\n")
	s.pos += n
}

func (s *state) hasPrefix(prefix string) bool {
	return strings.HasPrefix(s.src[s.pos:], prefix)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
