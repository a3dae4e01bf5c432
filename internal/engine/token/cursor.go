package token

import (
	"nsref/internal/core/errors"
)

// Cursor is a forward-only view over an immutable token buffer.
//
// Advance must be called once before Current. Advancing from the last token
// moves the cursor onto a virtual end position where Current reports an EOF
// token; the next Advance fails with ErrStreamExhausted, and so does every
// Advance after that.
type Cursor struct {
	tokens  []Token
	pos     int
	started bool
	end     bool
	line    int
}

func NewCursor(tokens []Token) *Cursor {
	buf := make([]Token, len(tokens))
	copy(buf, tokens)
	return &Cursor{tokens: buf}
}

func (c *Cursor) Advance() (Token, error) {
	if c.end || (c.started && c.pos >= len(c.tokens)) || (!c.started && len(c.tokens) == 0) {
		c.end = true
		return Token{Kind: EOF}, errors.StreamExhausted()
	}
	if c.started {
		c.pos++
	}
	c.started = true

	tok := c.at()
	if tok.IsStructured() {
		c.line = tok.Line
	}
	return tok, nil
}

func (c *Cursor) Current() (Token, error) {
	if !c.started {
		return Token{}, errors.PreconditionViolated("call Advance before Current")
	}
	return c.at(), nil
}

// Line returns the line of the last structured token seen, or 0.
func (c *Cursor) Line() int {
	return c.line
}

// AtEnd reports whether the cursor sits on the virtual end position.
func (c *Cursor) AtEnd() bool {
	return c.started && c.pos >= len(c.tokens)
}

func (c *Cursor) at() Token {
	if c.pos >= len(c.tokens) {
		return Token{Kind: EOF}
	}
	return c.tokens[c.pos]
}
