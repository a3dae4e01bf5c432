package token

import (
	"encoding/json"
	"fmt"
)

// NamespaceSeparator separates the segments of a qualified name.
const NamespaceSeparator = `\`

type Kind int

const (
	// Punct is a bare single-character token such as `,` `;` `{` `}`.
	// Punctuation tokens carry no line of their own.
	Punct Kind = iota
	Identifier
	NsSeparator
	Whitespace
	Comment
	DocComment
	KwFunction
	KwConst
	KwAs
	KwUse
	KwNamespace
	KwClass // class, interface, trait, enum
	CurlyOpen
	OpenTag
	Other
	// EOF is reported by Cursor.Current once the cursor moved past the last token.
	EOF
)

var kindNames = [...]string{
	Punct:       "punct",
	Identifier:  "identifier",
	NsSeparator: "ns_separator",
	Whitespace:  "whitespace",
	Comment:     "comment",
	DocComment:  "doc_comment",
	KwFunction:  "function",
	KwConst:     "const",
	KwAs:        "as",
	KwUse:       "use",
	KwNamespace: "namespace",
	KwClass:     "class",
	CurlyOpen:   "curly_open",
	OpenTag:     "open_tag",
	Other:       "other",
	EOF:         "eof",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type Token struct {
	Kind Kind
	Text string
	Line int
}

// New builds a structured token.
func New(kind Kind, text string, line int) Token {
	return Token{Kind: kind, Text: text, Line: line}
}

// P builds a bare punctuation token.
func P(ch string) Token {
	return Token{Kind: Punct, Text: ch}
}

// IsStructured reports whether the token is a (kind, text, line) triple
// rather than bare punctuation.
func (t Token) IsStructured() bool {
	return t.Kind != Punct && t.Kind != EOF
}

// Is reports whether t is the bare punctuation ch.
func (t Token) Is(ch string) bool {
	return t.Kind == Punct && t.Text == ch
}

// IsInsignificant reports whether t is whitespace or a comment.
func (t Token) IsInsignificant() bool {
	switch t.Kind {
	case Whitespace, Comment, DocComment:
		return true
	}
	return false
}

// Describe renders the token for diagnostics.
func (t Token) Describe() string {
	text, _ := json.Marshal(t.Text)
	if !t.IsStructured() {
		return string(text)
	}
	return fmt.Sprintf("[%s, %s, %d]", t.Kind, text, t.Line)
}
