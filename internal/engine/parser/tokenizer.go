package parser

import (
	"strings"

	"nsref/internal/core/errors"
	"nsref/internal/engine/token"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
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

// interpolationParents are the node kinds whose "{" child opens an
// interpolated expression.
var interpolationParents = map[string]bool{
	"encapsed_string":          true,
	"heredoc_body":             true,
	"shell_command_expression": true,
}

func phpLanguage() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_php.LanguagePHP())
}

// Tokenizer produces tokens from the leaves of a tree-sitter PHP syntax tree.
// Bytes between leaves become whitespace tokens, so the token texts cover
// the whole source like the native lexer's do.
type Tokenizer struct {
	pool *ParserPool
}

func NewTokenizer() *Tokenizer {
	return &Tokenizer{pool: NewParserPool(phpLanguage())}
}

func (t *Tokenizer) Name() string {
	return "tree-sitter"
}

func (t *Tokenizer) Tokenize(source []byte) ([]token.Token, error) {
	sp := t.pool.Get()
	defer t.pool.Put(sp)

	tree := sp.Parse(source, nil)
	if tree == nil {
		return nil, errors.New(errors.CodeInternal, "tree-sitter parse failed")
	}
	defer tree.Close()

	w := &leafWalker{src: source, line: 1}
	w.walk(tree.RootNode(), "")
	w.gap(uint(len(source)))
	return w.toks, nil
}

type leafWalker struct {
	src  []byte
	pos  uint
	line int
	toks []token.Token
}

func (w *leafWalker) walk(n *sitter.Node, parent string) {
	count := n.ChildCount()
	if count == 0 {
		w.leaf(n, parent)
		return
	}
	kind := n.Kind()
	// A comment is one token however the grammar splits it.
	if kind == "comment" {
		w.leaf(n, parent)
		return
	}
	for i := uint(0); i < count; i++ {
		if child := n.Child(i); child != nil {
			w.walk(child, kind)
		}
	}
}

func (w *leafWalker) leaf(n *sitter.Node, parent string) {
	start, end := n.StartByte(), n.EndByte()
	if end <= start || start < w.pos {
		return
	}
	w.gap(start)

	text := string(w.src[start:end])
	line := int(n.StartPosition().Row) + 1
	w.emit(classify(n, parent, text, w.lastSignificant()), text, line)
	w.pos = end
	w.line = int(n.EndPosition().Row) + 1
}

// gap emits the untokenized bytes before until: whitespace, or inline text
// the grammar did not attach to a leaf.
func (w *leafWalker) gap(until uint) {
	if until <= w.pos {
		return
	}
	text := string(w.src[w.pos:until])
	kind := token.Whitespace
	if strings.TrimSpace(text) != "" {
		kind = token.Other
	}
	w.emit(kind, text, w.line)
	w.line += strings.Count(text, "\n")
	w.pos = until
}

func (w *leafWalker) emit(kind token.Kind, text string, line int) {
	if kind == token.Punct {
		w.toks = append(w.toks, token.P(text))
		return
	}
	w.toks = append(w.toks, token.New(kind, text, line))
}

func (w *leafWalker) lastSignificant() token.Token {
	for i := len(w.toks) - 1; i >= 0; i-- {
		if !w.toks[i].IsInsignificant() {
			return w.toks[i]
		}
	}
	return token.Token{Kind: token.EOF}
}

func classify(n *sitter.Node, parent, text string, prev token.Token) token.Kind {
	kind := n.Kind()
	switch {
	case kind == "comment":
		if strings.HasPrefix(text, "/**") && text != "/**/" {
			return token.DocComment
		}
		return token.Comment
	case kind == "php_tag":
		return token.OpenTag
	case kind == "name":
		return token.Identifier
	case kind == `\`:
		return token.NsSeparator
	case kind == "${":
		return token.CurlyOpen
	case kind == "{" && interpolationParents[parent]:
		return token.CurlyOpen
	case n.IsNamed():
		return token.Other
	}

	if isWord(text) {
		if kw, ok := keywords[strings.ToLower(text)]; ok && !afterMemberAccess(prev) {
			return kw
		}
		return token.Identifier
	}
	if len(text) == 1 {
		return token.Punct
	}
	return token.Other
}

func afterMemberAccess(prev token.Token) bool {
	return prev.Kind == token.Other && (prev.Text == "->" || prev.Text == "?->" || prev.Text == "::")
}

func isWord(text string) bool {
	if text == "" {
		return false
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80 || (i > 0 && c >= '0' && c <= '9') {
			continue
		}
		return false
	}
	return true
}
