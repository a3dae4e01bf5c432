package imports

import (
	"strings"

	"nsref/internal/core/errors"
	"nsref/internal/engine/token"
)

// UseStatement is one parsed `use` statement.
type UseStatement struct {
	Kind    Kind
	Line    int
	Imports []Import
}

// Map returns the statement's alias -> fully-qualified name pairs.
func (s *UseStatement) Map() map[string]string {
	out := make(map[string]string, len(s.Imports))
	for _, imp := range s.Imports {
		out[imp.Alias] = imp.Name
	}
	return out
}

// Builder matches import grammar rules over a cursor. Every matcher starts at
// the cursor's current token and leaves the cursor on the first token it did
// not consume. Failures are not recovered from.
type Builder struct {
	cur *token.Cursor
}

func NewBuilder(cur *token.Cursor) *Builder {
	return &Builder{cur: cur}
}

func (b *Builder) Cursor() *token.Cursor {
	return b.cur
}

func (b *Builder) peek() (token.Token, error) {
	return b.cur.Current()
}

func (b *Builder) next() error {
	_, err := b.cur.Advance()
	return err
}

func (b *Builder) malformed(detail string) error {
	return errors.MalformedImport(b.cur.Line(), detail)
}

// SkipInsignificant consumes whitespace and comments. With required set, at
// least one such token must be present.
func (b *Builder) SkipInsignificant(required bool) error {
	skipped := 0
	for {
		tok, err := b.peek()
		if err != nil {
			return err
		}
		if !tok.IsInsignificant() {
			break
		}
		skipped++
		if err := b.next(); err != nil {
			return err
		}
	}
	if required && skipped == 0 {
		return b.malformed("expected whitespace")
	}
	return nil
}

// MatchIdentifier consumes a run of identifier segments and namespace
// separators and returns their concatenation.
func (b *Builder) MatchIdentifier() (string, error) {
	var sb strings.Builder
	for {
		tok, err := b.peek()
		if err != nil {
			return "", err
		}
		if tok.Kind != token.Identifier && tok.Kind != token.NsSeparator {
			if sb.Len() == 0 {
				return "", b.malformed("expected identifier, got " + tok.Describe())
			}
			return sb.String(), nil
		}
		sb.WriteString(tok.Text)
		if err := b.next(); err != nil {
			return "", err
		}
	}
}

// MatchUseStatement parses `use [function|const] item[, item...];` with the
// cursor positioned on the `use` keyword.
func (b *Builder) MatchUseStatement() (*UseStatement, error) {
	tok, err := b.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind != token.KwUse {
		return nil, b.malformed("expected 'use', got " + tok.Describe())
	}
	line := tok.Line
	if err := b.next(); err != nil {
		return nil, err
	}
	if err := b.SkipInsignificant(true); err != nil {
		return nil, err
	}

	tok, err = b.peek()
	if err != nil {
		return nil, err
	}
	kind := KindType
	switch tok.Kind {
	case token.KwFunction:
		kind = KindFunction
	case token.KwConst:
		kind = KindConst
	case token.Identifier, token.NsSeparator:
	default:
		return nil, b.malformed("expected class name or the keyword 'function' or 'const'")
	}
	if kind != KindType {
		if err := b.next(); err != nil {
			return nil, err
		}
		if err := b.SkipInsignificant(true); err != nil {
			return nil, err
		}
	}

	imports, err := b.matchImportList(";", true)
	if err != nil {
		return nil, err
	}
	return &UseStatement{Kind: kind, Line: line, Imports: imports}, nil
}

func (b *Builder) matchImportList(stop string, allowGroups bool) ([]Import, error) {
	var imports []Import
	seen := make(map[string]string)
	for {
		items, err := b.matchUseListItem(allowGroups)
		if err != nil {
			return nil, err
		}
		for _, imp := range items {
			if prev, ok := seen[imp.Alias]; ok {
				return nil, errors.DuplicateAlias(imp.Line, imp.Alias, imp.Name, prev)
			}
			seen[imp.Alias] = imp.Name
			imports = append(imports, imp)
		}

		if err := b.SkipInsignificant(false); err != nil {
			return nil, err
		}
		tok, err := b.peek()
		if err != nil {
			return nil, err
		}
		switch {
		case tok.Is(","):
			if err := b.next(); err != nil {
				return nil, err
			}
			if allowGroups {
				continue
			}
			// Groups accept a trailing comma before the closing brace.
			if err := b.SkipInsignificant(false); err != nil {
				return nil, err
			}
			if tok, err = b.peek(); err != nil {
				return nil, err
			}
			if tok.Is(stop) {
				return imports, b.next()
			}
		case tok.Is(stop):
			return imports, b.next()
		default:
			return nil, b.malformed("expected ',' or '" + stop + "', got " + tok.Describe())
		}
	}
}

func (b *Builder) matchUseListItem(allowGroups bool) ([]Import, error) {
	if err := b.SkipInsignificant(false); err != nil {
		return nil, err
	}
	tok, err := b.peek()
	if err != nil {
		return nil, err
	}
	line := b.cur.Line()
	if tok.IsStructured() {
		line = tok.Line
	}

	name, err := b.MatchIdentifier()
	if err != nil {
		return nil, err
	}
	if err := b.SkipInsignificant(false); err != nil {
		return nil, err
	}
	if tok, err = b.peek(); err != nil {
		return nil, err
	}

	if tok.Is("{") || tok.Kind == token.CurlyOpen {
		if !allowGroups {
			return nil, b.malformed("nested import group")
		}
		prefix := strings.TrimPrefix(name, token.NamespaceSeparator)
		if !strings.HasSuffix(prefix, token.NamespaceSeparator) {
			return nil, b.malformed("import group prefix '" + name + "' must end with a namespace separator")
		}
		if err := b.next(); err != nil {
			return nil, err
		}
		nested, err := b.matchImportList("}", false)
		if err != nil {
			return nil, err
		}
		for i := range nested {
			nested[i].Name = prefix + nested[i].Name
		}
		return nested, nil
	}

	var alias string
	if tok.Kind == token.KwAs {
		if err := b.next(); err != nil {
			return nil, err
		}
		if err := b.SkipInsignificant(true); err != nil {
			return nil, err
		}
		if alias, err = b.MatchIdentifier(); err != nil {
			return nil, err
		}
		if strings.Contains(alias, token.NamespaceSeparator) {
			return nil, b.malformed("import alias '" + alias + "' cannot contain namespace separator")
		}
	} else {
		alias = SimpleName(name)
		if alias == "" {
			return nil, b.malformed("import '" + name + "' has no name after the namespace separator")
		}
	}

	return []Import{{Alias: alias, Name: strings.TrimPrefix(name, token.NamespaceSeparator), Line: line}}, nil
}

// MatchBalanced consumes tokens from the current one until the first open
// marker has been closed, leaving the cursor just past that close marker.
// For "{" the interpolation open token counts as an open marker.
func (b *Builder) MatchBalanced(open, close string) error {
	depth := 0
	for {
		tok, err := b.peek()
		if err != nil {
			return err
		}
		switch {
		case tok.Kind == token.EOF:
			return errors.Unbalanced(b.cur.Line(), open+"..."+close)
		case tok.Is(open) || (open == "{" && tok.Kind == token.CurlyOpen):
			depth++
		case tok.Is(close):
			depth--
			if depth < 0 {
				return errors.Unbalanced(b.cur.Line(), "unexpected '"+close+"'")
			}
			if depth == 0 {
				return b.next()
			}
		}
		if err := b.next(); err != nil {
			if errors.IsKind(err, errors.ErrStreamExhausted) {
				return errors.Unbalanced(b.cur.Line(), open+"..."+close)
			}
			return err
		}
	}
}

// SimpleName returns the last segment of a qualified name.
func SimpleName(name string) string {
	if i := strings.LastIndex(name, token.NamespaceSeparator); i >= 0 {
		return name[i+1:]
	}
	return name
}
