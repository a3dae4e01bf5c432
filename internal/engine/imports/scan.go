package imports

import (
	"strings"

	"nsref/internal/core/errors"
	"nsref/internal/engine/token"
)

// Scan walks a module's tokens and collects its namespaces, top-level use
// statements and class-like and function declarations. Declaration bodies
// and other blocks are skipped without being interpreted.
func Scan(path string, tokens []token.Token) (*Module, error) {
	mod := NewModule(path)
	global := mod.Ensure("")
	if len(tokens) == 0 {
		return mod, nil
	}

	cur := token.NewCursor(tokens)
	if _, err := cur.Advance(); err != nil {
		return nil, err
	}
	s := &scanner{b: NewBuilder(cur), mod: mod, table: global}
	if err := s.run(); err != nil {
		return nil, err
	}

	if global = mod.Table(""); global != nil && !global.declared && global.Empty() && len(mod.Tables) > 1 {
		mod.drop(global)
	}
	return mod, nil
}

type scanner struct {
	b      *Builder
	mod    *Module
	table  *Table
	braced bool
	// prev and last are the two most recent significant tokens seen by run.
	prev token.Token
	last token.Token
}

func (s *scanner) run() error {
	cur := s.b.Cursor()
	for !cur.AtEnd() {
		tok, err := cur.Current()
		if err != nil {
			return err
		}
		if !tok.IsInsignificant() {
			s.prev, s.last = s.last, tok
		}

		switch {
		case tok.Kind == token.KwNamespace:
			err = s.namespace()
		case tok.Kind == token.KwUse:
			err = s.use()
		case tok.Kind == token.KwClass:
			err = s.classLike(DeclarationKind(strings.ToLower(tok.Text)))
		case tok.Kind == token.KwFunction:
			err = s.function()
		case tok.Is("{") || tok.Kind == token.CurlyOpen:
			err = s.b.MatchBalanced("{", "}")
		case tok.Is("}"):
			if !s.braced {
				return errors.Unbalanced(s.b.cur.Line(), "unexpected '}'")
			}
			s.braced = false
			s.table = s.mod.Ensure("")
			err = s.b.next()
		default:
			err = s.b.next()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *scanner) namespace() error {
	if err := s.b.next(); err != nil {
		return err
	}
	if err := s.b.SkipInsignificant(false); err != nil {
		return err
	}
	tok, err := s.b.peek()
	if err != nil {
		return err
	}

	// namespace\Foo is a relative name, not a declaration.
	if tok.Kind == token.NsSeparator {
		return nil
	}

	name := ""
	if tok.Kind == token.Identifier {
		if name, err = s.b.MatchIdentifier(); err != nil {
			return err
		}
		if err := s.b.SkipInsignificant(false); err != nil {
			return err
		}
		if tok, err = s.b.peek(); err != nil {
			return err
		}
	}

	switch {
	case tok.Is(";") && name != "":
		s.braced = false
	case tok.Is("{"):
		s.braced = true
	default:
		return s.b.malformed("expected namespace name followed by ';' or '{', got " + tok.Describe())
	}
	// An explicit global block takes its place in source order.
	if g := s.mod.Table(""); name == "" && g != nil && !g.declared && g.Empty() {
		s.mod.drop(g)
	}
	s.table = s.mod.Ensure(name)
	s.table.declared = true
	return s.b.next()
}

func (s *scanner) use() error {
	// A closure's `use (...)` clause follows its parameter list.
	if s.prev.Is(")") {
		return s.b.next()
	}
	stmt, err := s.b.MatchUseStatement()
	if err != nil {
		return err
	}
	for _, imp := range stmt.Imports {
		if err := s.table.Add(stmt.Kind, imp); err != nil {
			return err
		}
	}
	return nil
}

func (s *scanner) classLike(kind DeclarationKind) error {
	line := s.b.cur.Line()
	if err := s.b.next(); err != nil {
		return err
	}
	if err := s.b.SkipInsignificant(false); err != nil {
		return err
	}
	tok, err := s.b.peek()
	if err != nil {
		return err
	}
	if tok.Kind == token.Identifier && !s.anonymousClass() {
		s.table.Declare(Declaration{Kind: kind, Name: tok.Text, Line: line})
	}
	return s.b.MatchBalanced("{", "}")
}

func (s *scanner) function() error {
	line := s.b.cur.Line()
	if err := s.b.next(); err != nil {
		return err
	}
	if err := s.b.SkipInsignificant(false); err != nil {
		return err
	}
	tok, err := s.b.peek()
	if err != nil {
		return err
	}
	if tok.Is("&") {
		if err := s.b.next(); err != nil {
			return err
		}
		if err := s.b.SkipInsignificant(false); err != nil {
			return err
		}
		if tok, err = s.b.peek(); err != nil {
			return err
		}
	}
	if tok.Kind == token.Identifier {
		s.table.Declare(Declaration{Kind: DeclFunction, Name: tok.Text, Line: line})
	}
	return s.b.MatchBalanced("{", "}")
}

// anonymousClass reports whether the class keyword just consumed followed
// `new`, as in `new class(...) {}`.
func (s *scanner) anonymousClass() bool {
	return s.prev.Kind == token.Identifier && strings.EqualFold(s.prev.Text, "new")
}
