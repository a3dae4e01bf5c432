package errors

import (
	"errors"
	"fmt"
)

// ParseKind tags a ParseError.
type ParseKind int

const (
	ErrStreamExhausted ParseKind = iota + 1
	ErrPreconditionViolated
	ErrMalformedImport
	ErrDuplicateAlias
	ErrUnbalanced
	ErrInvalidTypeSyntax
)

var parseKindNames = map[ParseKind]string{
	ErrStreamExhausted:      "stream_exhausted",
	ErrPreconditionViolated: "precondition_violated",
	ErrMalformedImport:      "malformed_import",
	ErrDuplicateAlias:       "duplicate_alias",
	ErrUnbalanced:           "unbalanced",
	ErrInvalidTypeSyntax:    "invalid_type_syntax",
}

func (k ParseKind) String() string {
	if name, ok := parseKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("parse_kind(%d)", int(k))
}

// ParseError is returned by the token cursor, the import grammar and the type
// expression parser. Only the fields relevant to Kind are set.
type ParseError struct {
	Kind   ParseKind
	Line   int
	Detail string

	// DuplicateAlias
	Alias    string
	Target   string
	Previous string

	// InvalidTypeSyntax
	Input string
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case ErrStreamExhausted:
		return "token stream exhausted"
	case ErrPreconditionViolated:
		return "cursor precondition violated: " + e.Detail
	case ErrMalformedImport:
		return fmt.Sprintf("malformed import at line %d: %s", e.Line, e.Detail)
	case ErrDuplicateAlias:
		return fmt.Sprintf("duplicated import alias %q for %q at line %d, previous %q", e.Alias, e.Target, e.Line, e.Previous)
	case ErrUnbalanced:
		return fmt.Sprintf("unbalanced %s at line %d", e.Detail, e.Line)
	case ErrInvalidTypeSyntax:
		return fmt.Sprintf("expected a type string, got %q", e.Input)
	}
	return e.Kind.String()
}

func StreamExhausted() error {
	return &ParseError{Kind: ErrStreamExhausted}
}

func PreconditionViolated(detail string) error {
	return &ParseError{Kind: ErrPreconditionViolated, Detail: detail}
}

func MalformedImport(line int, detail string) error {
	return &ParseError{Kind: ErrMalformedImport, Line: line, Detail: detail}
}

func DuplicateAlias(line int, alias, target, previous string) error {
	return &ParseError{Kind: ErrDuplicateAlias, Line: line, Alias: alias, Target: target, Previous: previous}
}

func Unbalanced(line int, detail string) error {
	return &ParseError{Kind: ErrUnbalanced, Line: line, Detail: detail}
}

func InvalidTypeSyntax(input string) error {
	return &ParseError{Kind: ErrInvalidTypeSyntax, Input: input}
}

// IsKind reports whether err carries a ParseError of the given kind.
func IsKind(err error, kind ParseKind) bool {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// KindOf returns the ParseKind in err's chain, or 0.
func KindOf(err error) ParseKind {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
