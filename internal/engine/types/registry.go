package types

import (
	"regexp"
	"strings"
	"sync"

	"nsref/internal/core/errors"
)

var (
	classNamePattern = regexp.MustCompile(`^\\?([a-zA-Z_\x{7f}-\x{10FFFF}][a-zA-Z0-9_\x{7f}-\x{10FFFF}]*\\)*[a-zA-Z_\x{7f}-\x{10FFFF}][a-zA-Z0-9_\x{7f}-\x{10FFFF}]*$`)
	arraySuffix      = regexp.MustCompile(`(\[\])+$`)
)

type key struct {
	name     string
	nullable bool
}

// Registry parses type annotations and interns their leaf nodes, so two
// requests for the same primitive or class name with the same nullability
// return the same instance. Array nodes other than the bare "array" are
// built fresh on every parse. A Registry is safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	types map[key]Type
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[key]Type)}
}

// Parse parses an annotation such as "int", "?Foo\Bar", "string[][]" or
// "array".
func (r *Registry) Parse(text string) (Type, error) {
	if text == "" {
		return nil, errors.InvalidTypeSyntax(text)
	}
	body, nullable := text, false
	if body[0] == '?' {
		body, nullable = body[1:], true
	}
	t, ok := r.parse(body, nullable)
	if !ok {
		return nil, errors.InvalidTypeSyntax(text)
	}
	return t, nil
}

func (r *Registry) parse(body string, nullable bool) (Type, bool) {
	if suffix := arraySuffix.FindString(body); suffix != "" {
		elem, ok := r.parse(body[:len(body)-len(suffix)], false)
		if !ok {
			return nil, false
		}
		return r.Array(elem, len(suffix)/2, nullable), true
	}
	if !classNamePattern.MatchString(body) {
		return nil, false
	}
	return r.intern(body, nullable), true
}

// MustParse is like Parse but panics on malformed input. It is meant for
// annotations known at compile time.
func (r *Registry) MustParse(text string) Type {
	t, err := r.Parse(text)
	if err != nil {
		panic(err)
	}
	return t
}

// Primitive returns the interned primitive of kind.
func (r *Registry) Primitive(kind Kind, nullable bool) Type {
	if !kind.IsPrimitive() {
		return nil
	}
	return r.intern(kind.String(), nullable)
}

// Class returns the interned class reference for name. Primitive keywords
// and "array" yield their own nodes.
func (r *Registry) Class(name string, nullable bool) Type {
	return r.intern(name, nullable)
}

// Array builds an array of elem. An array element is flattened into the
// result, adding its dimensions.
func (r *Registry) Array(elem Type, dims int, nullable bool) *Array {
	if dims < 1 {
		dims = 1
	}
	if inner, ok := elem.(*Array); ok {
		return &Array{elem: inner.elem, dims: inner.dims + dims, nullable: nullable}
	}
	return &Array{elem: elem, dims: dims, nullable: nullable}
}

// Len returns the number of interned nodes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.types)
}

func (r *Registry) intern(name string, nullable bool) Type {
	canonical := name
	kind, primitive := primitiveAliases[name]
	if primitive {
		canonical = kind.String()
	}
	k := key{name: canonical, nullable: nullable}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.types[k]; ok {
		return t
	}

	var t Type
	switch {
	case primitive:
		t = &Primitive{kind: kind, nullable: nullable}
	case name == "array":
		t = &Array{elem: r.internLocked(KindMixed), dims: 1, nullable: nullable}
	default:
		t = &Class{name: strings.Clone(name), nullable: nullable}
	}
	r.types[k] = t
	return t
}

// internLocked returns the non-nullable primitive of kind. r.mu must be held.
func (r *Registry) internLocked(kind Kind) Type {
	k := key{name: kind.String()}
	if t, ok := r.types[k]; ok {
		return t
	}
	t := &Primitive{kind: kind}
	r.types[k] = t
	return t
}
