package types

import (
	"fmt"
	"strings"
)

// Kind tags a type model node.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindFloat
	KindString
	KindResource
	KindCallable
	KindVoid
	KindNull
	KindObject
	KindMixed
	KindNumber
	KindIterable
	KindClass
	KindArray
)

var kindNames = [...]string{
	KindBool:     "bool",
	KindInt:      "int",
	KindFloat:    "float",
	KindString:   "string",
	KindResource: "resource",
	KindCallable: "callable",
	KindVoid:     "void",
	KindNull:     "null",
	KindObject:   "object",
	KindMixed:    "mixed",
	KindNumber:   "number",
	KindIterable: "iterable",
	KindClass:    "class",
	KindArray:    "array",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsPrimitive reports whether k is one of the fixed primitive tags.
func (k Kind) IsPrimitive() bool {
	return k >= KindBool && k <= KindIterable
}

// primitiveAliases maps every accepted primitive spelling to its tag.
var primitiveAliases = map[string]Kind{
	"bool":     KindBool,
	"boolean":  KindBool,
	"true":     KindBool,
	"false":    KindBool,
	"int":      KindInt,
	"integer":  KindInt,
	"float":    KindFloat,
	"double":   KindFloat,
	"string":   KindString,
	"resource": KindResource,
	"callable": KindCallable,
	"callback": KindCallable,
	"void":     KindVoid,
	"null":     KindNull,
	"object":   KindObject,
	"mixed":    KindMixed,
	"number":   KindNumber,
	"iterable": KindIterable,
}

// Type is a parsed type annotation. Nodes are immutable.
type Type interface {
	Kind() Kind
	// Name is the canonical name: the primitive keyword, the class name as
	// written, or "array".
	Name() string
	AllowsNull() bool
	// String renders the annotation form, which parses back to an equal type.
	String() string
}

type Primitive struct {
	kind     Kind
	nullable bool
}

func (p *Primitive) Kind() Kind       { return p.kind }
func (p *Primitive) Name() string     { return p.kind.String() }
func (p *Primitive) AllowsNull() bool { return p.nullable }
func (p *Primitive) String() string   { return nullPrefix(p.nullable) + p.Name() }

// Class is a reference to a named class, interface or other user type. The
// name is kept verbatim; resolving it against imports is up to the caller.
type Class struct {
	name     string
	nullable bool
}

func (c *Class) Kind() Kind       { return KindClass }
func (c *Class) Name() string     { return c.name }
func (c *Class) AllowsNull() bool { return c.nullable }
func (c *Class) String() string   { return nullPrefix(c.nullable) + c.name }

// Array is an array of Dims dimensions. Elem is never an array.
type Array struct {
	elem     Type
	dims     int
	nullable bool
}

func (a *Array) Kind() Kind       { return KindArray }
func (a *Array) Name() string     { return "array" }
func (a *Array) AllowsNull() bool { return a.nullable }
func (a *Array) Elem() Type       { return a.elem }
func (a *Array) Dims() int        { return a.dims }

func (a *Array) String() string {
	return nullPrefix(a.nullable) + a.elem.String() + strings.Repeat("[]", a.dims)
}

func nullPrefix(nullable bool) string {
	if nullable {
		return "?"
	}
	return ""
}

// Equal reports whether a and b are structurally equal.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind() != b.Kind() || a.AllowsNull() != b.AllowsNull() || a.Name() != b.Name() {
		return false
	}
	aa, ok := a.(*Array)
	if !ok {
		return true
	}
	ba := b.(*Array)
	return aa.dims == ba.dims && Equal(aa.elem, ba.elem)
}
