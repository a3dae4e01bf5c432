package imports

import (
	"fmt"
	"sort"
	"strings"

	"nsref/internal/core/errors"
	"nsref/internal/engine/token"
)

// Kind is the import kind of a use statement.
type Kind int

const (
	KindType Kind = iota
	KindFunction
	KindConst
)

func (k Kind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindFunction:
		return "function"
	case KindConst:
		return "const"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps the textual kind back, as stored by the persistence layer.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "type":
		return KindType, true
	case "function":
		return KindFunction, true
	case "const":
		return KindConst, true
	}
	return 0, false
}

type Import struct {
	Alias string
	Name  string // fully-qualified target without leading separator
	Line  int
}

type DeclarationKind string

const (
	DeclClass     DeclarationKind = "class"
	DeclInterface DeclarationKind = "interface"
	DeclTrait     DeclarationKind = "trait"
	DeclEnum      DeclarationKind = "enum"
	DeclFunction  DeclarationKind = "function"
)

type Declaration struct {
	Kind DeclarationKind
	Name string
	Line int
}

// Table is the import table of one namespace of a module.
type Table struct {
	Namespace    string // canonical: no leading or trailing separator, "" = global
	Types        map[string]string
	Functions    map[string]string
	Constants    map[string]string
	Declarations []Declaration

	lines    map[Kind]map[string]int
	declared bool
}

func NewTable(namespace string) *Table {
	return &Table{
		Namespace: NormalizeNamespace(namespace),
		Types:     make(map[string]string),
		Functions: make(map[string]string),
		Constants: make(map[string]string),
		lines:     make(map[Kind]map[string]int),
	}
}

// NormalizeNamespace strips leading and trailing separators.
func NormalizeNamespace(ns string) string {
	return strings.Trim(strings.TrimSpace(ns), token.NamespaceSeparator)
}

// Prefix returns the namespace with a trailing separator, or "" for the
// global namespace.
func (t *Table) Prefix() string {
	if t.Namespace == "" {
		return ""
	}
	return t.Namespace + token.NamespaceSeparator
}

// Qualify prefixes name with the table's namespace.
func (t *Table) Qualify(name string) string {
	return t.Prefix() + name
}

func (t *Table) Aliases(kind Kind) map[string]string {
	switch kind {
	case KindFunction:
		return t.Functions
	case KindConst:
		return t.Constants
	}
	return t.Types
}

func (t *Table) Lookup(kind Kind, alias string) (string, bool) {
	name, ok := t.Aliases(kind)[alias]
	return name, ok
}

// Add registers an import. Re-importing an alias for the same target is
// accepted; a different target is a DuplicateAlias error.
func (t *Table) Add(kind Kind, imp Import) error {
	aliases := t.Aliases(kind)
	if prev, ok := aliases[imp.Alias]; ok {
		if prev == imp.Name {
			return nil
		}
		return errors.DuplicateAlias(imp.Line, imp.Alias, imp.Name, prev)
	}
	aliases[imp.Alias] = imp.Name
	if t.lines[kind] == nil {
		t.lines[kind] = make(map[string]int)
	}
	t.lines[kind][imp.Alias] = imp.Line
	return nil
}

// Imports lists the imports of kind sorted by alias.
func (t *Table) Imports(kind Kind) []Import {
	aliases := t.Aliases(kind)
	out := make([]Import, 0, len(aliases))
	for alias, name := range aliases {
		out = append(out, Import{Alias: alias, Name: name, Line: t.lines[kind][alias]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}

func (t *Table) Declare(decl Declaration) {
	t.Declarations = append(t.Declarations, decl)
}

// Empty reports whether the table holds no imports and no declarations.
func (t *Table) Empty() bool {
	return len(t.Types) == 0 && len(t.Functions) == 0 && len(t.Constants) == 0 && len(t.Declarations) == 0
}

// Module holds the tables of every namespace declared by one source module.
type Module struct {
	Path   string
	Tables []*Table
	index  map[string]*Table
}

func NewModule(path string) *Module {
	return &Module{Path: path, index: make(map[string]*Table)}
}

// Table returns the table declared for namespace, or nil.
func (m *Module) Table(namespace string) *Table {
	return m.index[NormalizeNamespace(namespace)]
}

// Ensure returns the table for namespace, creating it on first use.
func (m *Module) Ensure(namespace string) *Table {
	ns := NormalizeNamespace(namespace)
	if t, ok := m.index[ns]; ok {
		return t
	}
	t := NewTable(ns)
	m.index[ns] = t
	m.Tables = append(m.Tables, t)
	return t
}

func (m *Module) Namespaces() []string {
	out := make([]string, 0, len(m.Tables))
	for _, t := range m.Tables {
		out = append(out, t.Namespace)
	}
	return out
}

// Declarations returns every declaration qualified with its namespace.
func (m *Module) Declarations() []Declaration {
	var out []Declaration
	for _, t := range m.Tables {
		for _, d := range t.Declarations {
			d.Name = t.Qualify(d.Name)
			out = append(out, d)
		}
	}
	return out
}

func (m *Module) drop(t *Table) {
	delete(m.index, t.Namespace)
	for i, candidate := range m.Tables {
		if candidate == t {
			m.Tables = append(m.Tables[:i], m.Tables[i+1:]...)
			return
		}
	}
}
