package report

import (
	"nsref/internal/engine/imports"
	"nsref/internal/engine/types"
)

type ImportView struct {
	Kind   string `json:"kind" yaml:"kind"`
	Alias  string `json:"alias" yaml:"alias"`
	Target string `json:"target" yaml:"target"`
	Line   int    `json:"line" yaml:"line"`
}

type DeclarationView struct {
	Kind string `json:"kind" yaml:"kind"`
	Name string `json:"name" yaml:"name"`
	Line int    `json:"line" yaml:"line"`
}

type TableView struct {
	Namespace    string            `json:"namespace" yaml:"namespace"`
	Imports      []ImportView      `json:"imports" yaml:"imports"`
	Declarations []DeclarationView `json:"declarations" yaml:"declarations"`
}

type ModuleView struct {
	Path       string      `json:"path" yaml:"path"`
	Namespaces []TableView `json:"namespaces" yaml:"namespaces"`
}

// ModuleOf flattens a module's tables in source order. Imports are listed
// by kind, then alias; declaration names are fully qualified.
func ModuleOf(mod *imports.Module) ModuleView {
	view := ModuleView{Path: mod.Path, Namespaces: make([]TableView, 0, len(mod.Tables))}
	for _, tbl := range mod.Tables {
		tv := TableView{
			Namespace:    tbl.Namespace,
			Imports:      []ImportView{},
			Declarations: []DeclarationView{},
		}
		for _, kind := range []imports.Kind{imports.KindType, imports.KindFunction, imports.KindConst} {
			for _, imp := range tbl.Imports(kind) {
				tv.Imports = append(tv.Imports, ImportView{Kind: kind.String(), Alias: imp.Alias, Target: imp.Name, Line: imp.Line})
			}
		}
		for _, d := range tbl.Declarations {
			tv.Declarations = append(tv.Declarations, DeclarationView{Kind: string(d.Kind), Name: tbl.Qualify(d.Name), Line: d.Line})
		}
		view.Namespaces = append(view.Namespaces, tv)
	}
	return view
}

// Resolution is the answer to one resolve request.
type Resolution struct {
	Path      string `json:"path" yaml:"path"`
	Namespace string `json:"namespace" yaml:"namespace"`
	Kind      string `json:"kind" yaml:"kind"`
	Name      string `json:"name" yaml:"name"`
	Resolved  string `json:"resolved" yaml:"resolved"`
}

type TypeView struct {
	Expr     string `json:"expr" yaml:"expr"`
	Type     string `json:"type" yaml:"type"`
	Kind     string `json:"kind" yaml:"kind"`
	Nullable bool   `json:"nullable" yaml:"nullable"`
	Elem     string `json:"elem,omitempty" yaml:"elem,omitempty"`
	Dims     int    `json:"dims,omitempty" yaml:"dims,omitempty"`
}

func TypeOf(expr string, t types.Type) TypeView {
	view := TypeView{Expr: expr, Type: t.String(), Kind: t.Kind().String(), Nullable: t.AllowsNull()}
	if arr, ok := t.(*types.Array); ok {
		view.Elem = arr.Elem().String()
		view.Dims = arr.Dims()
	}
	return view
}

// ChangeBatch reports one watch-mode rescan.
type ChangeBatch struct {
	Paths     []string `json:"paths" yaml:"paths"`
	Rescanned int      `json:"rescanned" yaml:"rescanned"`
	Removed   int      `json:"removed" yaml:"removed"`
	Failures  []string `json:"failures,omitempty" yaml:"failures,omitempty"`
}
