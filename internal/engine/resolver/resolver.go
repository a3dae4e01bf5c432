package resolver

import (
	"strings"

	"nsref/internal/engine/imports"
	"nsref/internal/engine/token"
)

const relativePrefix = "namespace" + token.NamespaceSeparator

// Resolver turns names used inside one module into fully-qualified names.
// It is a pure string transformation over the module's import tables: no
// file or class existence checks are made and resolution never fails.
type Resolver struct {
	module *imports.Module
}

func New(module *imports.Module) *Resolver {
	return &Resolver{module: module}
}

func (r *Resolver) Module() *imports.Module {
	return r.module
}

// Resolve resolves a class-like name appearing in namespace.
func (r *Resolver) Resolve(name, namespace string) string {
	return r.resolve(imports.KindType, name, namespace)
}

// ResolveFunction resolves a function name. Unqualified names are looked up
// in the function imports, qualified ones follow the class rules.
func (r *Resolver) ResolveFunction(name, namespace string) string {
	return r.resolve(imports.KindFunction, name, namespace)
}

// ResolveConstant resolves a constant name like ResolveFunction does.
func (r *Resolver) ResolveConstant(name, namespace string) string {
	return r.resolve(imports.KindConst, name, namespace)
}

func (r *Resolver) resolve(kind imports.Kind, name, namespace string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, token.NamespaceSeparator) {
		return strings.TrimPrefix(name, token.NamespaceSeparator)
	}
	if len(name) > len(relativePrefix) && strings.EqualFold(name[:len(relativePrefix)], relativePrefix) {
		return qualify(namespace, name[len(relativePrefix):])
	}

	head, rest, qualified := strings.Cut(name, token.NamespaceSeparator)
	if !qualified {
		if target, ok := r.lookup(kind, namespace, head); ok {
			return target
		}
		return qualify(namespace, name)
	}
	if target, ok := r.lookup(imports.KindType, namespace, head); ok {
		return target + token.NamespaceSeparator + rest
	}
	return qualify(namespace, name)
}

func (r *Resolver) lookup(kind imports.Kind, namespace, alias string) (string, bool) {
	if r.module == nil {
		return "", false
	}
	table := r.module.Table(namespace)
	if table == nil {
		return "", false
	}
	return table.Lookup(kind, alias)
}

func qualify(namespace, name string) string {
	if ns := imports.NormalizeNamespace(namespace); ns != "" {
		return ns + token.NamespaceSeparator + name
	}
	return name
}
