package app

import (
	"context"
	"strings"

	"nsref/internal/core/errors"
	"nsref/internal/engine/imports"
	"nsref/internal/engine/resolver"
	"nsref/internal/engine/types"
	"nsref/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
)

// Resolve returns the fully-qualified class name that name denotes inside
// namespace of the module at path.
func (s *Session) Resolve(ctx context.Context, path, namespace, name string) (string, error) {
	return s.ResolveKind(ctx, imports.KindType, path, namespace, name)
}

// ResolveKind is Resolve for function and constant names as well.
func (s *Session) ResolveKind(ctx context.Context, kind imports.Kind, path, namespace, name string) (string, error) {
	ctx, span := s.startSpan(ctx, "Session.Resolve",
		attribute.String("path", path),
		attribute.String("namespace", namespace),
		attribute.String("kind", kind.String()),
	)
	defer span.End()

	mod, err := s.ScanFile(ctx, path)
	if err != nil {
		return "", errors.AddContext(err, errors.CtxSymbol, name)
	}
	r := resolver.New(mod)
	switch kind {
	case imports.KindFunction:
		return r.ResolveFunction(name, namespace), nil
	case imports.KindConst:
		return r.ResolveConstant(name, namespace), nil
	}
	return r.Resolve(name, namespace), nil
}

// ParseType parses a type annotation through the session's registry.
func (s *Session) ParseType(expr string) (types.Type, error) {
	t, err := s.types.Parse(expr)
	observability.InternedTypes.Set(float64(s.types.Len()))
	if err != nil {
		observability.ParseErrorsTotal.WithLabelValues(errors.KindOf(err).String()).Inc()
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeParse, "parse type"), errors.CtxSymbol, expr)
	}
	return t, nil
}

// ResolveType parses expr and resolves its class names against the imports
// of namespace in the module at path. self, static and parent are left as
// written.
func (s *Session) ResolveType(ctx context.Context, path, namespace, expr string) (types.Type, error) {
	t, err := s.ParseType(expr)
	if err != nil {
		return nil, err
	}
	if !mentionsClass(t) {
		return t, nil
	}
	mod, err := s.ScanFile(ctx, path)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxSymbol, expr)
	}
	resolved := s.qualifyType(resolver.New(mod), namespace, t)
	observability.InternedTypes.Set(float64(s.types.Len()))
	return resolved, nil
}

func mentionsClass(t types.Type) bool {
	if arr, ok := t.(*types.Array); ok {
		return arr.Elem().Kind() == types.KindClass
	}
	return t.Kind() == types.KindClass
}

func (s *Session) qualifyType(r *resolver.Resolver, namespace string, t types.Type) types.Type {
	switch v := t.(type) {
	case *types.Array:
		elem := s.qualifyType(r, namespace, v.Elem())
		if elem == v.Elem() {
			return v
		}
		return s.types.Array(elem, v.Dims(), v.AllowsNull())
	case *types.Class:
		if isRelativeClass(v.Name()) {
			return v
		}
		return s.types.Class(r.Resolve(v.Name(), namespace), v.AllowsNull())
	}
	return t
}

func isRelativeClass(name string) bool {
	switch strings.ToLower(name) {
	case "self", "static", "parent":
		return true
	}
	return false
}
