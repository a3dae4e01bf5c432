package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"nsref/internal/core/app"
	"nsref/internal/core/config"
	"nsref/internal/engine/imports"
	"nsref/internal/ui/report"

	"gopkg.in/yaml.v3"
)

type command struct {
	session *app.Session
	cfg     *config.Config
	out     *report.Renderer
	stderr  io.Writer
}

func (c *command) dispatch(ctx context.Context, name string, args []string) error {
	switch name {
	case "imports":
		return c.imports(ctx, args)
	case "resolve":
		return c.resolve(ctx, args)
	case "type":
		return c.typeExpr(ctx, args)
	case "scan":
		return c.scan(ctx, args)
	case "filter":
		return c.filter(args)
	case "sync":
		return c.sync(ctx, args)
	case "watch":
		return c.watch(ctx, args)
	}
	fmt.Fprintf(c.stderr, "unknown command %q\n", name)
	return errUsage
}

func (c *command) imports(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	mod, err := c.session.ScanFile(ctx, args[0])
	if err != nil {
		return err
	}
	return c.out.Render(report.ModuleOf(mod))
}

func (c *command) resolve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	kindName := fs.String("kind", "type", "Name kind: type, function or const")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	kind, ok := imports.ParseKind(*kindName)
	if !ok {
		fmt.Fprintf(c.stderr, "unknown kind %q\n", *kindName)
		return errUsage
	}
	if fs.NArg() != 3 {
		return errUsage
	}
	path, ns, name := fs.Arg(0), fs.Arg(1), fs.Arg(2)
	resolved, err := c.session.ResolveKind(ctx, kind, path, ns, name)
	if err != nil {
		return err
	}
	return c.out.Render(report.Resolution{
		Path:      path,
		Namespace: imports.NormalizeNamespace(ns),
		Kind:      kind.String(),
		Name:      name,
		Resolved:  resolved,
	})
}

func (c *command) typeExpr(ctx context.Context, args []string) error {
	switch len(args) {
	case 1:
		t, err := c.session.ParseType(args[0])
		if err != nil {
			return err
		}
		return c.out.Render(report.TypeOf(args[0], t))
	case 3:
		t, err := c.session.ResolveType(ctx, args[1], args[2], args[0])
		if err != nil {
			return err
		}
		return c.out.Render(report.TypeOf(args[0], t))
	}
	return errUsage
}

func (c *command) scan(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	res, err := c.session.ScanNamespace(ctx, args[0])
	if err != nil {
		return err
	}
	return c.out.Render(res)
}

func (c *command) sync(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	res, err := c.session.Sync(ctx)
	if err != nil {
		return err
	}
	return c.out.Render(res)
}

// filter decodes the value argument as a YAML scalar or collection, so
// "1" is an int, "[1, x]" a list and "~" null.
func (c *command) filter(args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	var value any
	if err := yaml.Unmarshal([]byte(args[1]), &value); err != nil {
		return fmt.Errorf("decode value %q: %w", args[1], err)
	}
	res, err := c.session.FilterValue(args[0], value)
	if err != nil {
		return err
	}
	return c.out.Render(res)
}
