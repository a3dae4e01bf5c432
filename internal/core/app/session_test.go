package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nsref/internal/core/config"
	"nsref/internal/core/errors"
	"nsref/internal/data/store"
	"nsref/internal/engine/imports"
	"nsref/internal/shared/observability"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const controllerSrc = `<?php
namespace App\Http;

use App\Models\User;
use App\Models\{Post, Comment as Reply};
use function App\helpers\render;

class Controller {}

interface Action {}

function helper() {}
`

const brokenSrc = `<?php
namespace App\Http;

use A\B as C;
use X\Y as C;
`

const otherSrc = `<?php
namespace App\Other;

class Elsewhere {}
`

type project struct {
	root       string
	controller string
	broken     string
	other      string
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newProject(t *testing.T) project {
	t.Helper()
	root := t.TempDir()
	p := project{
		root:       root,
		controller: filepath.Join(root, "src", "Http", "Controller.php"),
		broken:     filepath.Join(root, "src", "Http", "Broken.php"),
		other:      filepath.Join(root, "src", "Http", "Other.php"),
	}
	writeFile(t, p.controller, controllerSrc)
	writeFile(t, p.broken, brokenSrc)
	writeFile(t, p.other, otherSrc)
	writeFile(t, filepath.Join(root, "src", "Http", "notes.txt"), "not php")
	writeFile(t, filepath.Join(root, "src", "vendor", "Lib.php"), "<?php\nclass Lib {}\n")
	return p
}

func (p project) config() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Namespaces = []config.NamespaceMapping{{Prefix: "App", Dirs: []string{filepath.Join(p.root, "src")}}}
	return cfg
}

func newTestSession(t *testing.T, cfg *config.Config) *Session {
	t.Helper()
	s, err := NewSession(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSession_ScanFile(t *testing.T) {
	p := newProject(t)
	s := newTestSession(t, p.config())
	ctx := context.Background()

	mod, err := s.ScanFile(ctx, p.controller)
	require.NoError(t, err)
	table := mod.Table(`App\Http`)
	require.NotNil(t, table)
	if diff := cmp.Diff(map[string]string{
		"User":  `App\Models\User`,
		"Post":  `App\Models\Post`,
		"Reply": `App\Models\Comment`,
	}, table.Types); diff != "" {
		t.Errorf("types mismatch (-want +got):\n%s", diff)
	}

	again, err := s.ScanFile(ctx, p.controller)
	require.NoError(t, err)
	assert.Same(t, mod, again)
	assert.Equal(t, uint64(1), s.CacheStats().Hits)

	writeFile(t, p.controller, strings.Replace(controllerSrc, `App\Models\User`, `Domain\User`, 1))
	changed, err := s.ScanFile(ctx, p.controller)
	require.NoError(t, err)
	assert.NotSame(t, mod, changed)
	target, _ := changed.Table(`App\Http`).Lookup(imports.KindType, "User")
	assert.Equal(t, `Domain\User`, target)
}

func TestSession_ScanFileErrors(t *testing.T) {
	p := newProject(t)
	s := newTestSession(t, p.config())

	before := testutil.ToFloat64(observability.ParseErrorsTotal.WithLabelValues("duplicate_alias"))
	_, err := s.ScanFile(context.Background(), p.broken)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeParse))
	assert.True(t, errors.IsKind(err, errors.ErrDuplicateAlias))
	assert.Contains(t, err.Error(), p.broken)
	assert.Equal(t, before+1, testutil.ToFloat64(observability.ParseErrorsTotal.WithLabelValues("duplicate_alias")))

	_, err = s.ScanFile(context.Background(), filepath.Join(p.root, "missing.php"))
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.ScanFile(ctx, p.controller)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSession_Resolve(t *testing.T) {
	p := newProject(t)
	s := newTestSession(t, p.config())
	ctx := context.Background()

	cases := []struct {
		kind imports.Kind
		name string
		want string
	}{
		{imports.KindType, "User", `App\Models\User`},
		{imports.KindType, "Reply", `App\Models\Comment`},
		{imports.KindType, `Reply\Attachment`, `App\Models\Comment\Attachment`},
		{imports.KindType, "Unknown", `App\Http\Unknown`},
		{imports.KindType, `\Exception`, "Exception"},
		{imports.KindType, `namespace\Sub\Thing`, `App\Http\Sub\Thing`},
		{imports.KindFunction, "render", `App\helpers\render`},
		{imports.KindConst, "LIMIT", `App\Http\LIMIT`},
	}
	for _, tc := range cases {
		got, err := s.ResolveKind(ctx, tc.kind, p.controller, `App\Http`, tc.name)
		require.NoError(t, err)
		assert.Equalf(t, tc.want, got, "%s %s", tc.kind, tc.name)
	}

	got, err := s.Resolve(ctx, p.controller, `App\Elsewhere`, "User")
	require.NoError(t, err)
	assert.Equal(t, `App\Elsewhere\User`, got, "namespace without a table resolves relative to it")

	_, err = s.Resolve(ctx, p.broken, `App\Http`, "C")
	assert.True(t, errors.IsCode(err, errors.CodeParse))
}

func TestSession_ResolveType(t *testing.T) {
	p := newProject(t)
	s := newTestSession(t, p.config())
	ctx := context.Background()

	cases := map[string]string{
		"User":          `App\Models\User`,
		"?User":         `?App\Models\User`,
		"?Reply[][]":    `?App\Models\Comment[][]`,
		"Missing":       `App\Http\Missing`,
		`\DateTime`:     "DateTime",
		"self":          "self",
		"static[]":      "static[]",
		"?int":          "?int",
		"array":         "mixed[]",
		"boolean[]":     "bool[]",
	}
	for expr, want := range cases {
		got, err := s.ResolveType(ctx, p.controller, `App\Http`, expr)
		require.NoErrorf(t, err, "expr %q", expr)
		assert.Equalf(t, want, got.String(), "expr %q", expr)
	}

	user, err := s.ResolveType(ctx, p.controller, `App\Http`, "User")
	require.NoError(t, err)
	direct, err := s.ParseType(`App\Models\User`)
	require.NoError(t, err)
	assert.Same(t, direct, user, "resolved class names are interned")

	// Primitives never need the module.
	got, err := s.ResolveType(ctx, filepath.Join(p.root, "missing.php"), `App\Http`, "float[]")
	require.NoError(t, err)
	assert.Equal(t, "float[]", got.String())
}

func TestSession_ParseTypeErrors(t *testing.T) {
	s := newTestSession(t, config.DefaultConfig())
	for _, expr := range []string{"", "?", "int[", "Foo\\", "1abc"} {
		_, err := s.ParseType(expr)
		require.Errorf(t, err, "expr %q", expr)
		assert.True(t, errors.IsCode(err, errors.CodeParse))
		assert.True(t, errors.IsKind(err, errors.ErrInvalidTypeSyntax))
	}
}

func TestSession_ScanNamespace(t *testing.T) {
	p := newProject(t)
	s := newTestSession(t, p.config())

	res, err := s.ScanNamespace(context.Background(), `\App\Http\`)
	require.NoError(t, err)
	assert.Equal(t, `App\Http`, res.Namespace)
	assert.Equal(t, []string{p.broken, p.controller, p.other}, res.Files)
	assert.Equal(t, []FoundDeclaration{
		{Path: p.controller, Kind: imports.DeclInterface, Name: `App\Http\Action`, Line: 10},
		{Path: p.controller, Kind: imports.DeclClass, Name: `App\Http\Controller`, Line: 8},
	}, res.Declarations)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Broken.php")

	res, err = s.ScanNamespace(context.Background(), `App\Nowhere`)
	require.NoError(t, err)
	assert.Empty(t, res.Files)
	assert.Empty(t, res.Declarations)
}

func TestSession_StoreTier(t *testing.T) {
	p := newProject(t)
	cfg := p.config()
	cfg.DB.Enabled = true
	cfg.DB.Path = filepath.Join(p.root, "state", "modules.db")

	first, err := NewSession(cfg)
	require.NoError(t, err)
	_, err = first.ScanFile(context.Background(), p.controller)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	storeHits := observability.ModuleCacheHitsTotal.WithLabelValues("store")
	before := testutil.ToFloat64(storeHits)

	second := newTestSession(t, cfg)
	mod, err := second.ScanFile(context.Background(), p.controller)
	require.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(storeHits))
	target, ok := mod.Table(`App\Http`).Lookup(imports.KindType, "Reply")
	assert.True(t, ok)
	assert.Equal(t, `App\Models\Comment`, target)
	assert.NotEqual(t, first.ID(), second.ID())
}

func TestSession_InvalidateAndSync(t *testing.T) {
	p := newProject(t)
	cfg := p.config()
	cfg.DB.Enabled = true
	cfg.DB.Path = filepath.Join(p.root, "state", "modules.db")
	s := newTestSession(t, cfg)
	ctx := context.Background()

	res, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Files, "vendor is excluded by default and notes.txt is not source")
	assert.Equal(t, 2, res.Modules)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, 2, s.modules.Len())

	st := s.store.(*store.Store)
	paths, err := st.Paths()
	require.NoError(t, err)
	assert.Equal(t, []string{p.controller, p.other}, paths)

	require.NoError(t, s.Invalidate(p.controller))
	assert.Equal(t, 1, s.modules.Len())
	paths, err = st.Paths()
	require.NoError(t, err)
	assert.Equal(t, []string{p.other}, paths)

	require.NoError(t, os.Remove(p.other))
	_, err = s.Sync(ctx)
	require.NoError(t, err)
	paths, err = st.Paths()
	require.NoError(t, err)
	assert.Equal(t, []string{p.controller}, paths)

	require.NoError(t, s.InvalidateAll())
	assert.Equal(t, 0, s.modules.Len())
	paths, err = st.Paths()
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestSession_TreeSitterBackend(t *testing.T) {
	p := newProject(t)
	cfg := p.config()
	cfg.Tokenizer.Backend = config.BackendTreeSitter
	s := newTestSession(t, cfg)

	got, err := s.Resolve(context.Background(), p.controller, `App\Http`, "Reply")
	require.NoError(t, err)
	assert.Equal(t, `App\Models\Comment`, got)
}

func TestNewSession_Errors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Tokenizer.Backend = "regex"
	_, err := NewSession(cfg)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))

	cfg = config.DefaultConfig()
	cfg.Composer = filepath.Join(t.TempDir(), "composer.json")
	_, err = NewSession(cfg)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))

	s, err := NewSession(nil)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID())
	assert.NoError(t, s.Close())
}
