package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"nsref/internal/core/app"
	"nsref/internal/engine/imports"
	"nsref/internal/engine/lexer"
	"nsref/internal/engine/types"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const source = `<?php
namespace App\Http;

use Foo\Bar as Baz;
use function Lib\helper;

final class Controller {}

namespace App\Empty;
`

func module(t *testing.T) *imports.Module {
	t.Helper()
	mod, err := imports.Scan("Controller.php", lexer.Tokenize([]byte(source)))
	require.NoError(t, err)
	return mod
}

func TestModuleOf(t *testing.T) {
	want := ModuleView{
		Path: "Controller.php",
		Namespaces: []TableView{
			{
				Namespace: `App\Http`,
				Imports: []ImportView{
					{Kind: "type", Alias: "Baz", Target: `Foo\Bar`, Line: 4},
					{Kind: "function", Alias: "helper", Target: `Lib\helper`, Line: 5},
				},
				Declarations: []DeclarationView{{Kind: "class", Name: `App\Http\Controller`, Line: 7}},
			},
			{Namespace: `App\Empty`, Imports: []ImportView{}, Declarations: []DeclarationView{}},
		},
	}
	if diff := cmp.Diff(want, ModuleOf(module(t))); diff != "" {
		t.Errorf("module view mismatch (-want +got):\n%s", diff)
	}
}

func TestTypeOf(t *testing.T) {
	reg := types.NewRegistry()
	assert.Equal(t, TypeView{Expr: "?int[][]", Type: "?int[][]", Kind: "array", Nullable: true, Elem: "int", Dims: 2},
		TypeOf("?int[][]", reg.MustParse("?int[][]")))
	assert.Equal(t, TypeView{Expr: "Foo", Type: "Foo", Kind: "class"}, TypeOf("Foo", reg.MustParse("Foo")))
}

func TestRenderer_Text(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewRenderer(&buf, "")
	require.NoError(t, err)
	assert.Equal(t, FormatText, r.Format())

	require.NoError(t, r.Render(ModuleOf(module(t))))
	out := buf.String()
	assert.NotContains(t, out, "\x1b[", "no colours when not writing to a terminal")
	for _, want := range []string{"Controller.php", `namespace App\Http`, "use type", `=> Foo\Bar`, `App\Http\Controller`, "(empty)"} {
		assert.Contains(t, out, want)
	}

	buf.Reset()
	require.NoError(t, r.Render(Resolution{Resolved: `App\Models\User`}))
	assert.Equal(t, "App\\Models\\User\n", buf.String())

	buf.Reset()
	require.NoError(t, r.Render(&app.NamespaceScan{
		Namespace:    `App\Http`,
		Files:        []string{"a.php"},
		Declarations: []app.FoundDeclaration{{Path: "a.php", Kind: imports.DeclClass, Name: `App\Http\A`, Line: 3}},
		Warnings:     []string{"b.php: broken"},
	}))
	out = buf.String()
	assert.Contains(t, out, "1 files")
	assert.Contains(t, out, "a.php:3")
	assert.Contains(t, out, "warning: b.php: broken")

	buf.Reset()
	require.NoError(t, r.Render(ChangeBatch{Paths: []string{"a.php", "b.php"}, Rescanned: 1, Removed: 1}))
	assert.True(t, strings.HasPrefix(buf.String(), "update 2 changed, 1 rescanned, 1 removed"))

	assert.Error(t, r.Render(42))
}

func TestRenderer_JSON(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewRenderer(&buf, "JSON")
	require.NoError(t, err)

	view := ModuleOf(module(t))
	require.NoError(t, r.Render(view))

	var decoded ModuleView
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, view, decoded)
}

func TestRenderer_YAML(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewRenderer(&buf, "yaml")
	require.NoError(t, err)

	require.NoError(t, r.Render(Resolution{Path: "a.php", Namespace: "App", Kind: "type", Name: "User", Resolved: `App\User`}))
	var decoded map[string]string
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, `App\User`, decoded["resolved"])
	assert.Equal(t, "User", decoded["name"])
}

func TestNewRenderer_UnknownFormat(t *testing.T) {
	_, err := NewRenderer(&bytes.Buffer{}, "xml")
	assert.Error(t, err)
}
