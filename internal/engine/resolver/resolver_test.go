package resolver

import (
	"testing"

	"nsref/internal/engine/imports"
	"nsref/internal/engine/lexer"
)

func mustScan(t *testing.T, src string) *Resolver {
	t.Helper()
	mod, err := imports.Scan("fixture.php", lexer.Tokenize([]byte(src)))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	return New(mod)
}

const dummyClass = `<?php
namespace kuiper\reflection\fixtures;

class DummyClass implements DummyInterface
{
}
`

const dummyInterface = `<?php
namespace kuiper\reflection\fixtures;

use kuiper\reflection\ReflectionFile;

interface DummyInterface
{
    public function getFile(): ReflectionFile;
}
`

const multipleNamespaces = `<?php
namespace NamespaceA {
    class ClassA {}
}

namespace NamespaceB {
    use NamespaceA\ClassA;
    class ClassB extends ClassA {}
}

namespace {
    class ClassC {}
}
`

func TestResolve_Fixtures(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		short     string
		namespace string
		expected  string
	}{
		{"not imported", dummyClass, "DummyInterface", `kuiper\reflection\fixtures`, `kuiper\reflection\fixtures\DummyInterface`},
		{"imported", dummyInterface, "ReflectionFile", `kuiper\reflection\fixtures`, `kuiper\reflection\ReflectionFile`},
		{"not exists", dummyInterface, "NonExistClass", `kuiper\reflection\fixtures`, `kuiper\reflection\fixtures\NonExistClass`},
		{"other namespace block", multipleNamespaces, "ClassA", "NamespaceB", `NamespaceA\ClassA`},
		{"global block", multipleNamespaces, "ClassC", "", "ClassC"},
		{"import not visible in sibling block", multipleNamespaces, "ClassA", "NamespaceA", `NamespaceA\ClassA`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustScan(t, tt.src).Resolve(tt.short, tt.namespace)
			if got != tt.expected {
				t.Errorf("Resolve(%q, %q) = %q, expected %q", tt.short, tt.namespace, got, tt.expected)
			}
		})
	}
}

func TestResolve_Rules(t *testing.T) {
	r := mustScan(t, `<?php
namespace App;

use Vendor\Lib\Client;
use Vendor\Models as M;
use Other\Foo as Bar;
use function Vendor\Support\helper;
use const Vendor\Support\LEVEL;
`)

	tests := []struct {
		short     string
		namespace string
		expected  string
	}{
		{"Foo", "App", `App\Foo`},
		{"Foo", "", "Foo"},
		{"Foo", `\App\`, `App\Foo`},
		{"Client", "App", `Vendor\Lib\Client`},
		{`Client\Options`, "App", `Vendor\Lib\Client\Options`},
		{`M\User`, "App", `Vendor\Models\User`},
		{"Bar", "App", `Other\Foo`},
		{`\A\B`, "App", `A\B`},
		{`\Client`, "App", "Client"},
		{`Sub\Thing`, "App", `App\Sub\Thing`},
		{`namespace\Local`, "App", `App\Local`},
		{`Namespace\Local\Deep`, "App", `App\Local\Deep`},
		{"helper", "App", `App\helper`},
		{"Client", "Elsewhere", `Elsewhere\Client`},
		{"", "App", ""},
		{"  Client ", "App", `Vendor\Lib\Client`},
	}

	for _, tt := range tests {
		if got := r.Resolve(tt.short, tt.namespace); got != tt.expected {
			t.Errorf("Resolve(%q, %q) = %q, expected %q", tt.short, tt.namespace, got, tt.expected)
		}
	}
}

func TestResolve_FunctionsAndConstants(t *testing.T) {
	r := mustScan(t, `<?php
namespace App;

use Vendor\Support;
use function Vendor\Support\helper;
use function Vendor\Support\other as alias;
use const Vendor\Support\LEVEL;
`)

	tests := []struct {
		got      string
		expected string
	}{
		{r.ResolveFunction("helper", "App"), `Vendor\Support\helper`},
		{r.ResolveFunction("alias", "App"), `Vendor\Support\other`},
		{r.ResolveFunction("strlen", "App"), `App\strlen`},
		{r.ResolveFunction(`Support\tap`, "App"), `Vendor\Support\tap`},
		{r.ResolveFunction(`\strlen`, "App"), "strlen"},
		{r.ResolveConstant("LEVEL", "App"), `Vendor\Support\LEVEL`},
		{r.ResolveConstant("helper", "App"), `App\helper`},
		{r.Resolve("helper", "App"), `App\helper`},
	}
	for i, tt := range tests {
		if tt.got != tt.expected {
			t.Errorf("case %d: got %q, expected %q", i, tt.got, tt.expected)
		}
	}
}

func TestResolve_ImportPrecedence(t *testing.T) {
	r := mustScan(t, "<?php\nnamespace NS;\nuse Elsewhere\\Imported;\nclass Imported2 {}\n")
	if got := r.Resolve("Imported", "NS"); got != `Elsewhere\Imported` {
		t.Errorf("expected import to take precedence, got %q", got)
	}
}

func TestResolve_NilModule(t *testing.T) {
	r := New(nil)
	if got := r.Resolve("Foo", "NS"); got != `NS\Foo` {
		t.Errorf("got %q", got)
	}
	if got := r.Resolve("Foo", ""); got != "Foo" {
		t.Errorf("got %q", got)
	}
}
