package filter

import (
	"testing"

	"nsref/internal/engine/types"

	"github.com/stretchr/testify/assert"
)

func TestArrayFilter_Validate(t *testing.T) {
	r := types.NewRegistry()
	f := ForType(r.MustParse("int[]"))

	assert.True(t, f.Validate([]any{1}))
	assert.False(t, f.Validate([]any{"a"}))
	assert.True(t, f.Validate([]int{1, 2, 3}))
	assert.True(t, f.Validate([]string{"1", " 2 "}))
	assert.True(t, f.Validate(map[string]int{"a": 1}))
	assert.False(t, f.Validate(1))
	assert.False(t, f.Validate("abc"))
	assert.False(t, f.Validate([]byte("abc")))
	assert.False(t, f.Validate(nil))
}

func TestArrayFilter_Dimensions(t *testing.T) {
	r := types.NewRegistry()
	f := ForType(r.MustParse("int[][]"))

	assert.True(t, f.Validate([][]int{{1}, {2, 3}}))
	assert.False(t, f.Validate([]int{1, 2}))
	assert.False(t, f.Validate([]any{[]any{1, "x"}}))
}

func TestArrayFilter_Sanitize(t *testing.T) {
	r := types.NewRegistry()
	f := ForType(r.MustParse("int[]"))

	assert.Equal(t, []any{int64(1), int64(2)}, f.Sanitize([]string{"1", "2"}))
	assert.Equal(t, []any{int64(7)}, f.Sanitize("7"))
	assert.Equal(t, []any{}, f.Sanitize(nil))
	assert.Equal(t, map[string]any{"a": int64(3)}, f.Sanitize(map[string]string{"a": "3"}))
}

func TestBoolFilter(t *testing.T) {
	f := ForType(types.NewRegistry().MustParse("bool"))

	valid := []struct {
		in   any
		want bool
	}{
		{true, true}, {false, false},
		{"1", true}, {"yes", true}, {" On ", true}, {"TRUE", true},
		{"0", false}, {"no", false}, {"off", false}, {"", false}, {"False", false},
		{1, true}, {0, false}, {1.0, true},
	}
	for _, tt := range valid {
		assert.Truef(t, f.Validate(tt.in), "expected %#v to be a valid boolean", tt.in)
		assert.Equalf(t, tt.want, f.Sanitize(tt.in), "sanitize %#v", tt.in)
	}

	for _, in := range []any{"maybe", 2, "10", []int{1}} {
		assert.Falsef(t, f.Validate(in), "expected %#v to be rejected", in)
		assert.Equal(t, false, f.Sanitize(in))
	}
}

func TestIntFilter(t *testing.T) {
	f := ForType(types.NewRegistry().MustParse("int"))

	for _, in := range []any{1, int64(-3), uint8(9), "42", " -7 ", 3.0, true} {
		assert.Truef(t, f.Validate(in), "expected %#v to be valid", in)
	}
	for _, in := range []any{nil, "4.5", 4.5, "0x1F", "abc", []int{1}} {
		assert.Falsef(t, f.Validate(in), "expected %#v to be rejected", in)
	}
	assert.Equal(t, int64(42), f.Sanitize("42"))
	assert.Equal(t, int64(0), f.Sanitize("abc"))
}

func TestFloatFilter(t *testing.T) {
	r := types.NewRegistry()
	for _, name := range []string{"float", "number"} {
		f := ForType(r.MustParse(name))
		assert.True(t, f.Validate("1.5"))
		assert.True(t, f.Validate(2))
		assert.False(t, f.Validate("x"))
		assert.Equal(t, 1.5, f.Sanitize(" 1.5 "))
	}
}

func TestStringFilter(t *testing.T) {
	f := ForType(types.NewRegistry().MustParse("string"))

	assert.True(t, f.Validate("s"))
	assert.True(t, f.Validate(12))
	assert.False(t, f.Validate(nil))
	assert.False(t, f.Validate([]string{"a"}))
	assert.Equal(t, "12", f.Sanitize(12))
}

func TestNullable(t *testing.T) {
	r := types.NewRegistry()

	f := ForType(r.MustParse("?int"))
	assert.True(t, f.Validate(nil))
	assert.Nil(t, f.Sanitize(nil))
	assert.True(t, f.Validate("5"))
	assert.False(t, f.Validate("five"))

	assert.False(t, ForType(r.MustParse("int")).Validate(nil))
	assert.True(t, ForType(r.MustParse("?int[]")).Validate(nil))
}

func TestPassthroughAndNull(t *testing.T) {
	r := types.NewRegistry()
	for _, name := range []string{"mixed", `App\Model`, "object", "callable", "resource"} {
		f := ForType(r.MustParse(name))
		assert.True(t, f.Validate(struct{}{}), name)
		assert.Equal(t, "x", f.Sanitize("x"), name)
	}

	null := ForType(r.MustParse("null"))
	assert.True(t, null.Validate(nil))
	assert.False(t, null.Validate(0))

	iter := ForType(r.MustParse("iterable"))
	assert.True(t, iter.Validate([]any{"a", 1}))
	assert.False(t, iter.Validate("a"))

	assert.True(t, ForType(nil).Validate(1))
}
