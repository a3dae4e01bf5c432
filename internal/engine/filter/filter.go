package filter

import (
	"math"
	"reflect"
	"strconv"
	"strings"

	"nsref/internal/engine/types"

	"github.com/spf13/cast"
)

// Filter validates and sanitizes plain values against a parsed type.
type Filter interface {
	// Validate reports whether value is acceptable for the type.
	Validate(value any) bool
	// Sanitize converts value to the type, falling back to its zero value.
	Sanitize(value any) any
}

// ForType returns the filter for t. Types without a dedicated filter accept
// every value unchanged.
func ForType(t types.Type) Filter {
	f := forKind(t)
	if t != nil && t.AllowsNull() {
		return nullable{f}
	}
	return f
}

func forKind(t types.Type) Filter {
	if t == nil {
		return Passthrough{}
	}
	switch t.Kind() {
	case types.KindBool:
		return Bool{}
	case types.KindInt:
		return Int{}
	case types.KindFloat, types.KindNumber:
		return Float{}
	case types.KindString:
		return String{}
	case types.KindNull, types.KindVoid:
		return Null{}
	case types.KindIterable:
		return Array{Elem: Passthrough{}}
	case types.KindArray:
		arr := t.(*types.Array)
		var f Filter = Array{Elem: forKind(arr.Elem())}
		for i := 1; i < arr.Dims(); i++ {
			f = Array{Elem: f}
		}
		return f
	}
	return Passthrough{}
}

type nullable struct {
	Filter
}

func (n nullable) Validate(value any) bool {
	return value == nil || n.Filter.Validate(value)
}

func (n nullable) Sanitize(value any) any {
	if value == nil {
		return nil
	}
	return n.Filter.Sanitize(value)
}

// Bool follows the boolean validation of the host language: "1", "true",
// "on" and "yes" are true, "0", "false", "off", "no" and "" are false, case
// and surrounding space ignored.
type Bool struct{}

func (Bool) Validate(value any) bool {
	_, ok := toBool(value)
	return ok
}

func (Bool) Sanitize(value any) any {
	b, _ := toBool(value)
	return b
}

func toBool(value any) (bool, bool) {
	switch v := value.(type) {
	case nil:
		return false, true
	case bool:
		return v, true
	}
	s, err := cast.ToStringE(value)
	if err != nil {
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on", "yes":
		return true, true
	case "0", "false", "off", "no", "":
		return false, true
	}
	return false, false
}

// Int accepts integers, integral floats and decimal integer strings.
type Int struct{}

func (Int) Validate(value any) bool {
	_, ok := toInt(value)
	return ok
}

func (Int) Sanitize(value any) any {
	if n, ok := toInt(value); ok {
		return n
	}
	return cast.ToInt64(value)
}

func toInt(value any) (int64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	case float32, float64:
		f := cast.ToFloat64(v)
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int64(f), true
	}
	n, err := cast.ToInt64E(value)
	return n, err == nil
}

// Float accepts any numeric value or numeric string.
type Float struct{}

func (Float) Validate(value any) bool {
	_, ok := toFloat(value)
	return ok
}

func (Float) Sanitize(value any) any {
	f, _ := toFloat(value)
	return f
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	f, err := cast.ToFloat64E(value)
	return f, err == nil
}

// String accepts strings and scalars that have a string form.
type String struct{}

func (String) Validate(value any) bool {
	if value == nil {
		return false
	}
	_, err := cast.ToStringE(value)
	return err == nil
}

func (String) Sanitize(value any) any {
	return cast.ToString(value)
}

// Null accepts only nil.
type Null struct{}

func (Null) Validate(value any) bool { return value == nil }
func (Null) Sanitize(any) any        { return nil }

// Array accepts slices, arrays and string-keyed maps whose every element is
// accepted by Elem.
type Array struct {
	Elem Filter
}

func (a Array) Validate(value any) bool {
	elems, ok := elements(value)
	if !ok {
		return false
	}
	for _, e := range elems {
		if !a.Elem.Validate(e) {
			return false
		}
	}
	return true
}

// Sanitize converts value to a slice and sanitizes every element. Maps keep
// their keys. A scalar becomes a one-element slice and nil an empty one.
func (a Array) Sanitize(value any) any {
	if value == nil {
		return []any{}
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Map {
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[cast.ToString(iter.Key().Interface())] = a.Elem.Sanitize(iter.Value().Interface())
		}
		return out
	}
	elems, ok := elements(value)
	if !ok {
		elems = []any{value}
	}
	out := make([]any, len(elems))
	for i, e := range elems {
		out[i] = a.Elem.Sanitize(e)
	}
	return out
}

// elements lists the values of a slice, array or map. Byte slices are
// strings, not arrays.
func elements(value any) ([]any, bool) {
	if value == nil {
		return nil, false
	}
	if s, err := cast.ToSliceE(value); err == nil {
		return s, true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, false
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	case reflect.Map:
		out := make([]any, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out = append(out, iter.Value().Interface())
		}
		return out, true
	}
	return nil, false
}

// Passthrough accepts every value unchanged. It serves class references,
// mixed and the types that have no value-level representation.
type Passthrough struct{}

func (Passthrough) Validate(any) bool  { return true }
func (Passthrough) Sanitize(v any) any { return v }
