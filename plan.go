package acorn

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Param is one dependency of a constructor plan.
type Param struct {
	// Name is the struct field's parameter name, or argN for a function
	// parameter.
	Name string

	// Index is the argument position or the struct field index.
	Index int

	// Type is the declared type the resolved value is injected into.
	Type reflect.Type

	// Token is inferred from Type. It is zero when the type alone cannot
	// identify a dependency (basic kinds and empty interfaces).
	Token Token

	// Default is used when nothing else satisfies the parameter.
	Default    reflect.Value
	HasDefault bool

	// Optional parameters fall back to the zero value.
	Optional bool

	// byName enables the Key(Name) fallback; only struct fields have
	// meaningful names.
	byName    bool
	intrinsic intrinsic
}

type intrinsic int

const (
	notIntrinsic intrinsic = iota
	intrinsicResolver
	intrinsicContext
)

// Plan is the ordered dependency list of a constructible type, computed on
// demand and never required to be cached.
type Plan struct {
	// Type is what the plan builds.
	Type   reflect.Type
	Params []Param

	build func(args []reflect.Value) (reflect.Value, error)
}

var (
	resolverType = reflect.TypeOf((*Resolver)(nil)).Elem()
	contextType  = reflect.TypeOf((*context.Context)(nil)).Elem()
	durationType = reflect.TypeOf(time.Duration(0))
)

// inferable reports whether a parameter's type is specific enough to serve
// as its token.
func inferable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String:
		return false
	case reflect.Interface:
		return t.NumMethod() > 0
	default:
		return true
	}
}

func structLike(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

// planFunc builds the plan of a factory or declared constructor. Variadic
// parameters are left empty.
func planFunc(fn reflect.Value) *Plan {
	typ := fn.Type()
	n := typ.NumIn()
	if typ.IsVariadic() {
		n--
	}

	p := &Plan{Type: typ.Out(0), Params: make([]Param, 0, n)}
	for i := 0; i < n; i++ {
		in := typ.In(i)
		param := Param{Name: "arg" + strconv.Itoa(i), Index: i, Type: in}
		switch {
		case in == resolverType:
			param.intrinsic = intrinsicResolver
		case in == contextType:
			param.intrinsic = intrinsicContext
		case inferable(in):
			param.Token = TokenFor(in)
		}
		p.Params = append(p.Params, param)
	}

	p.build = func(args []reflect.Value) (reflect.Value, error) {
		results := fn.Call(args)
		if len(results) == 2 && !results[1].IsNil() {
			return reflect.Value{}, results[1].Interface().(error)
		}
		return results[0], nil
	}
	return p
}

// planStruct builds the plan of a struct or pointer-to-struct type from its
// exported fields. Field tags:
//
//	inject:"-"              skip the field
//	inject:"name"           parameter name used for the Key fallback
//	inject:",optional"      zero value when unresolvable
//	default:"literal"       default for basic kinds and time.Duration
func planStruct(t reflect.Type) (*Plan, error) {
	st := t
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}

	p := &Plan{Type: t}
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if !f.IsExported() {
			continue
		}

		name, optional, skip := parseInjectTag(f)
		if skip {
			continue
		}

		param := Param{Name: name, Index: i, Type: f.Type, Optional: optional, byName: true}
		switch {
		case f.Type == resolverType:
			param.intrinsic = intrinsicResolver
		case f.Type == contextType:
			param.intrinsic = intrinsicContext
		case inferable(f.Type):
			param.Token = TokenFor(f.Type)
		}

		if lit, ok := f.Tag.Lookup("default"); ok {
			v, err := parseDefault(f.Type, lit)
			if err != nil {
				return nil, fmt.Errorf("%w: field %s of %s: %v", ErrInvalidRegistration, f.Name, t, err)
			}
			param.Default = v
			param.HasDefault = true
		}

		p.Params = append(p.Params, param)
	}

	p.build = func(args []reflect.Value) (reflect.Value, error) {
		v := reflect.New(st).Elem()
		for i, param := range p.Params {
			v.Field(param.Index).Set(args[i])
		}
		if t.Kind() == reflect.Pointer {
			return v.Addr(), nil
		}
		return v, nil
	}
	return p, nil
}

func parseInjectTag(f reflect.StructField) (name string, optional, skip bool) {
	name = paramName(f.Name)

	tag, ok := f.Tag.Lookup("inject")
	if !ok {
		return name, false, false
	}
	if tag == "-" {
		return "", false, true
	}

	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		if strings.TrimSpace(opt) == "optional" {
			optional = true
		}
	}
	return name, optional, false
}

// paramName lower-cases a field name the way Go identifiers are written:
// Port -> port, DSN -> dsn, HTTPClient -> httpClient.
func paramName(field string) string {
	runes := []rune(field)

	upper := 0
	for upper < len(runes) && unicode.IsUpper(runes[upper]) {
		upper++
	}

	switch {
	case upper == 0:
		return field
	case upper == len(runes):
		return strings.ToLower(field)
	case upper > 1:
		upper--
	}

	for i := 0; i < upper; i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

func parseDefault(t reflect.Type, lit string) (reflect.Value, error) {
	v := reflect.New(t).Elem()

	if t == durationType {
		d, err := time.ParseDuration(lit)
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetInt(int64(d))
		return v, nil
	}

	switch t.Kind() {
	case reflect.String:
		v.SetString(lit)
	case reflect.Bool:
		b, err := strconv.ParseBool(lit)
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(lit, 0, t.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(lit, 0, t.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(lit, t.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetFloat(n)
	default:
		return reflect.Value{}, fmt.Errorf("default values are not supported for %s", t)
	}
	return v, nil
}
