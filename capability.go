package acorn

import (
	"fmt"
	"reflect"
)

// Member describes one method a runtime-checkable abstraction requires.
//
// A nil In (or Out) accepts any parameter (or result) list. A non-nil list,
// even an empty one, fixes the arity: the instance's parameters must accept
// every In type and its results must be assignable to every Out type.
type Member struct {
	Name string
	In   []reflect.Type
	Out  []reflect.Type

	variadic bool
}

// Method returns a member that only requires a method called name to exist.
func Method(name string) Member {
	return Member{Name: name}
}

// MethodOf returns a member whose signature is taken from fn, a func type
// written without a receiver:
//
//	acorn.MethodOf("Render", reflect.TypeOf(func(io.Writer) error { return nil }))
func MethodOf(name string, fn reflect.Type) Member {
	m := Member{Name: name, In: []reflect.Type{}, Out: []reflect.Type{}}
	for i := 0; i < fn.NumIn(); i++ {
		m.In = append(m.In, fn.In(i))
	}
	for i := 0; i < fn.NumOut(); i++ {
		m.Out = append(m.Out, fn.Out(i))
	}
	m.variadic = fn.IsVariadic()
	return m
}

// Capability is the member surface an abstraction token requires at
// runtime.
type Capability struct {
	Name    string
	Members []Member
}

// CapabilitiesOf derives a descriptor from the exported method set of an
// interface type. It panics if iface is not an interface.
func CapabilitiesOf(iface reflect.Type) *Capability {
	if iface.Kind() != reflect.Interface {
		panic(fmt.Sprintf("acorn: CapabilitiesOf(%s): not an interface", iface))
	}

	c := &Capability{Name: iface.String()}
	for i := 0; i < iface.NumMethod(); i++ {
		m := iface.Method(i)
		if !m.IsExported() {
			continue
		}
		c.Members = append(c.Members, MethodOf(m.Name, m.Type))
	}
	return c
}

// Conforms reports whether instance exposes every member c requires. A nil
// descriptor accepts everything.
func Conforms(instance any, c *Capability) bool {
	return len(c.Mismatches(instance)) == 0
}

// Mismatches lists every requirement instance fails, in member order.
func (c *Capability) Mismatches(instance any) []string {
	if c == nil {
		return nil
	}

	v := reflect.ValueOf(instance)

	var out []string
	for _, m := range c.Members {
		if !v.IsValid() {
			out = append(out, "missing "+m.Name)
			continue
		}
		method := v.MethodByName(m.Name)
		if !method.IsValid() {
			out = append(out, "missing "+m.Name)
			continue
		}
		if msg := m.compare(method.Type()); msg != "" {
			out = append(out, m.Name+": "+msg)
		}
	}
	return out
}

func (m Member) compare(got reflect.Type) string {
	if m.In != nil {
		if got.NumIn() != len(m.In) || got.IsVariadic() != m.variadic {
			return fmt.Sprintf("takes %d params, want %d", got.NumIn(), len(m.In))
		}
		for i, want := range m.In {
			if !want.AssignableTo(got.In(i)) {
				return fmt.Sprintf("param %d is %s, want %s", i, got.In(i), want)
			}
		}
	}

	if m.Out != nil {
		if got.NumOut() != len(m.Out) {
			return fmt.Sprintf("returns %d results, want %d", got.NumOut(), len(m.Out))
		}
		for i, want := range m.Out {
			if !got.Out(i).AssignableTo(want) {
				return fmt.Sprintf("result %d is %s, want %s", i, got.Out(i), want)
			}
		}
	}

	return ""
}
