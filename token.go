package acorn

import (
	"reflect"
	"strconv"
)

// Token identifies what is being requested from a [Container]: a type
// (an interface abstraction or a concrete type), optionally narrowed by a
// name, or a bare name on its own.
//
// Two tokens are the same binding when their type and name match; see
// [Token.Equal]. A token may additionally carry a [Capability] descriptor
// (see [Checkable]) which does not take part in identity.
type Token struct {
	typ  reflect.Type
	name string
	caps *Capability
}

// tokenKey is the comparable identity of a Token.
type tokenKey struct {
	typ  reflect.Type
	name string
}

// TypeOf returns the unnamed token for T:
//
//	acorn.TypeOf[*Database]()
//	acorn.TypeOf[Renderer]()
func TypeOf[T any]() Token {
	return Token{typ: reflect.TypeOf((*T)(nil)).Elem()}
}

// TokenFor returns the unnamed token for t.
func TokenFor(t reflect.Type) Token {
	return Token{typ: t}
}

// Named returns a token for T discriminated by name. Use it to keep several
// bindings of the same type apart:
//
//	c.RegisterFactory(acorn.Named[*sql.DB]("primary"), openPrimary)
//	c.RegisterFactory(acorn.Named[*sql.DB]("replica"), openReplica)
func Named[T any](name string) Token {
	return Token{typ: reflect.TypeOf((*T)(nil)).Elem(), name: name}
}

// Key returns a pure name token with no type attached. Name tokens are
// never autowired; they are also the fallback used for constructor
// parameters whose type alone cannot identify a dependency (for example a
// string field named "dsn" resolves Key("dsn")).
func Key(name string) Token {
	return Token{name: name}
}

// Type returns the token's type, or nil for a name token.
func (t Token) Type() reflect.Type { return t.typ }

// Name returns the token's name discriminator, if any.
func (t Token) Name() string { return t.name }

// Capability returns the descriptor attached with [Checkable], or nil.
func (t Token) Capability() *Capability { return t.caps }

// IsZero reports whether t carries neither a type nor a name.
func (t Token) IsZero() bool { return t.typ == nil && t.name == "" }

// Equal reports whether t and o identify the same binding.
func (t Token) Equal(o Token) bool { return t.key() == o.key() }

// WithName returns a copy of t discriminated by name.
func (t Token) WithName(name string) Token {
	t.name = name
	return t
}

// String renders the token for errors and logs.
func (t Token) String() string {
	switch {
	case t.typ == nil:
		return strconv.Quote(t.name)
	case t.name == "":
		return t.typ.String()
	default:
		return t.typ.String() + "[" + t.name + "]"
	}
}

func (t Token) key() tokenKey { return tokenKey{typ: t.typ, name: t.name} }

// abstract reports whether the token names an interface type.
func (t Token) abstract() bool {
	return t.typ != nil && t.typ.Kind() == reflect.Interface
}

// Checkable marks tok as runtime-checkable. Every instance resolved for it
// must satisfy the returned descriptor or Resolve fails with a
// [ConformanceError].
//
// When no members are given and tok names an interface, the descriptor is
// the interface's method set. A name token or a concrete type needs
// explicit members:
//
//	renderer := acorn.Checkable(acorn.Key("renderer"), acorn.Method("Render"))
func Checkable(tok Token, members ...Member) Token {
	if len(members) == 0 && tok.abstract() {
		tok.caps = CapabilitiesOf(tok.typ)
		return tok
	}

	tok.caps = &Capability{Name: tok.String(), Members: append([]Member(nil), members...)}
	return tok
}
