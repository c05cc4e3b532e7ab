package acorn

import (
	"fmt"
	"reflect"
	"sort"
)

// Strategy is how a registration produces its instance.
type Strategy int

const (
	// InstanceStrategy returns a value supplied at registration.
	InstanceStrategy Strategy = iota

	// FactoryStrategy calls a function whose parameters are injected.
	FactoryStrategy

	// ImplementationStrategy constructs a concrete type through its
	// constructor plan.
	ImplementationStrategy
)

// String returns the human-readable name of the strategy.
func (s Strategy) String() string {
	switch s {
	case InstanceStrategy:
		return "instance"
	case FactoryStrategy:
		return "factory"
	case ImplementationStrategy:
		return "implementation"
	default:
		return "unknown"
	}
}

// registration binds a token to exactly one strategy and a lifetime. It is
// never mutated once stored.
type registration struct {
	token    Token
	strategy Strategy
	lifetime Lifetime

	instance any
	factory  reflect.Value
	impl     reflect.Type

	replace bool
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func newInstanceRegistration(tok Token, value any) (registration, error) {
	if tok.IsZero() {
		return registration{}, fmt.Errorf("%w: empty token", ErrInvalidRegistration)
	}
	if err := checkType(tok, value); err != nil {
		return registration{}, err
	}
	return registration{token: tok, strategy: InstanceStrategy, instance: value}, nil
}

// checkType reports an instance that cannot be held by tok's type. Name
// tokens and nil values accept anything.
func checkType(tok Token, inst any) error {
	if tok.typ == nil || inst == nil {
		return nil
	}
	if got := reflect.TypeOf(inst); !got.AssignableTo(tok.typ) {
		return fmt.Errorf("%w: %s bound to %s", ErrIncompatibleType, got, tok)
	}
	return nil
}

func newFactoryRegistration(tok Token, factory any) (registration, error) {
	if tok.IsZero() {
		return registration{}, fmt.Errorf("%w: empty token", ErrInvalidRegistration)
	}

	val := reflect.ValueOf(factory)
	if !val.IsValid() || val.Kind() != reflect.Func || val.IsNil() {
		return registration{}, fmt.Errorf("%w: factory for %s must be a function", ErrInvalidRegistration, tok)
	}

	typ := val.Type()
	if typ.NumOut() == 0 || typ.NumOut() > 2 {
		return registration{}, fmt.Errorf("%w: factory for %s must return (T) or (T, error)", ErrInvalidRegistration, tok)
	}
	if typ.NumOut() == 2 && typ.Out(1) != errorType {
		return registration{}, fmt.Errorf("%w: second return value of factory for %s must be error", ErrInvalidRegistration, tok)
	}

	// Interface results are checked against the produced instance instead.
	out := typ.Out(0)
	if tok.typ != nil && out.Kind() != reflect.Interface && !out.AssignableTo(tok.typ) {
		return registration{}, fmt.Errorf("%w: factory for %s returns %s", ErrIncompatibleType, tok, out)
	}

	return registration{token: tok, strategy: FactoryStrategy, factory: val}, nil
}

func newImplementationRegistration(tok Token, impl reflect.Type) (registration, error) {
	if tok.IsZero() {
		return registration{}, fmt.Errorf("%w: empty token", ErrInvalidRegistration)
	}
	if impl == nil {
		return registration{}, fmt.Errorf("%w: nil implementation for %s", ErrInvalidRegistration, tok)
	}
	if impl.Kind() == reflect.Interface {
		return registration{}, fmt.Errorf("%w: implementation %s for %s is an interface", ErrInvalidRegistration, impl, tok)
	}
	if tok.typ != nil && !impl.AssignableTo(tok.typ) {
		return registration{}, fmt.Errorf("%w: %s is not assignable to %s", ErrIncompatibleType, impl, tok)
	}

	return registration{token: tok, strategy: ImplementationStrategy, impl: impl}, nil
}

// registry maps tokens to registrations. It is not synchronized on its own:
// registration happens before concurrent resolution begins, and the owning
// container guards it with its mutex.
type registry struct {
	entries map[tokenKey]registration
	// caps remembers the descriptor of every checkable token registered, so
	// requests by plain type (for example an autowired field) are still
	// validated.
	caps map[tokenKey]*Capability
}

func newRegistry() *registry {
	return &registry{
		entries: make(map[tokenKey]registration),
		caps:    make(map[tokenKey]*Capability),
	}
}

func (r *registry) register(reg registration) {
	k := reg.token.key()
	r.entries[k] = reg
	if reg.token.caps != nil {
		r.caps[k] = reg.token.caps
	} else {
		delete(r.caps, k)
	}
}

func (r *registry) lookup(tok Token) (registration, bool) {
	reg, ok := r.entries[tok.key()]
	return reg, ok
}

func (r *registry) capability(tok Token) *Capability {
	return r.caps[tok.key()]
}

// sorted returns the registrations ordered by token string.
func (r *registry) sorted() []registration {
	out := make([]registration, 0, len(r.entries))
	for _, reg := range r.entries {
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].token.String() < out[j].token.String()
	})
	return out
}
