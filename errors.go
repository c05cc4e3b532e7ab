package acorn

import (
	"errors"
	"reflect"
	"strings"
)

var (
	// ErrUnregisteredToken is returned when a token has no registration and
	// cannot be autowired.
	ErrUnregisteredToken = errors.New("unregistered token")

	// ErrMissingDependency is returned when a constructor or factory
	// parameter can be satisfied by neither its type, its name, nor a
	// default.
	ErrMissingDependency = errors.New("missing dependency")

	// ErrCircularDependency is returned when a token is requested while it
	// is already being resolved in the same call tree. The error message
	// includes the full chain.
	ErrCircularDependency = errors.New("circular dependency detected")

	// ErrConformance is returned when an instance resolved for a
	// runtime-checkable token lacks a required member.
	ErrConformance = errors.New("instance does not conform")

	// ErrAmbiguousRegistration is returned when a token is registered more
	// than once without [WithReplace].
	ErrAmbiguousRegistration = errors.New("ambiguous registration")

	// ErrAlreadyResolved is returned when [WithReplace] targets a token whose
	// singleton has already been cached.
	ErrAlreadyResolved = errors.New("singleton already resolved")

	// ErrInvalidRegistration is returned when a registration is malformed,
	// for example a factory that is not a function.
	ErrInvalidRegistration = errors.New("invalid registration")

	// ErrIncompatibleType is returned when a value cannot be assigned to the
	// type it is bound to or injected into.
	ErrIncompatibleType = errors.New("incompatible type")

	// ErrAlreadyShutdown is returned by every operation on a container that
	// has been shut down.
	ErrAlreadyShutdown = errors.New("container already shut down")
)

// UnregisteredTokenError reports a token with no registration that is not an
// autowireable concrete type.
type UnregisteredTokenError struct {
	Token Token
}

func (e *UnregisteredTokenError) Error() string {
	return ErrUnregisteredToken.Error() + ": " + e.Token.String()
}

func (e *UnregisteredTokenError) Is(target error) bool { return target == ErrUnregisteredToken }

// MissingDependencyError reports a parameter of Owner that could not be
// satisfied. Err holds the lookup failure for the parameter's inferred
// token, if it had one.
type MissingDependencyError struct {
	Owner reflect.Type
	Param string
	Token Token
	Err   error
}

func (e *MissingDependencyError) Error() string {
	var b strings.Builder
	b.WriteString(ErrMissingDependency.Error())
	b.WriteString(": parameter ")
	b.WriteString(e.Param)
	if e.Owner != nil {
		b.WriteString(" of ")
		b.WriteString(e.Owner.String())
	}
	if e.Token.IsZero() {
		b.WriteString(" (type cannot be inferred, no default)")
	} else {
		b.WriteString(" (")
		b.WriteString(e.Token.String())
		b.WriteString(")")
	}
	return b.String()
}

func (e *MissingDependencyError) Is(target error) bool { return target == ErrMissingDependency }

func (e *MissingDependencyError) Unwrap() error { return e.Err }

// CircularDependencyError reports a dependency cycle. Chain starts at the
// first occurrence of the repeated token and ends with it again.
type CircularDependencyError struct {
	Chain []Token
}

func (e *CircularDependencyError) Error() string {
	parts := make([]string, len(e.Chain))
	for i, t := range e.Chain {
		parts[i] = t.String()
	}
	return ErrCircularDependency.Error() + ": " + strings.Join(parts, " -> ")
}

func (e *CircularDependencyError) Is(target error) bool { return target == ErrCircularDependency }

// ConformanceError reports an instance that fails the capability check of a
// runtime-checkable token.
type ConformanceError struct {
	Token      Token
	Type       reflect.Type
	Mismatches []string
}

func (e *ConformanceError) Error() string {
	got := "<nil>"
	if e.Type != nil {
		got = e.Type.String()
	}
	return ErrConformance.Error() + ": " + got + " resolved for " + e.Token.String() +
		": " + strings.Join(e.Mismatches, "; ")
}

func (e *ConformanceError) Is(target error) bool { return target == ErrConformance }

// AmbiguousRegistrationError reports a second registration for a token.
type AmbiguousRegistrationError struct {
	Token Token
}

func (e *AmbiguousRegistrationError) Error() string {
	return ErrAmbiguousRegistration.Error() + ": " + e.Token.String() + " is already registered"
}

func (e *AmbiguousRegistrationError) Is(target error) bool {
	return target == ErrAmbiguousRegistration
}
