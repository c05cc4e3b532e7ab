// Package acorn provides a lightweight, reflection-based dependency injection
// container for Go.
//
// A [Container] resolves [Token]s. A token is a type (an interface or a
// concrete type), a type narrowed by a name, or a bare name. Tokens are
// bound with one of three strategies: a pre-built instance, a factory
// function whose parameters are injected, or a concrete implementation type
// built through its constructor plan. Concrete types that were never
// registered are autowired on demand.
//
// # Quick Start
//
//	c := acorn.New()
//	acorn.Provide[*Logger](c, NewLogger)
//	acorn.Bind[Store, *PostgresStore](c)
//
//	svc, err := acorn.Resolve[*UserService](c) // autowired from its fields
//
// # Resolution order
//
// For every requested token, at every depth of the graph:
//
//  1. an override passed with [WithOverride] is returned as-is;
//  2. a token already being resolved in the same call tree fails with a
//     [CircularDependencyError];
//  3. a registration is used, returning the cached instance for a
//     [Singleton] that has already been built;
//  4. an unregistered, unnamed concrete type is autowired (transient);
//  5. anything else fails with an [UnregisteredTokenError].
//
// Instances resolved for a token marked with [Checkable] must expose the
// token's [Capability] or Resolve fails with a [ConformanceError].
//
// # Autowiring
//
// A type's plan comes from a constructor declared with
// [Container.DeclareConstructor], or else from its exported struct fields:
//
//	type UserService struct {
//	    Repo    *UserRepository
//	    Log     *zap.Logger
//	    Timeout time.Duration `inject:"timeout" default:"5s"`
//	    Cache   Cache         `inject:",optional"`
//	    scratch []byte        // unexported fields are ignored
//	}
//
// Each parameter is resolved by its type first. When the type cannot
// identify a dependency (basic kinds, empty interfaces) or is not
// registered, the parameter's name is tried as a [Key] token, then its
// default, then the zero value if it is optional. Otherwise resolution
// fails with a [MissingDependencyError].
//
// # Lifetimes
//
// [Singleton] (default): one shared instance per owning container,
// constructed at most once even under concurrent resolution.
//
// [Transient]: a fresh instance on every [Container.Resolve] call.
//
//	c.RegisterFactory(acorn.TypeOf[*Request](), NewRequest, acorn.WithLifetime(acorn.Transient))
//
// # Scopes
//
// [Container.NewScope] creates a child container that prefers its own
// registrations and falls back to its parent's. Use it for per-request or
// per-test bindings without touching the root.
package acorn
