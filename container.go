package acorn

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Resolver produces instances for tokens. [Container] implements it, and a
// factory that declares a Resolver parameter receives one bound to the
// current call tree: its overrides still apply and cycles through it are
// still detected.
type Resolver interface {
	// Resolve returns the instance for tok. Prefer the generic [Resolve]
	// helper when the token is a plain type.
	Resolve(tok Token, opts ...ResolveOption) (any, error)
}

// Container defines the dependency injection container. Use [New] to create
// one; there is no package-level default.
type Container interface {
	Resolver

	// RegisterInstance binds tok to a pre-built value, which must be nil or
	// assignable to tok's type. Instance registrations are always
	// singletons.
	RegisterInstance(tok Token, value any, opts ...Option) error

	// RegisterFactory binds tok to a function with the signature
	// func(deps...) T or func(deps...) (T, error). Parameters are resolved
	// exactly like constructor parameters. A result typed as an interface
	// is checked against tok's type after each construction.
	RegisterFactory(tok Token, factory any, opts ...Option) error

	// RegisterImplementation binds tok to a concrete type built through its
	// constructor plan: a constructor declared with DeclareConstructor, or
	// the type's exported struct fields.
	RegisterImplementation(tok Token, impl reflect.Type, opts ...Option) error

	// DeclareConstructor records fn as the constructor of the type it
	// returns, for autowiring and implementation registrations. It does not
	// register the type.
	DeclareConstructor(fn any) error

	// Registered reports whether tok has a registration in this container
	// or one of its parents.
	Registered(tok Token) bool

	// NewScope returns a child container. The child resolves its own
	// registrations first and falls back to the parent's. Singletons are
	// cached by the container that owns their registration.
	NewScope() Container

	// Validate walks every registration's dependency plan without
	// constructing anything and reports the first missing dependency or
	// cycle. Dependencies resolved dynamically through a Resolver parameter
	// are not visible to it.
	Validate() error

	// Shutdown closes this container's cached singletons that implement
	// [io.Closer], in reverse construction order. The context controls the
	// overall deadline; if it expires, remaining closers are skipped and the
	// context error is included in the result. After Shutdown every other
	// operation fails with [ErrAlreadyShutdown].
	Shutdown(ctx context.Context) error

	// ID identifies the container in logs and spans.
	ID() string
}

type container struct {
	id     string
	parent *container

	mu       sync.RWMutex
	registry *registry
	ctors    map[reflect.Type]reflect.Value
	shutdown bool

	cache *lifetimeCache
	plans sync.Map // reflect.Type -> *Plan, struct plans only

	log    *zap.Logger
	tracer trace.Tracer
	cfg    containerConfig
}

// New creates an empty [Container] ready for registration.
func New(opts ...ContainerOption) Container {
	cfg := containerConfig{
		logger: zap.NewNop(),
		tracer: noop.NewTracerProvider(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return newContainer(nil, cfg)
}

func newContainer(parent *container, cfg containerConfig) *container {
	id := uuid.NewString()

	log := cfg.logger.With(zap.String("container.id", id))
	if parent != nil {
		log = log.With(zap.String("container.parent_id", parent.id))
	}

	return &container{
		id:       id,
		parent:   parent,
		registry: newRegistry(),
		ctors:    make(map[reflect.Type]reflect.Value),
		cache:    newLifetimeCache(),
		log:      log,
		tracer:   cfg.tracer.Tracer(tracerName),
		cfg:      cfg,
	}
}

func (c *container) ID() string { return c.id }

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

func (c *container) RegisterInstance(tok Token, value any, opts ...Option) error {
	reg, err := newInstanceRegistration(tok, value)
	if err != nil {
		return err
	}
	for _, opt := range opts {
		opt(&reg)
	}
	reg.lifetime = Singleton
	return c.register(reg)
}

func (c *container) RegisterFactory(tok Token, factory any, opts ...Option) error {
	reg, err := newFactoryRegistration(tok, factory)
	if err != nil {
		return err
	}
	for _, opt := range opts {
		opt(&reg)
	}
	return c.register(reg)
}

func (c *container) RegisterImplementation(tok Token, impl reflect.Type, opts ...Option) error {
	reg, err := newImplementationRegistration(tok, impl)
	if err != nil {
		return err
	}
	for _, opt := range opts {
		opt(&reg)
	}
	return c.register(reg)
}

func (c *container) register(reg registration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdown {
		return ErrAlreadyShutdown
	}

	if _, exists := c.registry.lookup(reg.token); exists {
		if !reg.replace {
			return &AmbiguousRegistrationError{Token: reg.token}
		}
		if c.cache.contains(reg.token.key()) {
			return fmt.Errorf("%w: %s", ErrAlreadyResolved, reg.token)
		}
		c.log.Debug("registration replaced", zap.Stringer("token", reg.token))
	}

	c.registry.register(reg)
	c.log.Debug("registered",
		zap.Stringer("token", reg.token),
		zap.Stringer("strategy", reg.strategy),
		zap.Stringer("lifetime", reg.lifetime),
	)
	return nil
}

func (c *container) DeclareConstructor(fn any) error {
	val := reflect.ValueOf(fn)
	if !val.IsValid() || val.Kind() != reflect.Func || val.IsNil() {
		return fmt.Errorf("%w: constructor must be a function", ErrInvalidRegistration)
	}

	typ := val.Type()
	if typ.NumOut() == 0 || typ.NumOut() > 2 {
		return fmt.Errorf("%w: constructor must return (T) or (T, error)", ErrInvalidRegistration)
	}
	if typ.NumOut() == 2 && typ.Out(1) != errorType {
		return fmt.Errorf("%w: second return value must be error", ErrInvalidRegistration)
	}

	out := typ.Out(0)
	if out.Kind() == reflect.Interface {
		return fmt.Errorf("%w: constructor returns interface %s; register a factory instead", ErrInvalidRegistration, out)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdown {
		return ErrAlreadyShutdown
	}
	if _, exists := c.ctors[out]; exists {
		return &AmbiguousRegistrationError{Token: TokenFor(out)}
	}

	c.ctors[out] = val
	c.log.Debug("constructor declared", zap.Stringer("type", out))
	return nil
}

func (c *container) Registered(tok Token) bool {
	_, _, ok := c.lookup(tok)
	return ok
}

// ---------------------------------------------------------------------------
// Scopes
// ---------------------------------------------------------------------------

func (c *container) NewScope() Container {
	s := newContainer(c, c.cfg)
	c.log.Debug("scope created", zap.String("scope.id", s.id))
	return s
}

// lookup finds the registration for tok, nearest container first, and the
// container that owns it.
func (c *container) lookup(tok Token) (registration, *container, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		reg, ok := cur.registry.lookup(tok)
		cur.mu.RUnlock()
		if ok {
			return reg, cur, true
		}
	}
	return registration{}, nil, false
}

// capability returns the descriptor to enforce for tok: the token's own, or
// the one recorded when a checkable token with the same identity was
// registered.
func (c *container) capability(tok Token) *Capability {
	if tok.caps != nil {
		return tok.caps
	}
	for cur := c; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		caps := cur.registry.capability(tok)
		cur.mu.RUnlock()
		if caps != nil {
			return caps
		}
	}
	return nil
}

func (c *container) constructor(t reflect.Type) (reflect.Value, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		fn, ok := cur.ctors[t]
		cur.mu.RUnlock()
		if ok {
			return fn, true
		}
	}
	return reflect.Value{}, false
}

// planFor returns the constructor plan of t, or ok=false when t is not
// constructible. Declared constructors are looked up on every call, since
// a parent may declare one after this container planned t; only struct
// plans are cached.
func (c *container) planFor(t reflect.Type) (plan *Plan, ok bool, err error) {
	if fn, declared := c.constructor(t); declared {
		return planFunc(fn), true, nil
	}
	if !structLike(t) {
		return nil, false, nil
	}

	if cached, hit := c.plans.Load(t); hit {
		return cached.(*Plan), true, nil
	}
	plan, err = planStruct(t)
	if err != nil {
		return nil, false, err
	}
	c.plans.Store(t, plan)
	return plan, true, nil
}

// autowireable reports whether an unregistered tok may be constructed from
// its type alone.
func (c *container) autowireable(tok Token) bool {
	if tok.name != "" || tok.typ == nil || tok.typ.Kind() == reflect.Interface {
		return false
	}
	if _, declared := c.constructor(tok.typ); declared {
		return true
	}
	return structLike(tok.typ)
}

func (c *container) isShutdown() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.shutdown
}

// ---------------------------------------------------------------------------
// Validate
// ---------------------------------------------------------------------------

type visitState int

const (
	unvisited visitState = iota
	visiting
	visited
)

func (c *container) Validate() error {
	if c.isShutdown() {
		return ErrAlreadyShutdown
	}

	c.mu.RLock()
	regs := c.registry.sorted()
	c.mu.RUnlock()

	states := make(map[tokenKey]visitState)
	for _, reg := range regs {
		if err := c.validateToken(reg.token, states, nil); err != nil {
			return err
		}
	}
	return nil
}

// validateToken walks the dependency graph depth-first using a local state
// map and stack, mirroring the resolve algorithm without constructing.
func (c *container) validateToken(tok Token, states map[tokenKey]visitState, stack []Token) error {
	k := tok.key()
	switch states[k] {
	case visiting:
		return c.circularError(tok, stack)
	case visited:
		return nil
	}

	var (
		plan  *Plan
		owner = c
	)
	reg, regOwner, registered := c.lookup(tok)
	switch {
	case registered && reg.strategy == InstanceStrategy:
		states[k] = visited
		return nil
	case registered && reg.strategy == FactoryStrategy:
		owner = regOwner
		plan = planFunc(reg.factory)
	case registered:
		owner = regOwner
		p, ok, err := owner.planFor(reg.impl)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s has no constructor and is not a struct", ErrInvalidRegistration, reg.impl)
		}
		plan = p
	case c.autowireable(tok):
		p, _, err := c.planFor(tok.typ)
		if err != nil {
			return err
		}
		plan = p
	default:
		return &UnregisteredTokenError{Token: tok}
	}

	states[k] = visiting
	stack = append(stack, tok)

	for _, p := range plan.Params {
		if p.intrinsic != notIntrinsic {
			continue
		}
		if !p.Token.IsZero() {
			err := owner.validateToken(p.Token, states, stack)
			if err == nil {
				continue
			}
			if !isUnregistered(err, p.Token) {
				return err
			}
		}
		if p.byName && owner.Registered(Key(p.Name)) {
			if err := owner.validateToken(Key(p.Name), states, stack); err != nil {
				return err
			}
			continue
		}
		if p.HasDefault || p.Optional {
			continue
		}
		return &MissingDependencyError{Owner: plan.Type, Param: p.Name, Token: p.Token}
	}

	states[k] = visited
	return nil
}

func (c *container) circularError(tok Token, stack []Token) error {
	start := 0
	for i, s := range stack {
		if s.Equal(tok) {
			start = i
			break
		}
	}
	chain := append(append([]Token(nil), stack[start:]...), tok)
	return &CircularDependencyError{Chain: chain}
}

// ---------------------------------------------------------------------------
// Shutdown
// ---------------------------------------------------------------------------

func (c *container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return ErrAlreadyShutdown
	}
	c.shutdown = true
	c.mu.Unlock()

	closers := c.cache.drain()
	c.log.Debug("shutting down", zap.Int("closers", len(closers)))

	var errs []error
	for _, closer := range closers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
