package acorn

import (
	"context"
	"fmt"
	"reflect"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// call is the state of one resolve call tree. It is passed by value; the
// in-progress chain is an immutable list extended by prepending, so
// concurrent call trees never share mutable state.
type call struct {
	ctx       context.Context
	overrides map[tokenKey]any
	chain     *frame
}

type frame struct {
	token  Token
	parent *frame
}

func (cl call) push(tok Token) call {
	cl.chain = &frame{token: tok, parent: cl.chain}
	return cl
}

func (cl call) inProgress(k tokenKey) bool {
	for f := cl.chain; f != nil; f = f.parent {
		if f.token.key() == k {
			return true
		}
	}
	return false
}

// cycle returns the chain from the earlier request for tok down to tok.
func (cl call) cycle(tok Token) []Token {
	var rev []Token
	for f := cl.chain; f != nil; f = f.parent {
		rev = append(rev, f.token)
		if f.token.Equal(tok) {
			break
		}
	}

	chain := make([]Token, 0, len(rev)+1)
	for i := len(rev) - 1; i >= 0; i-- {
		chain = append(chain, rev[i])
	}
	return append(chain, tok)
}

func (cl call) override(tok Token) (any, bool) {
	v, ok := cl.overrides[tok.key()]
	return v, ok
}

// with applies per-call options on top of cl. The override map is copied,
// never mutated.
func (cl call) with(opts []ResolveOption) call {
	if len(opts) == 0 {
		return cl
	}

	rc := resolveConfig{ctx: cl.ctx}
	for _, opt := range opts {
		opt(&rc)
	}
	cl.ctx = rc.ctx

	if len(rc.overrides) > 0 {
		merged := make(map[tokenKey]any, len(cl.overrides)+len(rc.overrides))
		for k, v := range cl.overrides {
			merged[k] = v
		}
		for k, v := range rc.overrides {
			merged[k] = v
		}
		cl.overrides = merged
	}
	return cl
}

// ---------------------------------------------------------------------------
// Container methods
// ---------------------------------------------------------------------------

func (c *container) Resolve(tok Token, opts ...ResolveOption) (inst any, err error) {
	if c.isShutdown() {
		return nil, ErrAlreadyShutdown
	}

	cl := call{ctx: context.Background()}.with(opts)

	ctx, span := c.startSpan(cl.ctx, spanResolve, tok)
	defer func() { endSpan(span, err) }()
	cl.ctx = ctx

	return c.resolve(cl, tok)
}

// resolve is the recursive core: override, cycle check, registration,
// autowiring, conformance, in that order.
func (c *container) resolve(cl call, tok Token) (any, error) {
	if v, ok := cl.override(tok); ok {
		return v, nil
	}

	if cl.inProgress(tok.key()) {
		return nil, &CircularDependencyError{Chain: cl.cycle(tok)}
	}

	if reg, owner, ok := c.lookup(tok); ok {
		return owner.resolveRegistered(cl, reg, c.capability(tok))
	}

	if c.autowireable(tok) {
		return c.autowire(cl, tok)
	}

	return nil, &UnregisteredTokenError{Token: tok}
}

func (c *container) resolveRegistered(cl call, reg registration, caps *Capability) (any, error) {
	if c.isShutdown() {
		return nil, fmt.Errorf("%w: resolving %s", ErrAlreadyShutdown, reg.token)
	}

	if reg.strategy == InstanceStrategy {
		if err := conform(reg.token, reg.instance, caps); err != nil {
			return nil, err
		}
		return reg.instance, nil
	}

	build := func() (any, error) {
		inst, err := c.build(cl.push(reg.token), reg)
		if err != nil {
			return nil, err
		}
		if err := conform(reg.token, inst, caps); err != nil {
			return nil, err
		}
		if err := checkType(reg.token, inst); err != nil {
			return nil, err
		}
		return inst, nil
	}

	if reg.lifetime != Singleton {
		return build()
	}

	inst, created, err := c.cache.getOrCreate(reg.token.key(), build)
	if err != nil {
		return nil, err
	}
	if created {
		c.log.Debug("singleton cached", zap.Stringer("token", reg.token))
		return inst, nil
	}

	// Descriptors are not part of identity, so a cached instance may meet a
	// descriptor for the first time here.
	if err := conform(reg.token, inst, caps); err != nil {
		return nil, err
	}
	return inst, nil
}

// build runs a factory or implementation registration.
func (c *container) build(cl call, reg registration) (inst any, err error) {
	ctx, span := c.startSpan(cl.ctx, spanConstruct, reg.token,
		attribute.String(attrStrategy, reg.strategy.String()),
		attribute.String(attrLifetime, reg.lifetime.String()),
		attribute.Bool(attrOverridden, len(cl.overrides) > 0),
	)
	defer func() { endSpan(span, err) }()
	cl.ctx = ctx

	var plan *Plan
	switch reg.strategy {
	case FactoryStrategy:
		plan = planFunc(reg.factory)
	case ImplementationStrategy:
		p, ok, err := c.planFor(reg.impl)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s has no constructor and is not a struct", ErrInvalidRegistration, reg.impl)
		}
		plan = p
	default:
		return nil, fmt.Errorf("%w: unknown strategy %s for %s", ErrInvalidRegistration, reg.strategy, reg.token)
	}

	inst, err = c.construct(cl, plan)
	if err != nil {
		return nil, fmt.Errorf("constructing %s: %w", reg.token, err)
	}

	c.log.Debug("constructed",
		zap.Stringer("token", reg.token),
		zap.Stringer("strategy", reg.strategy),
		zap.Stringer("lifetime", reg.lifetime),
	)
	return inst, nil
}

// autowire constructs an unregistered concrete type. Autowired instances
// are transient.
func (c *container) autowire(cl call, tok Token) (inst any, err error) {
	ctx, span := c.startSpan(cl.ctx, spanConstruct, tok,
		attribute.Bool(attrAutowired, true),
		attribute.String(attrLifetime, Transient.String()),
	)
	defer func() { endSpan(span, err) }()
	cl.ctx = ctx

	plan, _, err := c.planFor(tok.typ)
	if err != nil {
		return nil, err
	}

	inst, err = c.construct(cl.push(tok), plan)
	if err != nil {
		return nil, fmt.Errorf("autowiring %s: %w", tok, err)
	}
	if err := conform(tok, inst, c.capability(tok)); err != nil {
		return nil, err
	}

	c.log.Debug("autowired", zap.Stringer("token", tok))
	return inst, nil
}

// construct resolves every parameter of plan and builds the instance.
func (c *container) construct(cl call, plan *Plan) (any, error) {
	args := make([]reflect.Value, len(plan.Params))
	for i, p := range plan.Params {
		arg, err := c.resolveParam(cl, plan, p)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}

	out, err := plan.build(args)
	if err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

// resolveParam satisfies one parameter: by inferred type, then by name,
// then by default, then as an optional zero value.
func (c *container) resolveParam(cl call, plan *Plan, p Param) (reflect.Value, error) {
	switch p.intrinsic {
	case intrinsicResolver:
		return reflect.ValueOf(Resolver(&boundResolver{c: c, cl: cl})), nil
	case intrinsicContext:
		return reflect.ValueOf(cl.ctx), nil
	}

	var typeErr error
	if !p.Token.IsZero() {
		v, err := c.resolve(cl, p.Token)
		if err == nil {
			return assign(plan, p, v)
		}
		if !isUnregistered(err, p.Token) {
			return reflect.Value{}, fmt.Errorf("resolving %s: %w", p.Token, err)
		}
		typeErr = err
	}

	if p.byName {
		name := Key(p.Name)
		if _, overridden := cl.override(name); overridden || c.Registered(name) {
			v, err := c.resolve(cl, name)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("resolving %s: %w", name, err)
			}
			return assign(plan, p, v)
		}
	}

	if p.HasDefault {
		return p.Default, nil
	}
	if p.Optional {
		return reflect.Zero(p.Type), nil
	}

	return reflect.Value{}, &MissingDependencyError{Owner: plan.Type, Param: p.Name, Token: p.Token, Err: typeErr}
}

func assign(plan *Plan, p Param, v any) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(p.Type), nil
	}

	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(p.Type) {
		return reflect.Value{}, fmt.Errorf("%w: parameter %s of %s wants %s, got %s",
			ErrIncompatibleType, p.Name, plan.Type, p.Type, rv.Type())
	}
	return rv, nil
}

func conform(tok Token, inst any, caps *Capability) error {
	if caps == nil {
		return nil
	}
	if mismatches := caps.Mismatches(inst); len(mismatches) > 0 {
		return &ConformanceError{Token: tok, Type: reflect.TypeOf(inst), Mismatches: mismatches}
	}
	return nil
}

// isUnregistered reports whether err is exactly the lookup failure for tok
// itself, as opposed to a failure further down its graph.
func isUnregistered(err error, tok Token) bool {
	ue, ok := err.(*UnregisteredTokenError)
	return ok && ue.Token.Equal(tok)
}

// boundResolver continues an in-flight call tree on behalf of a factory.
type boundResolver struct {
	c  *container
	cl call
}

func (r *boundResolver) Resolve(tok Token, opts ...ResolveOption) (any, error) {
	return r.c.resolve(r.cl.with(opts), tok)
}

// ---------------------------------------------------------------------------
// Generic helpers
// ---------------------------------------------------------------------------

// Resolve is a generic helper that resolves the unnamed token for T. It is
// the recommended way to retrieve values:
//
//	db, err := acorn.Resolve[*Database](c)
func Resolve[T any](r Resolver, opts ...ResolveOption) (T, error) {
	return ResolveToken[T](r, TypeOf[T](), opts...)
}

// ResolveNamed is a generic helper that resolves Named[T](name):
//
//	db, err := acorn.ResolveNamed[*Database](c, "primary")
func ResolveNamed[T any](r Resolver, name string, opts ...ResolveOption) (T, error) {
	return ResolveToken[T](r, Named[T](name), opts...)
}

// ResolveToken resolves tok and converts the instance to T.
func ResolveToken[T any](r Resolver, tok Token, opts ...ResolveOption) (T, error) {
	var zero T

	val, err := r.Resolve(tok, opts...)
	if err != nil {
		return zero, err
	}
	if val == nil {
		return zero, nil
	}

	out, ok := val.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s resolved to %T, not %s",
			ErrIncompatibleType, tok, val, reflect.TypeOf((*T)(nil)).Elem())
	}
	return out, nil
}

// MustResolve is like [Resolve] but panics on error. Use it in bootstrap code
// where a wiring mistake should stop the program.
func MustResolve[T any](r Resolver, opts ...ResolveOption) T {
	v, err := Resolve[T](r, opts...)
	if err != nil {
		panic(fmt.Sprintf("acorn: MustResolve[%s]: %v", reflect.TypeOf((*T)(nil)).Elem(), err))
	}
	return v
}

// ---------------------------------------------------------------------------
// Generic registration helpers
// ---------------------------------------------------------------------------

// Provide registers factory under the unnamed token for T.
func Provide[T any](c Container, factory any, opts ...Option) error {
	return c.RegisterFactory(TypeOf[T](), factory, opts...)
}

// Supply registers value under the unnamed token for T.
func Supply[T any](c Container, value T, opts ...Option) error {
	return c.RegisterInstance(TypeOf[T](), value, opts...)
}

// Bind registers Impl as the implementation of Abstract:
//
//	acorn.Bind[Store, *postgresStore](c)
func Bind[Abstract, Impl any](c Container, opts ...Option) error {
	return c.RegisterImplementation(TypeOf[Abstract](), reflect.TypeOf((*Impl)(nil)).Elem(), opts...)
}
