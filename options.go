package acorn

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Option configures a registration.
type Option func(*registration)

// WithLifetime sets the [Lifetime] of the registration. The default is
// [Singleton]. Instance registrations ignore it.
func WithLifetime(l Lifetime) Option {
	return func(r *registration) {
		r.lifetime = l
	}
}

// WithReplace lets a registration replace an existing one for the same
// token instead of failing with [ErrAmbiguousRegistration]. Replacing a
// singleton that has already been constructed fails with
// [ErrAlreadyResolved].
func WithReplace() Option {
	return func(r *registration) {
		r.replace = true
	}
}

// ContainerOption configures a [Container] created by [New].
type ContainerOption func(*containerConfig)

type containerConfig struct {
	logger *zap.Logger
	tracer trace.TracerProvider
}

// WithLogger sets the logger used for construction and lifecycle events.
// The default discards everything.
func WithLogger(l *zap.Logger) ContainerOption {
	return func(cfg *containerConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithTracerProvider enables resolve and construct spans. The default is a
// no-op provider.
func WithTracerProvider(tp trace.TracerProvider) ContainerOption {
	return func(cfg *containerConfig) {
		if tp != nil {
			cfg.tracer = tp
		}
	}
}

// ResolveOption configures a single [Container.Resolve] call.
type ResolveOption func(*resolveConfig)

type resolveConfig struct {
	ctx       context.Context
	overrides map[tokenKey]any
}

// WithOverride supplies value for tok for the whole call tree of one
// Resolve. The value is returned as-is wherever tok is requested: it is not
// validated, not cached, and takes precedence over registrations and
// autowiring.
func WithOverride(tok Token, value any) ResolveOption {
	return func(rc *resolveConfig) {
		if rc.overrides == nil {
			rc.overrides = make(map[tokenKey]any)
		}
		rc.overrides[tok.key()] = value
	}
}

// Overrides maps tokens to call-scoped instances; see [WithOverride].
type Overrides map[Token]any

// WithOverrides applies every entry of o as by [WithOverride].
func WithOverrides(o Overrides) ResolveOption {
	return func(rc *resolveConfig) {
		for tok, v := range o {
			WithOverride(tok, v)(rc)
		}
	}
}

// WithContext sets the context of one Resolve call. It parents the resolve
// spans and is injected into factories that declare a [context.Context]
// parameter. Resolution itself never blocks on it.
func WithContext(ctx context.Context) ResolveOption {
	return func(rc *resolveConfig) {
		if ctx != nil {
			rc.ctx = ctx
		}
	}
}
