// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package gojaelm

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/logiface"
)

// DefaultLoadTimeout bounds evaluation and instantiation of the artifact.
const DefaultLoadTimeout = 30 * time.Second

// runOptions holds configuration for [Run].
type runOptions struct {
	compiler       Compiler
	logger         *logiface.Logger[logiface.Event]
	loop           *eventloop.Loop
	moduleName     string
	handlers       []portHandler
	compileTimeout time.Duration
	loadTimeout    time.Duration
}

// Option configures [Run].
type Option interface {
	applyRun(*runOptions) error
}

// runOptionImpl implements Option.
type runOptionImpl struct {
	applyRunFunc func(*runOptions) error
}

func (x *runOptionImpl) applyRun(opts *runOptions) error {
	return x.applyRunFunc(opts)
}

// WithCompiler replaces the default [ExecCompiler].
func WithCompiler(compiler Compiler) Option {
	return &runOptionImpl{func(opts *runOptions) error {
		if compiler == nil {
			return fmt.Errorf("gojaelm: nil compiler")
		}
		opts.compiler = compiler
		return nil
	}}
}

// WithCompileTimeout sets the time bound of the default [ExecCompiler].
// It has no effect on a compiler provided via [WithCompiler].
func WithCompileTimeout(timeout time.Duration) Option {
	return &runOptionImpl{func(opts *runOptions) error {
		opts.compileTimeout = timeout
		return nil
	}}
}

// WithLoadTimeout bounds evaluation of the artifact and instantiation of the
// module. Zero means [DefaultLoadTimeout], negative disables the bound.
func WithLoadTimeout(timeout time.Duration) Option {
	return &runOptionImpl{func(opts *runOptions) error {
		opts.loadTimeout = timeout
		return nil
	}}
}

// WithLogger sets the structured logger. A nil logger disables logging,
// which is the default.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &runOptionImpl{func(opts *runOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithModuleName overrides the module identifier derived from the source
// file name.
func WithModuleName(name string) Option {
	return &runOptionImpl{func(opts *runOptions) error {
		if name == "" {
			return fmt.Errorf("gojaelm: empty module name")
		}
		opts.moduleName = name
		return nil
	}}
}

// WithLoop runs the sandbox on a caller-owned loop, which must already be
// running (or about to run) on another goroutine. The loop is not shut down
// by [Bridge.Close].
func WithLoop(loop *eventloop.Loop) Option {
	return &runOptionImpl{func(opts *runOptions) error {
		if loop == nil {
			return fmt.Errorf("gojaelm: nil loop")
		}
		opts.loop = loop
		return nil
	}}
}

// portHandler is a handler registered before the module is instantiated.
// An empty port matches every subscribable port.
type portHandler struct {
	port string
	fn   func(port string, args ...any)
}

// WithHandler registers handler for values the module publishes on the named
// port, as [Bridge.OnFromModule] does, but before the module starts. Values
// published on the first turns of the loop, such as commands issued by init,
// are therefore delivered.
func WithHandler(port string, handler func(args ...any)) Option {
	return &runOptionImpl{func(opts *runOptions) error {
		if port == "" {
			return fmt.Errorf("gojaelm: empty port name")
		}
		if handler == nil {
			return fmt.Errorf("gojaelm: nil handler for port %q", port)
		}
		opts.handlers = append(opts.handlers, portHandler{port: port, fn: func(_ string, args ...any) {
			handler(args...)
		}})
		return nil
	}}
}

// WithPortHandler is like [WithHandler], for every subscribable port.
func WithPortHandler(handler func(port string, args ...any)) Option {
	return &runOptionImpl{func(opts *runOptions) error {
		if handler == nil {
			return fmt.Errorf("gojaelm: nil port handler")
		}
		opts.handlers = append(opts.handlers, portHandler{fn: handler})
		return nil
	}}
}

// resolveRunOptions applies Option instances to runOptions.
func resolveRunOptions(opts []Option) (*runOptions, error) {
	cfg := &runOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyRun(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.compiler == nil {
		cfg.compiler = &ExecCompiler{Timeout: cfg.compileTimeout}
	}
	if cfg.loadTimeout == 0 {
		cfg.loadTimeout = DefaultLoadTimeout
	}
	return cfg, nil
}
