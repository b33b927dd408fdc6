// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package gojaelm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joeycumines/go-eventloop"
)

// Run compiles the Elm program at sourcePath, starts the module it defines
// inside a fresh sandbox, and returns a [Bridge] to its ports.
//
// The steps are strictly sequential, and any failure aborts the run:
//  1. The artifact path (see [NewRunConfig]) is checked, failing with
//     [*PathCollisionError] if a file is already there.
//  2. The compiler is invoked once, failing with [*CompileError].
//  3. The artifact is evaluated, the module is instantiated with
//     initialValues as its flags, and its ports are bridged, failing with
//     [*LoadError]. Handlers given by [WithHandler] are attached before the
//     module can publish anything.
//  4. The artifact is removed, whether or not steps 2-3 succeeded.
//
// Unless [WithLoop] is used, Run starts an event loop for the sandbox, which
// runs until [Bridge.Close]. ctx bounds the run itself, not the lifetime of
// the returned bridge.
func Run(ctx context.Context, sourcePath string, initialValues map[string]any, opts ...Option) (*Bridge, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	options, err := resolveRunOptions(opts)
	if err != nil {
		return nil, err
	}

	cfg := NewRunConfig(sourcePath, initialValues)
	if options.moduleName != "" {
		cfg.ModuleName = options.moduleName
	}

	flags, err := prepare(cfg.InitialValues)
	if err != nil {
		return nil, &LoadError{
			Cause:  fmt.Errorf("convert initial values: %w", err),
			Module: cfg.ModuleName,
			Path:   cfg.OutputPath,
			Stage:  StageInstantiate,
		}
	}

	loop, stop, err := startLoop(options)
	if err != nil {
		return nil, err
	}

	logger := options.logger
	start := time.Now()

	var bridge *Bridge
	err = WithCheckedPath(cfg.OutputPath, func() error {
		logger.Info().
			Str(`source`, cfg.SourcePath).
			Str(`output`, cfg.OutputPath).
			Log(`compiling`)

		if err := options.compiler.Compile(ctx, cfg.SourcePath, cfg.OutputPath); err != nil {
			var compileErr *CompileError
			if !errors.As(err, &compileErr) {
				err = &CompileError{Cause: err, Source: cfg.SourcePath, Output: cfg.OutputPath}
			}
			return err
		}

		source, err := os.ReadFile(cfg.OutputPath)
		if err != nil {
			return &LoadError{Cause: err, Module: cfg.ModuleName, Path: cfg.OutputPath, Stage: StageRead}
		}

		// the module must be bridged in the task that started it, before any
		// timer or command it scheduled can run
		bridge, err = runOnLoop(ctx, loop, func() (*Bridge, error) {
			sb, err := newSandbox(loop, logger)
			if err != nil {
				return nil, &LoadError{Cause: err, Module: cfg.ModuleName, Path: cfg.OutputPath, Stage: StageEvaluate}
			}
			ports, err := sb.load(cfg, source, flags, options.loadTimeout)
			if err != nil {
				return nil, err
			}
			b, err := wrap(sb, ports, options.handlers)
			if err != nil {
				return nil, &LoadError{Cause: err, Module: cfg.ModuleName, Path: cfg.OutputPath, Stage: StageInstantiate}
			}
			return b, nil
		})
		if err != nil {
			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				// cancelled, or the loop refused the task
				err = &LoadError{Cause: err, Module: cfg.ModuleName, Path: cfg.OutputPath, Stage: StageEvaluate}
			}
			return err
		}
		return nil
	})
	if err != nil {
		logger.Err().
			Str(`source`, cfg.SourcePath).
			Err(err).
			Log(`run failed`)
		_ = stop()
		return nil, err
	}
	bridge.stop = stop

	logger.Info().
		Str(`module`, cfg.ModuleName).
		Int(`ports`, len(bridge.infos)).
		Dur(`elapsed`, time.Since(start)).
		Log(`module running`)

	return bridge, nil
}

// startLoop returns the loop to run the sandbox on, and a func that stops
// it. A caller-provided loop is never stopped.
func startLoop(options *runOptions) (*eventloop.Loop, func() error, error) {
	if options.loop != nil {
		return options.loop, func() error { return nil }, nil
	}

	loop, err := eventloop.New()
	if err != nil {
		return nil, nil, fmt.Errorf("gojaelm: failed to create loop: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- loop.Run(ctx)
	}()

	stop := func() error {
		cancel()
		err := <-done
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		return err
	}

	return loop, stop, nil
}
