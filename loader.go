package gojaelm

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// errInterrupted is the value passed to [goja.Runtime.Interrupt] when the
// load timeout expires.
var errInterrupted = errors.New("gojaelm: load timed out")

// load evaluates the artifact source inside the sandbox, then starts the
// module named by cfg, passing flags (the prepared cfg.InitialValues). It
// returns the module's ports object, which is nil if the module exposes no
// ports.
//
// Must be called on the loop goroutine, exactly once per sandbox.
func (x *sandbox) load(cfg RunConfig, source []byte, flags hostValue, timeout time.Duration) (ports *goja.Object, err error) {
	if timeout > 0 {
		timer := time.AfterFunc(timeout, func() { x.runtime.Interrupt(errInterrupted) })
		defer func() {
			timer.Stop()
			x.runtime.ClearInterrupt()
		}()
	}

	loadErr := func(stage LoadStage, cause error) error {
		return &LoadError{
			Cause:  cause,
			Module: cfg.ModuleName,
			Path:   cfg.OutputPath,
			Stage:  stage,
		}
	}

	program, err := goja.Compile(cfg.OutputPath, string(source), false)
	if err != nil {
		return nil, loadErr(StageEvaluate, err)
	}
	if _, err := x.runtime.RunProgram(program); err != nil {
		return nil, loadErr(StageEvaluate, err)
	}

	registry, ok := x.runtime.Get("Elm").(*goja.Object)
	if !ok {
		return nil, loadErr(StageResolve, errors.New("no Elm registry in the artifact's global scope"))
	}

	entry := lookupPath(registry, cfg.ModuleName)
	if entry == nil {
		return nil, loadErr(StageResolve, fmt.Errorf("Elm.%s is not defined", cfg.ModuleName))
	}

	flagsValue, err := x.toJS(flags)
	if err != nil {
		return nil, loadErr(StageInstantiate, fmt.Errorf("convert initial values: %w", err))
	}

	var result goja.Value
	if fn, ok := goja.AssertFunction(registry.Get("fullscreen")); ok {
		result, err = fn(registry, entry, flagsValue)
	} else if fn, ok := goja.AssertFunction(entry.Get("fullscreen")); ok {
		result, err = fn(entry, flagsValue)
	} else if fn, ok := goja.AssertFunction(entry.Get("init")); ok {
		options := x.runtime.NewObject()
		_ = options.Set("flags", flagsValue)
		result, err = fn(entry, options)
	} else {
		return nil, loadErr(StageResolve, fmt.Errorf("Elm.%s has no fullscreen or init function", cfg.ModuleName))
	}
	if err != nil {
		return nil, loadErr(StageInstantiate, err)
	}

	instance, ok := result.(*goja.Object)
	if !ok {
		return nil, loadErr(StageInstantiate, fmt.Errorf("Elm.%s started without returning an instance", cfg.ModuleName))
	}

	ports, _ = instance.Get("ports").(*goja.Object)

	x.logger.Debug().
		Str(`module`, cfg.ModuleName).
		Str(`path`, cfg.OutputPath).
		Log(`module instantiated`)

	return ports, nil
}

// lookupPath resolves a dotted module name, e.g. "Pages.Home", against the
// registry.
func lookupPath(registry *goja.Object, name string) *goja.Object {
	current := registry
	for _, part := range strings.Split(name, ".") {
		next, ok := current.Get(part).(*goja.Object)
		if !ok {
			return nil
		}
		current = next
	}
	return current
}
