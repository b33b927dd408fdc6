// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package gojaelm

import (
	"fmt"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/goja-elm/internal/dom"
	"github.com/joeycumines/logiface"
)

// SandboxGlobals are the only globals installed in a sandbox, on top of the
// ECMAScript built-ins every goja runtime provides.
var SandboxGlobals = []string{
	"document",
	"window",
	"setInterval",
	"clearInterval",
	"setTimeout",
	"clearTimeout",
}

// sandbox is an isolated global namespace for evaluating a compiled
// artifact. It holds a fresh goja runtime, a fresh DOM, and timers that
// schedule onto the host event loop.
//
// A sandbox must only be touched from the loop goroutine, and is never
// reused across runs.
type sandbox struct {
	runtime *goja.Runtime
	js      *eventloop.JS
	loop    *eventloop.Loop
	doc     *dom.Document
	logger  *logiface.Logger[logiface.Event]
}

// newSandbox builds the runtime and binds its globals.
func newSandbox(loop *eventloop.Loop, logger *logiface.Logger[logiface.Event]) (*sandbox, error) {
	if loop == nil {
		return nil, fmt.Errorf("gojaelm: loop cannot be nil")
	}

	js, err := eventloop.NewJS(loop)
	if err != nil {
		return nil, fmt.Errorf("gojaelm: failed to create JS adapter: %w", err)
	}

	runtime := goja.New()
	doc, err := dom.New(runtime)
	if err != nil {
		return nil, fmt.Errorf("gojaelm: failed to create document: %w", err)
	}

	x := &sandbox{
		runtime: runtime,
		js:      js,
		loop:    loop,
		doc:     doc,
		logger:  logger,
	}

	doc.OnListenerError = func(err error) {
		x.logger.Warning().
			Err(err).
			Log(`dom event listener threw`)
	}

	if err := x.bind(); err != nil {
		return nil, err
	}

	return x, nil
}

// bind installs the sandbox globals. The window carries the timers as well,
// so `window.setTimeout` and bare `setTimeout` are the same function.
func (x *sandbox) bind() error {
	window := x.doc.Window()
	timers := map[string]func(goja.FunctionCall) goja.Value{
		"setTimeout":    x.setTimeout,
		"clearTimeout":  x.clearTimeout,
		"setInterval":   x.setInterval,
		"clearInterval": x.clearInterval,
	}
	for name, fn := range timers {
		value := x.runtime.ToValue(fn)
		if err := x.runtime.Set(name, value); err != nil {
			return fmt.Errorf("gojaelm: bind %s: %w", name, err)
		}
		if err := window.Set(name, value); err != nil {
			return fmt.Errorf("gojaelm: bind window.%s: %w", name, err)
		}
	}
	if err := x.runtime.Set("document", x.doc.Object()); err != nil {
		return fmt.Errorf("gojaelm: bind document: %w", err)
	}
	if err := x.runtime.Set("window", window); err != nil {
		return fmt.Errorf("gojaelm: bind window: %w", err)
	}
	return nil
}

// timerCallback validates the callback argument, and returns a function that
// invokes it with any extra arguments, logging exceptions rather than
// letting them unwind the loop.
func (x *sandbox) timerCallback(name string, call goja.FunctionCall) func() {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(x.runtime.NewTypeError("%s requires a function as first argument", name))
	}
	var args []goja.Value
	if len(call.Arguments) > 2 {
		args = append(args, call.Arguments[2:]...)
	}
	return func() {
		if _, err := fn(goja.Undefined(), args...); err != nil {
			x.logger.Err().
				Str(`timer`, name).
				Err(err).
				Log(`timer callback threw`)
		}
	}
}

func (x *sandbox) delay(call goja.FunctionCall) int {
	delayMs := int(call.Argument(1).ToInteger())
	if delayMs < 0 {
		delayMs = 0
	}
	return delayMs
}

func (x *sandbox) setTimeout(call goja.FunctionCall) goja.Value {
	id, err := x.js.SetTimeout(x.timerCallback("setTimeout", call), x.delay(call))
	if err != nil {
		panic(x.runtime.NewGoError(err))
	}
	return x.runtime.ToValue(id)
}

func (x *sandbox) clearTimeout(call goja.FunctionCall) goja.Value {
	if id, ok := timerID(call); ok {
		_ = x.js.ClearTimeout(id)
	}
	return goja.Undefined()
}

func (x *sandbox) setInterval(call goja.FunctionCall) goja.Value {
	id, err := x.js.SetInterval(x.timerCallback("setInterval", call), x.delay(call))
	if err != nil {
		panic(x.runtime.NewGoError(err))
	}
	return x.runtime.ToValue(id)
}

func (x *sandbox) clearInterval(call goja.FunctionCall) goja.Value {
	if id, ok := timerID(call); ok {
		_ = x.js.ClearInterval(id)
	}
	return goja.Undefined()
}

// timerID extracts a timer ID, ignoring values that could never have been
// returned by setTimeout or setInterval (as browsers do).
func timerID(call goja.FunctionCall) (uint64, bool) {
	v := call.Argument(0)
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return 0, false
	}
	id := v.ToInteger()
	if id <= 0 {
		return 0, false
	}
	return uint64(id), true
}
