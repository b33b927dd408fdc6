// Package gojaelm runs compiled Elm programs headless, inside a [goja]
// JavaScript runtime, and bridges their ports to Go.
//
// # Overview
//
// [Run] takes the path to an Elm source file and a set of initial values
// (Elm "flags"). It compiles the source to a JavaScript artifact next to it,
// evaluates the artifact in a fresh sandbox, starts the module, then removes
// the artifact. The returned [Bridge] talks to the running module:
//
//	bridge, err := gojaelm.Run(ctx, "Counter.elm", map[string]any{"start": 0})
//	if err != nil {
//		return err
//	}
//	defer bridge.Close()
//
//	bridge.OnFromModule("value", func(args ...any) {
//		fmt.Println("value is now", args[0])
//	})
//	_ = bridge.SendToModule("increment")
//
// # Sandbox
//
// Each run gets its own runtime, with no access to the host process. Beyond
// the ECMAScript built-ins, the only globals are those listed in
// [SandboxGlobals]: a minimal in-memory `document` and `window`, and timers
// that run on an [eventloop.Loop].
//
// # Module conventions
//
// The artifact must define a global `Elm` registry holding the module under
// its identifier (see [ModuleIdentifier]). The module is started by the first
// of these that exists:
//   - Elm.fullscreen(Elm.Module, flags)
//   - Elm.Module.fullscreen(flags)
//   - Elm.Module.init({flags: flags})
//
// # Concurrency
//
// All JavaScript runs on the event loop goroutine. [Bridge.SendToModule] may
// be called from any goroutine, and handlers registered with
// [Bridge.OnFromModule] are invoked on the loop goroutine.
//
// The loop keeps running after [Run] returns, so a module may publish before
// the caller gets to [Bridge.OnFromModule]. Handlers passed to Run via
// [WithHandler] or [WithPortHandler] are attached before the module starts,
// and see every value it publishes.
//
// # Errors
//
// Failures are reported as [*PathCollisionError], [*CompileError] or
// [*LoadError], all of which support [errors.As]. Misuse of a port (sending
// to one that does not exist, for example) is not an error.
package gojaelm
