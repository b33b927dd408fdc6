// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package gojaelm

import (
	"errors"
	"fmt"
)

var (
	// ErrBridgeClosed is returned by [Bridge.SendToModule] after [Bridge.Close],
	// or once the underlying event loop has stopped.
	ErrBridgeClosed = errors.New("gojaelm: bridge closed")

	// ErrCompileTimeout is the cause of a [CompileError] raised because the
	// compiler did not exit within its time bound.
	ErrCompileTimeout = errors.New("gojaelm: compile timed out")
)

// PathCollisionError is returned when a file already exists at the path the
// compiled artifact would be written to. Nothing is compiled or modified.
type PathCollisionError struct {
	Path string
}

// Error implements the error interface.
func (e *PathCollisionError) Error() string {
	return fmt.Sprintf("gojaelm: file with name (%s) would be overwritten", e.Path)
}

// CompileError is returned when the external compiler cannot be invoked,
// exits non-zero, or exceeds its time bound.
type CompileError struct {
	Cause  error
	Source string
	Output string
	// Stderr holds whatever the compiler wrote to its standard error, if
	// anything was captured.
	Stderr []byte
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	msg := fmt.Sprintf("gojaelm: compile %s: %v", e.Source, e.Cause)
	if len(e.Stderr) != 0 {
		msg += ": " + string(trimTrailingNewlines(e.Stderr))
	}
	return msg
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *CompileError) Unwrap() error {
	return e.Cause
}

// LoadStage identifies the step of module loading that failed.
type LoadStage int

const (
	// StageRead means the compiled artifact could not be read.
	StageRead LoadStage = iota + 1

	// StageEvaluate means evaluating the artifact inside the sandbox threw.
	StageEvaluate

	// StageResolve means the Elm registry, the module entry, or its startup
	// function could not be found.
	StageResolve

	// StageInstantiate means the module's startup function threw.
	StageInstantiate
)

// String returns the string representation of the stage.
func (x LoadStage) String() string {
	switch x {
	case StageRead:
		return "read"
	case StageEvaluate:
		return "evaluate"
	case StageResolve:
		return "resolve"
	case StageInstantiate:
		return "instantiate"
	default:
		return fmt.Sprintf("LoadStage(%d)", int(x))
	}
}

// LoadError is returned when the compiled artifact cannot be evaluated, or
// the module cannot be found in, or started from, the Elm registry.
type LoadError struct {
	Cause  error
	Module string
	Path   string
	Stage  LoadStage
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("gojaelm: load %s (%s): %s failed", e.Module, e.Path, e.Stage)
	}
	return fmt.Sprintf("gojaelm: load %s (%s): %s: %v", e.Module, e.Path, e.Stage, e.Cause)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *LoadError) Unwrap() error {
	return e.Cause
}

func trimTrailingNewlines(b []byte) []byte {
	for len(b) != 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
