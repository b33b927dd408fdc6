package gojaelm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompileError(t *testing.T) {
	cause := errors.New("exit status 1")
	err := &CompileError{Cause: cause, Source: "Counter.elm", Output: "Counter.js", Stderr: []byte("bad syntax\n\n")}

	assert.Equal(t, "gojaelm: compile Counter.elm: exit status 1: bad syntax", err.Error())
	assert.ErrorIs(t, err, cause)

	err.Stderr = nil
	assert.Equal(t, "gojaelm: compile Counter.elm: exit status 1", err.Error())
}

func TestLoadError(t *testing.T) {
	cause := errors.New("ReferenceError: x is not defined")
	err := &LoadError{Cause: cause, Module: "Counter", Path: "Counter.js", Stage: StageEvaluate}

	assert.Equal(t, "gojaelm: load Counter (Counter.js): evaluate: ReferenceError: x is not defined", err.Error())
	assert.ErrorIs(t, err, cause)

	err.Cause = nil
	assert.Equal(t, "gojaelm: load Counter (Counter.js): evaluate failed", err.Error())
}

func TestLoadStage_String(t *testing.T) {
	assert.Equal(t, "read", StageRead.String())
	assert.Equal(t, "evaluate", StageEvaluate.String())
	assert.Equal(t, "resolve", StageResolve.String())
	assert.Equal(t, "instantiate", StageInstantiate.String())
	assert.Equal(t, "LoadStage(0)", LoadStage(0).String())
}

func TestPathCollisionError(t *testing.T) {
	err := &PathCollisionError{Path: "app/Counter.js"}
	assert.Equal(t, "gojaelm: file with name (app/Counter.js) would be overwritten", err.Error())
}
