package gojaelm

import (
	"encoding/json"
	"errors"

	"github.com/dop251/goja"
)

// hostValue is a host value prepared for conversion into the sandbox.
// Preparation happens on the caller's goroutine, so encoding errors surface
// synchronously. Conversion happens on the loop goroutine.
type hostValue struct {
	scalar  any
	encoded []byte
}

// prepare validates v. Scalars (and nil) pass through unchanged, anything
// else is encoded as JSON, so that maps, slices and structs arrive as plain
// objects and arrays rather than wrapped Go values.
func prepare(v any) (hostValue, error) {
	switch v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return hostValue{scalar: v}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return hostValue{}, err
	}
	return hostValue{encoded: b}, nil
}

func prepareAll(values []any) ([]hostValue, error) {
	out := make([]hostValue, len(values))
	for i, v := range values {
		h, err := prepare(v)
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}

// toJS converts a prepared value into the sandbox runtime.
func (x *sandbox) toJS(v hostValue) (goja.Value, error) {
	if v.encoded == nil {
		if v.scalar == nil {
			return goja.Null(), nil
		}
		return x.runtime.ToValue(v.scalar), nil
	}
	parse, ok := goja.AssertFunction(x.runtime.Get("JSON").ToObject(x.runtime).Get("parse"))
	if !ok {
		return nil, errors.New("JSON.parse is not a function")
	}
	return parse(goja.Undefined(), x.runtime.ToValue(string(v.encoded)))
}

// fromJS exports the arguments of a call made by the module.
func fromJS(args []goja.Value) []any {
	out := make([]any, len(args))
	for i, v := range args {
		if v != nil {
			out[i] = v.Export()
		}
	}
	return out
}
