package gojaelm

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// WithCheckedPath runs fn only if nothing exists at path, and removes
// whatever is at path once fn returns (or panics).
//
// A pre-existing file results in a [*PathCollisionError], and fn is never
// called. Once fn has been entered, removal is unconditional: the path was
// free beforehand, so anything there afterwards belongs to fn. A removal
// failure is joined with the error from fn.
func WithCheckedPath(path string, fn func() error) (err error) {
	if _, statErr := os.Lstat(path); statErr == nil {
		return &PathCollisionError{Path: path}
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return fmt.Errorf("gojaelm: check output path: %w", statErr)
	}

	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			err = errors.Join(err, fmt.Errorf("gojaelm: remove artifact: %w", rmErr))
		}
	}()

	return fn()
}
