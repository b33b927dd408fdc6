package gojaelm

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"time"
)

const (
	// DefaultCompilerCommand is the executable [ExecCompiler] runs when Path
	// is empty.
	DefaultCompilerCommand = "elm-make"

	// DefaultCompileTimeout bounds a single compiler invocation.
	DefaultCompileTimeout = 2 * time.Minute
)

// Compiler turns an Elm source file into a JavaScript artifact written to
// outputPath. Implementations block until the artifact is written or the
// attempt fails; there are no retries.
type Compiler interface {
	Compile(ctx context.Context, sourcePath, outputPath string) error
}

// CompilerFunc adapts a function to the [Compiler] interface.
type CompilerFunc func(ctx context.Context, sourcePath, outputPath string) error

// Compile implements [Compiler].
func (f CompilerFunc) Compile(ctx context.Context, sourcePath, outputPath string) error {
	return f(ctx, sourcePath, outputPath)
}

// ExecCompiler runs an external compiler as a subprocess:
//
//	Path Args... sourcePath --output outputPath
//
// Failures are reported as [*CompileError]. If the process outlives Timeout
// (or ctx), it is killed and the error's cause is [ErrCompileTimeout].
type ExecCompiler struct {
	// Path is the executable, resolved via PATH. Defaults to
	// [DefaultCompilerCommand].
	Path string

	// Args are placed before the source path, e.g. "make" for the `elm make`
	// form of the 0.19 toolchain.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env is appended to the current environment.
	Env []string

	// Timeout bounds the invocation. Zero means [DefaultCompileTimeout],
	// negative means no bound beyond ctx.
	Timeout time.Duration
}

// Compile implements [Compiler].
func (x *ExecCompiler) Compile(ctx context.Context, sourcePath, outputPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	timeout := x.Timeout
	if timeout == 0 {
		timeout = DefaultCompileTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	path := x.Path
	if path == "" {
		path = DefaultCompilerCommand
	}

	args := make([]string, 0, len(x.Args)+3)
	args = append(args, x.Args...)
	args = append(args, sourcePath, "--output", outputPath)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = x.Dir
	if len(x.Env) != 0 {
		cmd.Env = append(os.Environ(), x.Env...)
	}
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			err = errors.Join(ErrCompileTimeout, err)
		} else {
			err = errors.Join(ctxErr, err)
		}
	}

	return &CompileError{
		Cause:  err,
		Source: sourcePath,
		Output: outputPath,
		Stderr: stderr.Bytes(),
	}
}
