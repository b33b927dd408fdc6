package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strings"

	gojaelm "github.com/joeycumines/goja-elm"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

const envPrefix = "GOJA_ELM_"

// moduleFlags are shared by every command that runs a module.
func moduleFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "flags",
			Usage:   "Initial values as a JSON object, merged over --flags-file",
			Sources: cli.EnvVars(envPrefix + "FLAGS"),
		},
		&cli.StringFlag{
			Name:    "flags-file",
			Usage:   "Path to a TOML (.toml) or JSON file holding the initial values",
			Sources: cli.EnvVars(envPrefix + "FLAGS_FILE"),
		},
		&cli.StringFlag{
			Name:    "compiler",
			Usage:   "Elm compiler executable",
			Value:   gojaelm.DefaultCompilerCommand,
			Sources: cli.EnvVars(envPrefix + "COMPILER"),
		},
		&cli.StringSliceFlag{
			Name:    "compiler-arg",
			Usage:   "Argument placed before the source path, e.g. make (repeatable)",
			Sources: cli.EnvVars(envPrefix + "COMPILER_ARGS"),
		},
		&cli.DurationFlag{
			Name:    "compile-timeout",
			Usage:   "Bound on a single compiler invocation",
			Value:   gojaelm.DefaultCompileTimeout,
			Sources: cli.EnvVars(envPrefix + "COMPILE_TIMEOUT"),
		},
		&cli.StringFlag{
			Name:    "module",
			Usage:   "Module identifier, overriding the one derived from the file name",
			Sources: cli.EnvVars(envPrefix + "MODULE"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level written to stderr (" + strings.Join(levelNames(), ", ") + ")",
			Value:   logiface.LevelWarning.String(),
			Sources: cli.EnvVars(envPrefix + "LOG_LEVEL"),
		},
	}
}

// commandLogger builds the stderr logger configured by --log-level.
func commandLogger(cmd *cli.Command) (*logiface.Logger[logiface.Event], error) {
	level, err := parseLevel(cmd.String("log-level"))
	if err != nil {
		return nil, cli.Exit(err, 1)
	}
	return newLogger(os.Stderr, level), nil
}

// start runs the module named by the first argument, configured per
// moduleFlags.
func start(ctx context.Context, cmd *cli.Command, logger *logiface.Logger[logiface.Event], extra ...gojaelm.Option) (*gojaelm.Bridge, error) {
	if cmd.Args().Len() < 1 {
		return nil, cli.Exit("source file path required", 1)
	}
	source := cmd.Args().First()

	initialValues, err := loadInitialValues(cmd.String("flags"), cmd.String("flags-file"))
	if err != nil {
		return nil, cli.Exit(fmt.Errorf("failed to load initial values: %w", err), 1)
	}

	opts := []gojaelm.Option{
		gojaelm.WithLogger(logger),
		gojaelm.WithCompiler(&gojaelm.ExecCompiler{
			Path:    cmd.String("compiler"),
			Args:    cmd.StringSlice("compiler-arg"),
			Timeout: cmd.Duration("compile-timeout"),
		}),
	}
	if name := cmd.String("module"); name != "" {
		opts = append(opts, gojaelm.WithModuleName(name))
	}
	opts = append(opts, extra...)

	bridge, err := gojaelm.Run(ctx, source, initialValues, opts...)
	if err != nil {
		return nil, cli.Exit(fmt.Errorf("failed to run %s: %w", source, err), 1)
	}
	return bridge, nil
}

func newLogger(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}

var levels = []logiface.Level{
	logiface.LevelDisabled,
	logiface.LevelEmergency,
	logiface.LevelAlert,
	logiface.LevelCritical,
	logiface.LevelError,
	logiface.LevelWarning,
	logiface.LevelNotice,
	logiface.LevelInformational,
	logiface.LevelDebug,
	logiface.LevelTrace,
}

func levelNames() []string {
	names := make([]string, len(levels))
	for i, level := range levels {
		names[i] = level.String()
	}
	return names
}

// parseLevel accepts the short keywords of [logiface.Level.String].
func parseLevel(s string) (logiface.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, level := range levels {
		if level.String() == s {
			return level, nil
		}
	}
	return logiface.LevelDisabled, fmt.Errorf("unknown log level %q", s)
}

// loadInitialValues reads the flags file (if any), then merges the inline
// JSON object over it.
func loadInitialValues(inline, path string) (map[string]any, error) {
	values := make(map[string]any)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var fromFile map[string]any
		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			err = toml.Unmarshal(data, &fromFile)
		default:
			err = json.Unmarshal(data, &fromFile)
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		maps.Copy(values, fromFile)
	}

	if inline != "" {
		var fromFlag map[string]any
		if err := json.Unmarshal([]byte(inline), &fromFlag); err != nil {
			return nil, fmt.Errorf("parse --flags: %w", err)
		}
		maps.Copy(values, fromFlag)
	}

	return values, nil
}
