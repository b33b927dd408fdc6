package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	gojaelm "github.com/joeycumines/goja-elm"
	"github.com/joeycumines/logiface"
	"github.com/urfave/cli/v3"
)

// maxLineSize bounds a single message read from stdin.
const maxLineSize = 1 << 20

var runCmd = &cli.Command{
	Name:      "run",
	Usage:     "Run a module, piping its ports through stdin and stdout",
	ArgsUsage: "<Source.elm>",
	Description: `Each line read from stdin is a JSON object {"port": name, "args": [...]},
sent to the named port. Every value the module publishes is written to stdout
in the same shape. Runs until stdin is closed or the process is interrupted.`,
	Flags: moduleFlags(),
	Action: func(ctx context.Context, cmd *cli.Command) error {
		logger, err := commandLogger(cmd)
		if err != nil {
			return err
		}

		bridge, err := start(ctx, cmd, logger, gojaelm.WithPortHandler(forward(os.Stdout, logger)))
		if err != nil {
			return err
		}

		pumpErr := make(chan error, 1)
		go func() {
			pumpErr <- pump(bridge, os.Stdin, logger)
		}()

		select {
		case <-ctx.Done():
			logger.Info().Log(`interrupted`)
		case err = <-pumpErr:
		}

		if closeErr := bridge.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		if err != nil {
			return cli.Exit(err, 1)
		}
		return nil
	},
}

// message is the JSON line shape, in both directions.
type message struct {
	Port string `json:"port"`
	Args []any  `json:"args"`
}

type sender interface {
	SendToModule(name string, args ...any) error
}

// pump sends each message read from r to the module, until EOF. Lines that
// are blank are skipped, and malformed lines are logged and skipped.
func pump(bridge sender, r io.Reader, logger *logiface.Logger[logiface.Event]) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var msg message
		if err := json.Unmarshal([]byte(text), &msg); err != nil {
			logger.Warning().
				Int(`line`, line).
				Err(err).
				Log(`skipping malformed message`)
			continue
		}
		if msg.Port == "" {
			logger.Warning().
				Int(`line`, line).
				Log(`skipping message without port`)
			continue
		}

		if err := bridge.SendToModule(msg.Port, msg.Args...); err != nil {
			if errors.Is(err, gojaelm.ErrBridgeClosed) {
				return nil
			}
			logger.Err().
				Int(`line`, line).
				Str(`port`, msg.Port).
				Err(err).
				Log(`send failed`)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	return nil
}

// forward returns a handler writing every value published by the module to
// w, one message per line.
func forward(w io.Writer, logger *logiface.Logger[logiface.Event]) func(port string, args ...any) {
	var (
		mu  sync.Mutex
		enc = json.NewEncoder(w)
	)
	return func(port string, args ...any) {
		if args == nil {
			args = []any{}
		}
		mu.Lock()
		defer mu.Unlock()
		if err := enc.Encode(message{Port: port, Args: args}); err != nil {
			logger.Err().
				Str(`port`, port).
				Err(err).
				Log(`failed to write message`)
		}
	}
}
