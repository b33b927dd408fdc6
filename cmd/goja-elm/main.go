// Command goja-elm compiles an Elm program, runs it headless inside an
// embedded JavaScript sandbox, and connects its ports to stdin and stdout.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

// Version is set during build using ldflags
var Version = "dev"

func main() {
	app := &cli.Command{
		Name:    "goja-elm",
		Version: Version,
		Usage:   "Run Elm programs headless, talking to their ports over JSON lines",
		Commands: []*cli.Command{
			runCmd,
			portsCmd,
			{
				Name:  "version",
				Usage: "Print the version information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Printf("goja-elm version %s\n", cmd.Root().Version)
					return nil
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.Run(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
