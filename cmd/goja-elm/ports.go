package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	gojaelm "github.com/joeycumines/goja-elm"
	"github.com/urfave/cli/v3"
)

var portsCmd = &cli.Command{
	Name:      "ports",
	Usage:     "Start a module and list its ports",
	ArgsUsage: "<Source.elm>",
	Flags:     moduleFlags(),
	Action: func(ctx context.Context, cmd *cli.Command) error {
		logger, err := commandLogger(cmd)
		if err != nil {
			return err
		}

		bridge, err := start(ctx, cmd, logger)
		if err != nil {
			return err
		}
		defer bridge.Close()

		return printPorts(os.Stdout, bridge.Ports())
	},
}

func printPorts(w io.Writer, ports []gojaelm.PortInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PORT\tSEND\tSUBSCRIBE")
	for _, p := range ports {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, yesNo(p.Sendable), yesNo(p.Subscribable))
	}
	return tw.Flush()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
