package main

import (
	"context"
	"io"

	flag "github.com/spf13/pflag"
)

// EnvCmd creates the env command: print the controller's environment the way
// the interactive session does at startup.
func EnvCmd() *Command {
	flags := flag.NewFlagSet("env", flag.ContinueOnError)
	flags.BoolP("help", "h", false, "Show help")

	return &Command{
		Flags:   flags,
		Usage:   "env",
		Short:   "Print the sorted process environment",
		Long:    "Print the controller's environment, byte-wise sorted (LC_COLLATE=C order).",
		Aliases: []string{},
		Exec: func(_ context.Context, _ io.Reader, stdout, _ io.Writer, _ []string) error {
			printSortedEnviron(stdout)

			return nil
		},
	}
}
