package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"
)

// ErrSilentExit signals a non-zero exit where the command already printed its
// own diagnostics.
var ErrSilentExit = errors.New("silent exit")

// Command is a dispatchable subcommand.
type Command struct {
	Flags   *flag.FlagSet
	Usage   string
	Short   string
	Long    string
	Aliases []string
	Exec    func(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) error
}

// Name returns the command name (first word of Usage).
func (c *Command) Name() string {
	return strings.Fields(c.Usage)[0]
}

// HelpLine returns the one-line summary used in the command list.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-8s %s", c.Name(), c.Short)
}

// Run parses the command's flags and executes it. Returns the exit code.
func (c *Command) Run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) int {
	c.Flags.Usage = func() {}
	c.Flags.SetOutput(&strings.Builder{})

	err := c.Flags.Parse(args)
	if err != nil {
		fprintError(stderr, err)
		c.printHelp(stderr)

		return 1
	}

	help, _ := c.Flags.GetBool("help")
	if help {
		c.printHelp(stdout)

		return 0
	}

	err = c.Exec(ctx, stdin, stdout, stderr, c.Flags.Args())
	if err == nil {
		return 0
	}

	if errors.Is(err, ErrSilentExit) {
		return 1
	}

	fprintError(stderr, err)

	return 1
}

func (c *Command) printHelp(output io.Writer) {
	fprintln(output, "Usage: envspawn", c.Usage)
	fprintln(output)
	fprintln(output, c.Long)

	if c.Flags.HasFlags() {
		fprintln(output)
		fprintln(output, "Flags:")
		fprintln(output, strings.TrimRight(c.Flags.FlagUsages(), "\n"))
	}
}
