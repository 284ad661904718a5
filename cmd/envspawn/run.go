package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/envspawn/envspawn/internal/logging"
	"github.com/envspawn/envspawn/launch"
)

// Build metadata, set via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// workerLauncher is the slice of *launch.Launcher the commands need; tests
// substitute a stub so no process is ever forked.
type workerLauncher interface {
	Launch(ctx context.Context, req launch.Request) (launch.Result, error)
	Launched() int
}

// newLauncher is swapped out in tests.
var newLauncher = func() workerLauncher {
	return launch.NewLauncher()
}

// Run is the main entry point. Returns the exit code.
// sigCh can be nil if signal handling is not needed (e.g., in tests).
func Run(stdin io.Reader, stdout, stderr io.Writer, args []string, environ []string, sigCh <-chan os.Signal) int {
	globalFlags := flag.NewFlagSet("envspawn", flag.ContinueOnError)
	globalFlags.SetInterspersed(false)
	globalFlags.Usage = func() {}
	globalFlags.SetOutput(&strings.Builder{})

	flagHelp := globalFlags.BoolP("help", "h", false, "Show help")
	flagVersion := globalFlags.BoolP("version", "v", false, "Show version and exit")
	flagConfig := globalFlags.String("config", "", "Use specified config `file`")
	flagManifest := globalFlags.String("manifest", "", "Use specified environment manifest `file`")
	flagLogFile := globalFlags.String("log-file", "", "Append launch records to `file`")

	err := globalFlags.Parse(args[1:])
	if err != nil {
		fprintError(stderr, err)
		fprintln(stderr)
		printGlobalOptions(stderr)

		return 1
	}

	if *flagVersion {
		if commit == "none" && date == "unknown" {
			fprintf(stdout, "envspawn %s (built from source)\n", version)
		} else {
			fprintf(stdout, "envspawn %s (%s, %s)\n", version, commit, date)
		}

		return 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := LoadConfig(LoadConfigInput{
		ConfigPath: *flagConfig,
		Environ:    environ,
	})
	if err != nil {
		fprintError(stderr, err)

		return 1
	}

	if *flagManifest != "" {
		cfg.Manifest = *flagManifest
	}

	if *flagLogFile != "" {
		cfg.LogFile = *flagLogFile
	}

	// A worker_dir override must be visible to all three lookup methods, so
	// it goes into the real environment as well as the snapshot.
	if cfg.WorkerDir != "" {
		err = os.Setenv(launch.WorkerDirVar, cfg.WorkerDir)
		if err != nil {
			fprintError(stderr, err)

			return 1
		}

		environ = append(environ, launch.WorkerDirVar+"="+cfg.WorkerDir)
	}

	log := logging.Nop()

	if cfg.LogFile != "" {
		log, err = logging.Open(cfg.LogFile)
		if err != nil {
			fprintError(stderr, fmt.Errorf("opening log file: %w", err))

			return 1
		}
	}

	defer func() {
		_ = log.Sync()
	}()

	launcher := newLauncher()

	commands := []*Command{
		RunCmd(&cfg, environ, launcher, log),
		SpawnCmd(&cfg, environ, launcher, log),
		EnvCmd(),
	}

	commandMap := make(map[string]*Command, len(commands)*2)
	for _, cmd := range commands {
		commandMap[cmd.Name()] = cmd
		for _, alias := range cmd.Aliases {
			commandMap[alias] = cmd
		}
	}

	commandAndArgs := globalFlags.Args()

	if *flagHelp {
		printUsage(stdout, commands)

		return 0
	}

	// Bare `envspawn` starts the interactive session.
	cmdName := "run"
	if len(commandAndArgs) > 0 {
		cmdName = commandAndArgs[0]
		commandAndArgs = commandAndArgs[1:]
	}

	cmd, ok := commandMap[cmdName]
	if !ok {
		fprintError(stderr, fmt.Errorf("unknown command %q", cmdName))
		fprintln(stderr)
		printUsage(stderr, commands)

		return 1
	}

	// Run command in goroutine so we can handle signals
	done := make(chan int, 1)

	go func() {
		done <- cmd.Run(ctx, stdin, stdout, stderr, commandAndArgs)
	}()

	// Handle nil sigCh for tests
	if sigCh == nil {
		return <-done
	}

	select {
	case exitCode := <-done:
		return exitCode
	case <-sigCh:
		fprintln(stderr, "Interrupted, finishing up... (Ctrl+C again to force exit)")
		cancel()
	}

	select {
	case <-done:
		return 130
	case <-time.After(5 * time.Second):
		fprintln(stderr, "Shutdown timed out, forced exit.")

		return 130
	case <-sigCh:
		fprintln(stderr, "Forced exit.")

		return 130
	}
}

func fprintln(output io.Writer, a ...any) {
	_, _ = fmt.Fprintln(output, a...)
}

func fprintf(output io.Writer, format string, a ...any) {
	_, _ = fmt.Fprintf(output, format, a...)
}

// ANSI color codes for terminal output.
const (
	colorRed   = "\033[31m"
	colorReset = "\033[0m"
)

// fprintError prints an error message with optional red coloring for TTY.
func fprintError(output io.Writer, err error) {
	if IsTerminal() {
		fprintln(output, colorRed+"error:"+colorReset, err)
	} else {
		fprintln(output, "error:", err)
	}
}

const globalOptionsHelp = `  -h, --help               Show help
  -v, --version            Show version and exit
      --config <file>      Use specified config file
      --manifest <file>    Use specified environment manifest file
      --log-file <file>    Append launch records to file`

func printGlobalOptions(output io.Writer) {
	fprintln(output, "Usage: envspawn [flags] [command] [args]")
	fprintln(output)
	fprintln(output, "Global flags:")
	fprintln(output, globalOptionsHelp)
	fprintln(output)
	fprintln(output, "Run 'envspawn --help' for a list of commands.")
}

func printUsage(output io.Writer, commands []*Command) {
	fprintln(output, "envspawn - interactive launcher for workers with filtered environments")
	fprintln(output)
	fprintln(output, "Usage: envspawn [flags] [command] [args]")
	fprintln(output)
	fprintln(output, "Flags:")
	fprintln(output, globalOptionsHelp)
	fprintln(output)
	fprintln(output, "Commands:")

	for _, cmd := range commands {
		fprintln(output, cmd.HelpLine())
	}

	fprintln(output)
	fprintln(output, "Run 'envspawn <command> --help' for more information on a command.")
}

// isTerminal is a function variable that returns true if stdin is a terminal.
// It can be overridden in tests to control TTY behavior.
var isTerminal = func() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}

	return (stat.Mode() & os.ModeCharDevice) != 0
}

// IsTerminal returns true if stdin is a terminal.
func IsTerminal() bool {
	return isTerminal()
}

// zapLauncherFields keeps launch log lines uniform across run and spawn.
func zapLauncherFields(res launch.Result) []any {
	return []any{
		zap.String("worker", res.Name),
		zap.Int("pid", res.PID),
		zap.Int("env_count", res.EnvCount),
		zap.Strings("missing", res.Missing),
	}
}
