package main

import (
	"bufio"
	"context"
	"io"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/envspawn/envspawn/launch"
)

const loopHelp = `Commands:
  +  launch a worker in the foreground (locator via getenv)
  *  launch a worker in the foreground (locator via environment snapshot)
  &  launch a worker in the background (locator via process table)
  p  print the sorted environment again
  q  quit`

// RunCmd creates the run command: the interactive launch session.
func RunCmd(cfg *Config, environ []string, launcher workerLauncher, log *zap.SugaredLogger) *Command {
	flags := flag.NewFlagSet("run", flag.ContinueOnError)
	flags.BoolP("help", "h", false, "Show help")
	flags.Bool("no-env", false, "Skip the startup environment listing")

	return &Command{
		Flags:   flags,
		Usage:   "run [flags]",
		Short:   "Interactive launch session (default)",
		Long:    "Read single-character commands and launch workers with manifest-filtered environments.\n\n" + loopHelp,
		Aliases: []string{},
		Exec: func(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, _ []string) error {
			manifest, err := cfg.ManifestPath(environ)
			if err != nil {
				return err
			}

			dir, _ := launch.SnapshotSource(environ).Lookup(launch.WorkerDirVar)

			err = launch.CheckSetup(dir, manifest)
			if err != nil {
				return err
			}

			noEnv, _ := flags.GetBool("no-env")
			if !noEnv {
				printSortedEnviron(stdout)
			}

			fprintln(stdout)
			fprintln(stdout, loopHelp)

			log.Infow("session started",
				zap.String("worker_dir", dir),
				zap.String("manifest", manifest),
			)

			loop(ctx, stdin, stdout, stderr, cfg, environ, manifest, launcher, log)

			return nil
		},
	}
}

// loop reads single-character commands until EOF, quit, or cancellation.
// Every launch error is recoverable; the loop keeps prompting.
func loop(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, cfg *Config, environ []string, manifest string, launcher workerLauncher, log *zap.SugaredLogger) {
	scanner := bufio.NewScanner(stdin)

	for {
		// Cancellation checkpoint before prompting; the other one sits in the
		// launcher, before a worker number is reserved.
		if ctx.Err() != nil {
			return
		}

		fprintf(stdout, "> ")

		if !scanner.Scan() {
			fprintln(stdout)

			return
		}

		line := scanner.Text()
		if line == "" {
			continue
		}

		// First character selects the command; the rest of the line is noise,
		// same as the historical getchar loop.
		switch cmd := line[0]; cmd {
		case '+':
			launchWorker(ctx, stdout, stderr, cfg, launcher, log, launch.Request{
				Method:       launch.MethodCanonical,
				ManifestPath: manifest,
			}, true)
		case '*':
			launchWorker(ctx, stdout, stderr, cfg, launcher, log, launch.Request{
				Method:       launch.MethodSnapshot,
				ManifestPath: manifest,
				Snapshot:     environ,
			}, true)
		case '&':
			launchWorker(ctx, stdout, stderr, cfg, launcher, log, launch.Request{
				Method:       launch.MethodProcessTable,
				ManifestPath: manifest,
			}, false)
		case 'p':
			printSortedEnviron(stdout)
		case 'q':
			fprintln(stdout, "bye")

			return
		default:
			fprintf(stdout, "unknown command %q\n", string(cmd))
			fprintln(stdout, loopHelp)
		}
	}
}

// launchWorker performs one launch and reports the outcome. Foreground
// launches are followed by a bounded pause so the worker's first lines tend
// to land before the next prompt; this is cosmetic ordering, not
// synchronization.
func launchWorker(ctx context.Context, stdout, stderr io.Writer, cfg *Config, launcher workerLauncher, log *zap.SugaredLogger, req launch.Request, foreground bool) {
	res, err := launcher.Launch(ctx, req)
	if err != nil {
		fprintError(stderr, err)
		log.Errorw("launch failed", zap.Error(err))

		return
	}

	suffix := " in background"
	if foreground {
		suffix = ""
	}

	fprintf(stdout, "launched %s (pid %d, %d vars)%s\n", res.Name, res.PID, res.EnvCount, suffix)

	for _, name := range res.Missing {
		fprintf(stderr, "warning: %s not found in source environment, omitted\n", name)
	}

	log.Infow("worker launched", zapLauncherFields(res)...)

	if foreground {
		time.Sleep(time.Duration(cfg.Pause()) * time.Millisecond)
	}
}

func printSortedEnviron(output io.Writer) {
	environ := launch.SortedEnviron()

	fprintf(output, "--- process environment (%d vars, sorted) ---\n", len(environ))

	for _, entry := range environ {
		fprintln(output, entry)
	}

	fprintln(output, "---")
}
