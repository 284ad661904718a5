package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/envspawn/envspawn/launch"
)

// ErrUnknownMethod is returned when --method names no lookup method.
var ErrUnknownMethod = errors.New("unknown lookup method (want getenv, snapshot or environ)")

// SpawnCmd creates the spawn command: a single non-interactive launch.
func SpawnCmd(cfg *Config, environ []string, launcher workerLauncher, log *zap.SugaredLogger) *Command {
	flags := flag.NewFlagSet("spawn", flag.ContinueOnError)
	flags.BoolP("help", "h", false, "Show help")
	flags.StringP("method", "m", "getenv", "Locator lookup `method`: getenv, snapshot or environ")
	flags.BoolP("background", "b", false, "Do not pause after launching")

	return &Command{
		Flags:   flags,
		Usage:   "spawn [flags]",
		Short:   "Launch one worker and exit",
		Long:    "Launch a single worker with a manifest-filtered environment, print its identity, and exit.",
		Aliases: []string{},
		Exec: func(ctx context.Context, _ io.Reader, stdout, stderr io.Writer, _ []string) error {
			methodName, _ := flags.GetString("method")

			method, err := parseMethod(methodName)
			if err != nil {
				return err
			}

			manifest, err := cfg.ManifestPath(environ)
			if err != nil {
				return err
			}

			res, err := launcher.Launch(ctx, launch.Request{
				Method:       method,
				ManifestPath: manifest,
				Snapshot:     environ,
			})
			if err != nil {
				log.Errorw("launch failed", zap.Error(err))

				return err
			}

			fprintf(stdout, "launched %s (pid %d, %d vars)\n", res.Name, res.PID, res.EnvCount)

			for _, name := range res.Missing {
				fprintf(stderr, "warning: %s not found in source environment, omitted\n", name)
			}

			log.Infow("worker launched", zapLauncherFields(res)...)

			background, _ := flags.GetBool("background")
			if !background {
				time.Sleep(time.Duration(cfg.Pause()) * time.Millisecond)
			}

			return nil
		},
	}
}

func parseMethod(name string) (launch.Method, error) {
	switch name {
	case "getenv":
		return launch.MethodCanonical, nil
	case "snapshot":
		return launch.MethodSnapshot, nil
	case "environ":
		return launch.MethodProcessTable, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, name)
	}
}
