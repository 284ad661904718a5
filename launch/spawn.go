//go:build unix

package launch

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// spawnFunc creates a new process running path with the given argv, complete
// environment and inherited files, returning its PID. It does not wait for
// the process.
type spawnFunc func(path string, argv []string, env []string, files []*os.File) (int, error)

// startProcess is the real spawnFunc. os.StartProcess folds the classic
// fork/execve pair into one call: a failed image replacement in the child is
// reported back here as an error instead of leaving a half-started child
// behind, and the child never runs any of the parent's buffered-output or
// exit handling.
func startProcess(path string, argv []string, env []string, files []*os.File) (int, error) {
	// access(X_OK) first, mirroring the pre-exec check an operator would run
	// by hand; it turns the common "not built yet" case into a clear error.
	err := unix.Access(path, unix.X_OK)
	if err != nil {
		return 0, &os.PathError{Op: "access", Path: path, Err: err}
	}

	proc, err := os.StartProcess(path, argv, &os.ProcAttr{
		Env:   env,
		Files: files,
	})
	if err != nil {
		return 0, err
	}

	pid := proc.Pid

	// We never wait for workers; release the handle so the runtime drops its
	// bookkeeping. Exited workers stay zombies until the controller exits,
	// which the non-supervisor contract accepts.
	_ = proc.Release()

	return pid, nil
}

// CheckSetup verifies the worker executable and the manifest before an
// interactive session starts, so the operator hears about a broken setup
// once up front instead of on every launch.
func CheckSetup(workerDir, manifestPath string) error {
	exe := filepath.Join(workerDir, WorkerBinaryName)

	err := unix.Access(exe, unix.X_OK)
	if err != nil {
		return fmt.Errorf("worker executable %s: %w", exe, err)
	}

	err = unix.Access(manifestPath, unix.R_OK)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrManifestUnavailable, manifestPath, err)
	}

	return nil
}
