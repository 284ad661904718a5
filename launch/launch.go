//go:build unix

// Package launch builds filtered worker environments from a text manifest and
// spawns short-lived worker processes that receive them.
//
// The package is deliberately not a supervisor: it reports the PID of each
// spawned worker and forgets about it. Reaping, job control, restart and IPC
// beyond the environment and a file path are out of scope.
//
// # Worker contract
//
// The controller resolves WorkerDirVar to find the worker executable, builds
// a FilteredEnv from the manifest, and spawns the worker with argv[0] set to
// "envspawn-worker_NN" (NN a zero-padded sequential number). The worker reads
// FilterFileVar from its received environment, re-opens the manifest and
// reports the variables it actually received; see WorkerReport.
package launch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// Fixed environment variable names shared between controller and worker.
const (
	// WorkerDirVar names the directory holding the worker executable.
	WorkerDirVar = "ENVSPAWN_WORKER_PATH"

	// FilterFileVar is synthesized into every filtered environment; its value
	// is the manifest path used for that launch.
	FilterFileVar = "ENVSPAWN_FILTER_FILE"

	// WorkerBinaryName is the base name of the worker executable. A launched
	// instance's argv[0] is WorkerBinaryName + "_NN".
	WorkerBinaryName = "envspawn-worker"

	// MaxWorkers is the number of worker identities available (00-99).
	MaxWorkers = 100
)

// Static launcher errors. All are recoverable: the caller's command loop
// keeps accepting commands after any of them.
var (
	// ErrTooManyWorkers is returned once all worker numbers are spent.
	ErrTooManyWorkers = errors.New("worker limit reached")
	// ErrWorkerDirUnset is returned when WorkerDirVar is absent from the
	// requested source view.
	ErrWorkerDirUnset = errors.New(WorkerDirVar + " is not set")
	// ErrWorkerDirEmpty is returned when WorkerDirVar resolves to an empty
	// string.
	ErrWorkerDirEmpty = errors.New(WorkerDirVar + " is empty")
	// ErrPathTooLong is returned when the constructed worker executable path
	// exceeds the platform path limit.
	ErrPathTooLong = errors.New("worker executable path too long")
	// ErrSpawnFailed wraps an OS-level failure to create the worker process
	// or replace its image.
	ErrSpawnFailed = errors.New("spawning worker failed")
)

// Method selects which environment view resolves WorkerDirVar. The three
// methods are equivalent when the snapshot agrees with the process table;
// offering all three lets an operator observe that they agree.
type Method int

const (
	// MethodCanonical resolves through the process's canonical lookup
	// facility (os.LookupEnv).
	MethodCanonical Method = iota
	// MethodSnapshot scans the caller-supplied snapshot in Request.Snapshot.
	MethodSnapshot
	// MethodProcessTable scans the process-wide environment table.
	MethodProcessTable
)

// Request describes one worker launch.
type Request struct {
	// Method selects the source view for resolving WorkerDirVar.
	Method Method
	// ManifestPath is the manifest the filtered environment is built from.
	ManifestPath string
	// Snapshot is the NAME=VALUE view used by MethodSnapshot.
	Snapshot []string
	// Stdin, Stdout and Stderr are inherited by the worker. Nil fields
	// default to the controller's own stdio.
	Stdin, Stdout, Stderr *os.File
}

// Result describes a successfully launched worker.
type Result struct {
	// Name is the worker's argv[0], e.g. "envspawn-worker_03".
	Name string
	// PID of the new process.
	PID int
	// EnvCount is the number of entries in the environment the worker
	// received, sentinel included.
	EnvCount int
	// Missing lists manifest names that were absent from the source view and
	// therefore omitted from the worker's environment.
	Missing []string
}

// Launcher spawns workers with filtered environments. It owns the worker
// counter: numbers are assigned sequentially and never reused, even when a
// launch fails after its number was reserved. A Launcher is safe for
// concurrent use.
type Launcher struct {
	mu   sync.Mutex
	next int

	// spawn performs the fork+exec. Swapped out in tests.
	spawn spawnFunc
}

// NewLauncher returns a Launcher with all worker numbers available.
func NewLauncher() *Launcher {
	return &Launcher{spawn: startProcess}
}

// Launched returns how many worker numbers have been spent.
func (l *Launcher) Launched() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.next
}

// Launch spawns one worker according to req.
//
// Guard failures (worker limit, cancelled context, locator resolution, path
// length) abort before a worker number is reserved and leave the counter
// unchanged. Once the guards pass, the next number is reserved and is spent
// even if building the filtered environment or the spawn itself then fails;
// numbering stays monotonic.
//
// The worker receives an independent OS-level copy of the filtered
// environment; the Launcher releases its own copy before returning, on both
// the success and the failure path.
func (l *Launcher) Launch(ctx context.Context, req Request) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.next >= MaxWorkers {
		return Result{}, fmt.Errorf("%w (%d)", ErrTooManyWorkers, MaxWorkers)
	}

	// Observe cancellation before committing to a launch so an interrupt
	// never leaves a dangling number reservation.
	err := ctx.Err()
	if err != nil {
		return Result{}, err
	}

	src, err := req.source()
	if err != nil {
		return Result{}, err
	}

	dir, ok := src.Lookup(WorkerDirVar)
	if !ok {
		return Result{}, ErrWorkerDirUnset
	}

	if dir == "" {
		return Result{}, ErrWorkerDirEmpty
	}

	exe := filepath.Join(dir, WorkerBinaryName)
	if len(exe) >= unix.PathMax {
		return Result{}, fmt.Errorf("%w: %d bytes", ErrPathTooLong, len(exe))
	}

	// Commit point: the number is spent from here on.
	name := fmt.Sprintf("%s_%02d", WorkerBinaryName, l.next)
	l.next++

	env, missing, err := BuildFilteredEnv(req.ManifestPath, src)
	if err != nil {
		return Result{}, err
	}

	pid, err := l.spawn(exe, []string{name}, env.Entries(), req.stdio())

	count := env.Len()
	env.Release()

	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %w", ErrSpawnFailed, exe, err)
	}

	return Result{Name: name, PID: pid, EnvCount: count, Missing: missing}, nil
}

func (r Request) source() (Source, error) {
	switch r.Method {
	case MethodCanonical:
		return CanonicalSource(), nil
	case MethodSnapshot:
		return SnapshotSource(r.Snapshot), nil
	case MethodProcessTable:
		return ProcessTableSource(), nil
	default:
		return nil, fmt.Errorf("unknown lookup method %d", r.Method)
	}
}

func (r Request) stdio() []*os.File {
	files := []*os.File{r.Stdin, r.Stdout, r.Stderr}
	defaults := []*os.File{os.Stdin, os.Stdout, os.Stderr}

	for i, f := range files {
		if f == nil {
			files[i] = defaults[i]
		}
	}

	return files
}
