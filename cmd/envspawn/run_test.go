package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/envspawn/envspawn/launch"
)

// stubLauncher records launch requests without forking anything.
type stubLauncher struct {
	mu   sync.Mutex
	reqs []launch.Request
	err  error
	next int
}

func (s *stubLauncher) Launch(_ context.Context, req launch.Request) (launch.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reqs = append(s.reqs, req)

	if s.err != nil {
		return launch.Result{}, s.err
	}

	res := launch.Result{
		Name:     fmt.Sprintf("%s_%02d", launch.WorkerBinaryName, s.next),
		PID:      5000 + s.next,
		EnvCount: 2,
	}
	s.next++

	return res, nil
}

func (s *stubLauncher) Launched() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.next
}

// installStubLauncher swaps the launcher constructor for the duration of a
// test. Tests using it must not run in parallel.
func installStubLauncher(t *testing.T) *stubLauncher {
	t.Helper()

	stub := &stubLauncher{}
	orig := newLauncher
	newLauncher = func() workerLauncher { return stub }

	t.Cleanup(func() { newLauncher = orig })

	return stub
}

// isolateConfig points the global config at an empty directory and moves the
// cwd away from any real project config.
func isolateConfig(t *testing.T) []string {
	t.Helper()

	chdirForTest(t, t.TempDir())

	return []string{"XDG_CONFIG_HOME=" + t.TempDir()}
}

func runForTest(t *testing.T, args []string, environ []string, stdin string) (exitCode int, stdout, stderr string) {
	t.Helper()

	var outBuf, errBuf strings.Builder

	code := Run(strings.NewReader(stdin), &outBuf, &errBuf, append([]string{"envspawn"}, args...), environ, nil)

	return code, outBuf.String(), errBuf.String()
}

func TestRunVersion(t *testing.T) {
	environ := isolateConfig(t)

	code, stdout, _ := runForTest(t, []string{"--version"}, environ, "")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}

	if !strings.Contains(stdout, "envspawn dev (built from source)") {
		t.Errorf("version output = %q", stdout)
	}
}

func TestRunHelpListsCommands(t *testing.T) {
	environ := isolateConfig(t)

	code, stdout, _ := runForTest(t, []string{"--help"}, environ, "")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}

	for _, want := range []string{"run", "spawn", "env"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("help output missing command %q:\n%s", want, stdout)
		}
	}
}

func TestRunUnknownCommand(t *testing.T) {
	environ := isolateConfig(t)

	code, _, stderr := runForTest(t, []string{"frobnicate"}, environ, "")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}

	if !strings.Contains(stderr, "unknown command") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestRunBadGlobalFlag(t *testing.T) {
	environ := isolateConfig(t)

	code, _, stderr := runForTest(t, []string{"--no-such-flag"}, environ, "")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}

	if !strings.Contains(stderr, "error:") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestRunEnvCommand(t *testing.T) {
	environ := isolateConfig(t)

	t.Setenv("ENVSPAWN_TEST_RUNENV", "visible")

	code, stdout, _ := runForTest(t, []string{"env"}, environ, "")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}

	if !strings.Contains(stdout, "ENVSPAWN_TEST_RUNENV=visible") {
		t.Errorf("env output missing set variable:\n%s", stdout)
	}
}

func TestRunSpawnCommand(t *testing.T) {
	environ := isolateConfig(t)
	stub := installStubLauncher(t)

	manifest := filepath.Join(t.TempDir(), "manifest")
	writeFile(t, manifest, "FOO\n")

	args := []string{"--manifest", manifest, "spawn", "-m", "snapshot", "-b"}

	code, stdout, _ := runForTest(t, args, environ, "")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}

	if !strings.Contains(stdout, "launched "+launch.WorkerBinaryName+"_00 (pid 5000, 2 vars)") {
		t.Errorf("spawn output = %q", stdout)
	}

	if len(stub.reqs) != 1 {
		t.Fatalf("launcher called %d times, want 1", len(stub.reqs))
	}

	req := stub.reqs[0]
	if req.Method != launch.MethodSnapshot || req.ManifestPath != manifest {
		t.Errorf("request = %+v", req)
	}
}

func TestRunSpawnUnknownMethod(t *testing.T) {
	environ := isolateConfig(t)
	installStubLauncher(t)

	manifest := filepath.Join(t.TempDir(), "manifest")
	writeFile(t, manifest, "FOO\n")

	code, _, stderr := runForTest(t, []string{"--manifest", manifest, "spawn", "-m", "bogus"}, environ, "")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}

	if !strings.Contains(stderr, "unknown lookup method") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestRunSpawnWithoutWorkerDir(t *testing.T) {
	environ := isolateConfig(t)
	installStubLauncher(t)

	// No --manifest and no worker dir in environ: manifest resolution fails
	// before the launcher is consulted.
	code, _, stderr := runForTest(t, []string{"spawn"}, environ, "")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}

	if !strings.Contains(stderr, launch.WorkerDirVar) {
		t.Errorf("stderr = %q, want mention of %s", stderr, launch.WorkerDirVar)
	}
}

func TestRunInteractiveSession(t *testing.T) {
	environ := isolateConfig(t)
	stub := installStubLauncher(t)

	workerDir := setupWorkerDir(t, "FOO\nBAR\n")
	environ = append(environ, launch.WorkerDirVar+"="+workerDir)

	// Two foreground launches through different lookup methods, one
	// background launch, an unknown command, then quit.
	stdin := "+\n*\n&\nx\nq\n"

	code, stdout, _ := runForTest(t, []string{"run", "--no-env"}, environ, stdin)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}

	for _, want := range []string{
		"launched " + launch.WorkerBinaryName + "_00",
		"launched " + launch.WorkerBinaryName + "_01",
		"launched " + launch.WorkerBinaryName + "_02 (pid 5002, 2 vars) in background",
		"unknown command \"x\"",
		"bye",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("session output missing %q:\n%s", want, stdout)
		}
	}

	wantMethods := []launch.Method{launch.MethodCanonical, launch.MethodSnapshot, launch.MethodProcessTable}

	if len(stub.reqs) != len(wantMethods) {
		t.Fatalf("launcher called %d times, want %d", len(stub.reqs), len(wantMethods))
	}

	for i, want := range wantMethods {
		if stub.reqs[i].Method != want {
			t.Errorf("launch %d used method %v, want %v", i, stub.reqs[i].Method, want)
		}
	}
}

func TestRunInteractiveSessionLaunchErrorKeepsLoopAlive(t *testing.T) {
	environ := isolateConfig(t)
	stub := installStubLauncher(t)
	stub.err = launch.ErrWorkerDirUnset

	workerDir := setupWorkerDir(t, "FOO\n")
	environ = append(environ, launch.WorkerDirVar+"="+workerDir)

	code, stdout, stderr := runForTest(t, []string{"run", "--no-env"}, environ, "+\nq\n")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}

	if !strings.Contains(stderr, launch.WorkerDirVar) {
		t.Errorf("stderr = %q", stderr)
	}

	if !strings.Contains(stdout, "bye") {
		t.Error("loop did not keep running after a launch error")
	}
}

func TestRunInteractiveSessionBrokenSetup(t *testing.T) {
	environ := isolateConfig(t)
	installStubLauncher(t)

	// Worker dir exists but holds no executable worker.
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "env"), "FOO\n")

	environ = append(environ, launch.WorkerDirVar+"="+dir)

	code, _, stderr := runForTest(t, []string{"run"}, environ, "q\n")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}

	if !strings.Contains(stderr, launch.WorkerBinaryName) {
		t.Errorf("stderr = %q", stderr)
	}
}

// setupWorkerDir creates a directory holding an executable worker stub and a
// manifest, ready for CheckSetup.
func setupWorkerDir(t *testing.T, manifest string) string {
	t.Helper()

	dir := t.TempDir()

	err := os.WriteFile(filepath.Join(dir, launch.WorkerBinaryName), []byte("#!/bin/sh\nexit 0\n"), 0o755)
	if err != nil {
		t.Fatalf("write worker stub: %v", err)
	}

	writeFile(t, filepath.Join(dir, "env"), manifest)

	return dir
}
