//go:build unix

package launch

import (
	"strings"
	"testing"
)

func TestWorkerReport(t *testing.T) {
	t.Parallel()

	manifest := writeManifest(t, "FOO\nBAR\n")

	environ := []string{
		"FOO=1",
		FilterFileVar + "=" + manifest,
	}

	var out strings.Builder

	err := WorkerReport(&out, "envspawn-worker_07", 123, 45, environ)
	if err != nil {
		t.Fatalf("WorkerReport: %v", err)
	}

	got := out.String()

	for _, want := range []string{
		"envspawn-worker_07: pid=123 ppid=45",
		"filter file: " + manifest,
		"  FOO=1",
		"  BAR (not in received environment)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestWorkerReportMissingSentinel(t *testing.T) {
	t.Parallel()

	var out strings.Builder

	err := WorkerReport(&out, "envspawn-worker_00", 1, 0, []string{"FOO=1"})
	if err == nil {
		t.Fatal("expected error when the sentinel variable is absent")
	}

	if !strings.Contains(err.Error(), FilterFileVar) {
		t.Errorf("error %q does not name the sentinel variable", err)
	}
}

func TestWorkerReportUnreadableManifest(t *testing.T) {
	t.Parallel()

	var out strings.Builder

	environ := []string{FilterFileVar + "=/nonexistent/manifest"}

	err := WorkerReport(&out, "envspawn-worker_00", 1, 0, environ)
	if err == nil {
		t.Fatal("expected error for unreadable manifest")
	}
}

func TestWorkerReportUsesReceivedEnvironmentOnly(t *testing.T) {
	// The report must consult the environ it was handed, not the process
	// table of the reporting process.
	t.Setenv("ENVSPAWN_TEST_LEAK", "from-process-table")

	manifest := writeManifest(t, "ENVSPAWN_TEST_LEAK\n")

	var out strings.Builder

	err := WorkerReport(&out, "w", 1, 0, []string{FilterFileVar + "=" + manifest})
	if err != nil {
		t.Fatalf("WorkerReport: %v", err)
	}

	if strings.Contains(out.String(), "from-process-table") {
		t.Error("report leaked a value from the process table instead of the received environment")
	}
}
