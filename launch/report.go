//go:build unix

package launch

import (
	"fmt"
	"io"
)

// WorkerReport implements the worker side of the launch contract. It prints
// the worker's identity, locates FilterFileVar in the environment the worker
// actually received (environ must be the received table, not a re-derived
// one), re-reads the manifest it names, and prints each listed variable as
// present in the received environment.
//
// Lookups are last-match-wins, so when the manifest lists FilterFileVar
// itself the worker sees the sentinel value appended by the builder, not the
// inherited one.
func WorkerReport(w io.Writer, name string, pid, ppid int, environ []string) error {
	fmt.Fprintf(w, "%s: pid=%d ppid=%d\n", name, pid, ppid)

	manifestPath, ok := lookupLast(environ, FilterFileVar)
	if !ok {
		return fmt.Errorf("%s not present in received environment", FilterFileVar)
	}

	fmt.Fprintf(w, "%s: filter file: %s\n", name, manifestPath)

	names, err := ReadManifest(manifestPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s: received variables:\n", name)

	for _, varName := range names {
		value, ok := lookupLast(environ, varName)
		if ok {
			fmt.Fprintf(w, "  %s=%s\n", varName, value)
		} else {
			fmt.Fprintf(w, "  %s (not in received environment)\n", varName)
		}
	}

	return nil
}
