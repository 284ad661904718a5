// envspawn-worker is the short-lived process spawned by envspawn. It reports
// the identity it was launched under and the environment it actually
// received, then exits.
package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/envspawn/envspawn/launch"
)

func main() {
	name := launch.WorkerBinaryName
	if len(os.Args) > 0 && os.Args[0] != "" {
		name = os.Args[0]
	}

	// syscall.Environ is the table this process received through exec,
	// duplicates preserved; os.Getenv would collapse them.
	err := launch.WorkerReport(os.Stdout, name, os.Getpid(), os.Getppid(), syscall.Environ())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: error: %v\n", name, err)
		os.Exit(1)
	}
}
