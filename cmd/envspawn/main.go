// envspawn is an interactive process launcher that demonstrates environment
// propagation: workers receive a filtered environment built from a text
// manifest rather than inheriting everything.
package main

import (
	"os"
	"os/signal"
	"syscall"
)

func main() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	os.Exit(Run(os.Stdin, os.Stdout, os.Stderr, os.Args, os.Environ(), sigCh))
}
