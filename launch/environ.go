//go:build unix

package launch

import (
	"os"
	"slices"
	"syscall"
)

// Source resolves environment variable names against one view of an
// environment. The three constructors below bind the same lookup rule to
// three conceptually identical views: the process's canonical lookup
// facility, a caller-supplied snapshot, and the process-wide table. When the
// snapshot agrees with the process table, all three return identical results.
type Source interface {
	Lookup(name string) (value string, ok bool)
}

type funcSource func(string) (string, bool)

func (f funcSource) Lookup(name string) (string, bool) {
	return f(name)
}

// CanonicalSource resolves names through os.LookupEnv.
func CanonicalSource() Source {
	return funcSource(os.LookupEnv)
}

// SnapshotSource resolves names by scanning a caller-supplied NAME=VALUE
// snapshot. The snapshot is never mutated.
func SnapshotSource(environ []string) Source {
	return funcSource(func(name string) (string, bool) {
		return lookupLast(environ, name)
	})
}

// ProcessTableSource resolves names by scanning the process-wide environment
// table at lookup time.
func ProcessTableSource() Source {
	return funcSource(func(name string) (string, bool) {
		return lookupLast(syscall.Environ(), name)
	})
}

// lookupLast scans a NAME=VALUE table for name. A stored entry matches when
// it begins with the name followed immediately by '='. The last match wins,
// which is also how the Go runtime resolves duplicate keys in the inherited
// table, so SnapshotSource and CanonicalSource agree on duplicates.
func lookupLast(environ []string, name string) (string, bool) {
	if name == "" {
		return "", false
	}

	var (
		value string
		found bool
	)

	for _, entry := range environ {
		if len(entry) > len(name) && entry[len(name)] == '=' && entry[:len(name)] == name {
			value = entry[len(name)+1:]
			found = true
		}
	}

	return value, found
}

// SortedEnviron returns a byte-wise sorted copy of the current process
// environment for human inspection. Byte-wise order is what LC_COLLATE=C
// would produce.
func SortedEnviron() []string {
	environ := os.Environ()
	slices.Sort(environ)

	return environ
}
