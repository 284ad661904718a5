//go:build unix

package launch

import (
	"os"
	"slices"
	"testing"
)

func TestLookupLast(t *testing.T) {
	t.Parallel()

	environ := []string{
		"FOO=first",
		"FOOBAR=other",
		"EMPTY=",
		"FOO=last",
	}

	tests := []struct {
		name      string
		lookup    string
		wantValue string
		wantOK    bool
	}{
		{
			name:      "last match wins on duplicates",
			lookup:    "FOO",
			wantValue: "last",
			wantOK:    true,
		},
		{
			name:      "exact name match only",
			lookup:    "FOOB",
			wantValue: "",
			wantOK:    false,
		},
		{
			name:      "empty value is found",
			lookup:    "EMPTY",
			wantValue: "",
			wantOK:    true,
		},
		{
			name:   "absent name",
			lookup: "MISSING",
			wantOK: false,
		},
		{
			name:   "empty name never matches",
			lookup: "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			value, ok := lookupLast(environ, tt.lookup)
			if value != tt.wantValue || ok != tt.wantOK {
				t.Errorf("lookupLast(%q) = %q, %v; want %q, %v", tt.lookup, value, ok, tt.wantValue, tt.wantOK)
			}
		})
	}
}

func TestSourcesAgree(t *testing.T) {
	// t.Setenv forbids t.Parallel.
	t.Setenv("ENVSPAWN_TEST_AGREE", "same-everywhere")

	sources := map[string]Source{
		"canonical":     CanonicalSource(),
		"snapshot":      SnapshotSource(os.Environ()),
		"process table": ProcessTableSource(),
	}

	for name, src := range sources {
		value, ok := src.Lookup("ENVSPAWN_TEST_AGREE")
		if !ok || value != "same-everywhere" {
			t.Errorf("%s source: Lookup = %q, %v; want %q, true", name, value, ok, "same-everywhere")
		}

		_, ok = src.Lookup("ENVSPAWN_TEST_DEFINITELY_UNSET")
		if ok {
			t.Errorf("%s source: found a variable that was never set", name)
		}
	}
}

func TestSortedEnviron(t *testing.T) {
	t.Setenv("ENVSPAWN_TEST_SORTED", "1")

	environ := SortedEnviron()

	if !slices.IsSorted(environ) {
		t.Error("SortedEnviron is not byte-wise sorted")
	}

	if !slices.Contains(environ, "ENVSPAWN_TEST_SORTED=1") {
		t.Error("SortedEnviron is missing a variable that is set")
	}
}
