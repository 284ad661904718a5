//go:build unix

package launch

// FilteredEnv is an owned NAME=VALUE table built from a manifest. It is the
// complete environment a worker receives: only the manifest-listed variables
// that exist in the source view, plus one sentinel entry (FilterFileVar)
// carrying the manifest path so the worker can re-open the same manifest.
//
// A FilteredEnv is exclusively owned by its builder's caller. After handing
// the entries to the OS (which deep-copies them into the new process image),
// the caller releases its copy with Release.
type FilteredEnv struct {
	entries []string
}

// BuildFilteredEnv reads the manifest at manifestPath and resolves each
// listed name against src. Names absent from src are omitted from the result
// and returned in missing; an omission is not an error. Duplicate manifest
// names produce duplicate entries in file order. The sentinel entry is
// appended last, unconditionally, even when the manifest itself listed
// FilterFileVar: a last-match-wins consumer then sees the sentinel value.
//
// On error the returned FilteredEnv is nil, which is distinct from an
// empty-but-valid result (a FilteredEnv always holds at least the sentinel).
func BuildFilteredEnv(manifestPath string, src Source) (env *FilteredEnv, missing []string, err error) {
	names, err := ReadManifest(manifestPath)
	if err != nil {
		return nil, nil, err
	}

	entries := make([]string, 0, len(names)+1)

	for _, name := range names {
		value, ok := src.Lookup(name)
		if !ok {
			missing = append(missing, name)

			continue
		}

		entries = append(entries, name+"="+value)
	}

	entries = append(entries, FilterFileVar+"="+manifestPath)

	return &FilteredEnv{entries: entries}, missing, nil
}

// Entries returns the NAME=VALUE entries in manifest order, sentinel last.
// The slice is nil after Release. The returned slice is the FilteredEnv's
// backing storage; callers must not mutate it.
func (f *FilteredEnv) Entries() []string {
	if f == nil {
		return nil
	}

	return f.entries
}

// Len returns the number of entries, including the sentinel. Zero after
// Release.
func (f *FilteredEnv) Len() int {
	if f == nil {
		return 0
	}

	return len(f.entries)
}

// Release drops the entries. It is idempotent: releasing an already-released
// FilteredEnv is a no-op.
func (f *FilteredEnv) Release() {
	if f == nil {
		return
	}

	f.entries = nil
}

// Released reports whether Release has been called (or the FilteredEnv is
// nil).
func (f *FilteredEnv) Released() bool {
	return f == nil || f.entries == nil
}
