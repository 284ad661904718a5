//go:build unix

package launch

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrManifestUnavailable is returned when the environment manifest cannot be
// opened or read.
var ErrManifestUnavailable = errors.New("cannot read environment manifest")

// ReadManifest reads the manifest at path and returns the variable names it
// lists, in file order.
//
// The manifest is re-read on every call; edits take effect on the next launch.
func ReadManifest(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifestUnavailable, err)
	}
	defer f.Close()

	names, err := ParseManifest(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrManifestUnavailable, path, err)
	}

	return names, nil
}

// ParseManifest parses manifest text: one variable name per line, surrounding
// whitespace trimmed. Blank lines and lines whose first non-whitespace
// character is '#' are skipped. Duplicate names are kept in file order; it is
// up to the consumer's lookup rule which occurrence wins.
func ParseManifest(r io.Reader) ([]string, error) {
	var names []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		// Scanner strips the trailing \n; TrimSpace covers a leftover \r
		// from CRLF manifests along with surrounding whitespace.
		name := strings.TrimSpace(scanner.Text())
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}

		names = append(names, name)
	}

	err := scanner.Err()
	if err != nil {
		return nil, err
	}

	return names, nil
}
