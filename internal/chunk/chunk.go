// Package chunk splits long strings into fixed-width pieces and joins them
// back together.
//
// The table store caps the size of a single property, so values that may
// exceed the cap (photo data URLs) are stored as an ordered run of
// properties. Split and Join are exact inverses:
//
//	Join(Split(s, k)) == s   for every s and every k >= 1
//
// Widths are measured in bytes, the unit the stores enforce their ceiling in.
// Data URLs are ASCII, so bytes and characters coincide for the values this
// is used with; for any other string the round trip is still byte-exact.
package chunk

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSize is returned by Split for a chunk size below 1.
var ErrInvalidSize = errors.New("chunk: size must be at least 1")

// Split partitions s left to right into chunks of exactly size bytes; only
// the final chunk may be shorter. An empty string yields an empty, non-nil
// slice (zero chunks, not one empty chunk).
func Split(s string, size int) ([]string, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}

	n := (len(s) + size - 1) / size
	chunks := make([]string, 0, n)
	for off := 0; off < len(s); off += size {
		end := min(off+size, len(s))
		chunks = append(chunks, s[off:end])
	}
	return chunks, nil
}

// Join concatenates chunks in index order with no separator.
func Join(chunks []string) string {
	return strings.Join(chunks, "")
}
