package docstore

import (
	"fmt"
	"strings"
)

// Join builds a slash-separated path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// SplitDoc splits a document path into its collection path and id.
// Document paths have an even number of segments.
func SplitDoc(path string) (collection, id string, err error) {
	segs, err := segments(path)
	if err != nil {
		return "", "", err
	}
	if len(segs)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q is a collection", ErrInvalidPath, path)
	}
	return strings.Join(segs[:len(segs)-1], "/"), segs[len(segs)-1], nil
}

// ValidateCollection checks that path names a collection (odd number of
// segments).
func ValidateCollection(path string) error {
	segs, err := segments(path)
	if err != nil {
		return err
	}
	if len(segs)%2 != 1 {
		return fmt.Errorf("%w: %q is a document", ErrInvalidPath, path)
	}
	return nil
}

// Owner returns the user id a path belongs to when it lives under
// users/{uid}, or "" otherwise.
func Owner(path string) string {
	segs, err := segments(path)
	if err != nil || len(segs) < 2 || segs[0] != "users" {
		return ""
	}
	return segs[1]
}

func segments(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segs := strings.Split(path, "/")
	for _, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)
		}
	}
	return segs, nil
}
