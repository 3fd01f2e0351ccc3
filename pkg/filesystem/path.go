package filesystem

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var ErrPathTraversal = errors.New("path traversal not allowed")

// SafePath joins filename onto baseDir and rejects results that leave baseDir.
func SafePath(baseDir, filename string) (string, error) {
	if filename == "" {
		return "", errors.New("invalid filename: empty")
	}
	if hasParentRef(filename) {
		return "", fmt.Errorf("invalid filename %q: %w", filename, ErrPathTraversal)
	}

	fullPath := filepath.Join(baseDir, filepath.Clean(filename))

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for base directory: %w", err)
	}
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	rel, err := filepath.Rel(absBase, absPath)
	if err != nil || rel == "." || hasParentRef(rel) {
		return "", fmt.Errorf("path %q outside base directory: %w", filename, ErrPathTraversal)
	}

	return fullPath, nil
}

func hasParentRef(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(filepath.Clean(path)), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}
