package vault

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
)

// isInside reports whether candidate, after full canonicalization, is base
// itself or a descendant of base. It is the last line of defense against
// traversal and symlink escapes and runs before every filesystem operation
// that uses a caller-influenced name, even though SanitizeFilename should
// already have removed any path components.
func isInside(base, candidate string) bool {
	resolvedBase, err := resolvePath(base)
	if err != nil {
		return false
	}
	resolvedCandidate, err := resolvePath(candidate)
	if err != nil {
		return false
	}

	rel, err := filepath.Rel(resolvedBase, resolvedCandidate)
	if err != nil {
		return false
	}
	return rel == "." ||
		(rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// resolvePath canonicalizes a path to absolute form with symlinks, "." and
// ".." resolved. A path whose final element does not exist yet (the upload
// target before the first write) is resolved through its parent directory.
func resolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	parent, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		return "", err
	}
	return filepath.Join(parent, filepath.Base(abs)), nil
}
