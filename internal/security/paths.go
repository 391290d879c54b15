// Package security guards the filesystem paths the collector writes to.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxNameLen bounds names produced by SanitizeFilename.
const maxNameLen = 96

// ValidateWithin returns an error unless path resolves to root or a
// descendant of root. Symlinks are resolved on the longest existing prefix of
// path, so a link inside root that points elsewhere is caught even when the
// final file does not exist yet.
func ValidateWithin(path, root string) error {
	canonicalRoot, err := canonical(root)
	if err != nil {
		return fmt.Errorf("failed to resolve root %s: %w", root, err)
	}
	canonicalPath, err := canonical(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	rel, err := filepath.Rel(canonicalRoot, canonicalPath)
	if err != nil {
		return fmt.Errorf("path %s is outside %s: %w", path, root, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", path, root)
	}
	return nil
}

// canonical makes path absolute and resolves symlinks on its longest
// existing prefix.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	existing := abs
	var rest []string
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{resolved}, rest...)...), nil
}

// SanitizeFilename maps an arbitrary label (a session ID, a capture name) to
// a safe file name component. Runs of other characters collapse to one
// underscore.
func SanitizeFilename(s string) string {
	var b strings.Builder
	pendingUnderscore := false
	for _, r := range s {
		if b.Len() >= maxNameLen {
			break
		}
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '.' || r == '_' || r == '-'
		if !ok {
			pendingUnderscore = true
			continue
		}
		if pendingUnderscore && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingUnderscore = false
		b.WriteRune(r)
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
