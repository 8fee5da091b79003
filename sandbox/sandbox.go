// Package sandbox confines file access to a single allowed directory.
//
// Every call canonicalizes both the root and the requested path (symlinks
// resolved) and checks containment at a path-segment boundary, so a root of
// /data never admits /data-evil and a link inside the root cannot point out
// of it. Nothing is cached; each call sees the filesystem as it is now.
package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrAccessDenied is returned when a requested path resolves outside the root.
var ErrAccessDenied = errors.New("access denied")

// ErrNotFile is returned by ReadFile when the path names a directory or
// other non-regular file.
var ErrNotFile = errors.New("not a regular file")

// ResolveError reports a path inside the root that could not be resolved.
// Path is the caller's relative path, never the absolute one.
type ResolveError struct {
	Path string
	Err  error
}

func (e *ResolveError) Error() string {
	reason := "cannot be resolved"
	switch {
	case errors.Is(e.Err, fs.ErrNotExist):
		reason = "not found"
	case errors.Is(e.Err, fs.ErrPermission):
		reason = "not readable"
	case errors.Is(e.Err, ErrNotFile):
		reason = ErrNotFile.Error()
	}
	return fmt.Sprintf("%s: %s", e.Path, reason)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// Canonical returns the absolute, symlink-free form of root.
func Canonical(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("sandbox: root: %w", err)
	}
	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("sandbox: root: %w", err)
	}
	return canon, nil
}

// Resolve maps requested, a path relative to root, to its canonical absolute
// form. It returns ErrAccessDenied when the path escapes root, lexically or
// through a symlink, and a *ResolveError when the path cannot be resolved.
func Resolve(root, requested string) (string, error) {
	if strings.ContainsRune(requested, 0) || filepath.IsAbs(requested) || filepath.VolumeName(requested) != "" {
		return "", ErrAccessDenied
	}

	canonRoot, err := Canonical(root)
	if err != nil {
		return "", err
	}

	candidate := filepath.Join(canonRoot, filepath.FromSlash(requested))
	if !within(canonRoot, candidate) {
		return "", ErrAccessDenied
	}

	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		// Judge containment on the deepest existing ancestor so a missing
		// file behind an escaping link is denied like an existing one.
		if !within(canonRoot, resolvePartial(candidate, 0)) {
			return "", ErrAccessDenied
		}
		return "", &ResolveError{Path: requested, Err: err}
	}
	if !within(canonRoot, resolved) {
		return "", ErrAccessDenied
	}
	return resolved, nil
}

// ReadFile resolves requested under root and returns the file's contents.
func ReadFile(root, requested string) ([]byte, error) {
	path, err := Resolve(root, requested)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &ResolveError{Path: requested, Err: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &ResolveError{Path: requested, Err: ErrNotFile}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ResolveError{Path: requested, Err: err}
	}
	return data, nil
}

// maxLinks bounds link following in resolvePartial, like the kernel's
// ELOOP limit.
const maxLinks = 40

// resolvePartial resolves symlinks in path as far as the filesystem allows
// and keeps the missing remainder as written. Dangling links are followed to
// their target.
func resolvePartial(path string, depth int) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	parent := filepath.Dir(path)
	if parent == path || depth >= maxLinks {
		return path
	}
	dir := resolvePartial(parent, depth)

	info, err := os.Lstat(filepath.Join(dir, filepath.Base(path)))
	if err != nil || info.Mode()&fs.ModeSymlink == 0 {
		return filepath.Join(dir, filepath.Base(path))
	}
	target, err := os.Readlink(filepath.Join(dir, filepath.Base(path)))
	if err != nil {
		return filepath.Join(dir, filepath.Base(path))
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, target)
	}
	return resolvePartial(filepath.Clean(target), depth+1)
}

// within reports whether path equals root or lies beneath it.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
