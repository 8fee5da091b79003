package sandbox

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Walk calls fn with the slash-separated relative path of every non-hidden
// regular file under root, in lexical order. Hidden directories are not
// entered. Symlinks are listed only when they resolve to a regular file
// inside root.
func Walk(root string, fn func(rel string) error) error {
	canonRoot, err := Canonical(root)
	if err != nil {
		return err
	}

	return filepath.WalkDir(canonRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are left out of the listing.
			if path != canonRoot && d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			if path == canonRoot {
				return err
			}
			return nil
		}
		if path == canonRoot {
			return nil
		}

		hidden := strings.HasPrefix(d.Name(), ".")
		if d.IsDir() {
			if hidden {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden {
			return nil
		}

		rel, err := filepath.Rel(canonRoot, path)
		if err != nil {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			target, err := Resolve(canonRoot, rel)
			if err != nil {
				return nil
			}
			info, err := os.Stat(target)
			if err != nil || !info.Mode().IsRegular() {
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}

		return fn(filepath.ToSlash(rel))
	})
}
