package driver

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar"
)

// skipDirs are never descended into, in addition to hidden directories.
var skipDirs = map[string]bool{
	"node_modules": true,
	"__pycache__":  true,
	"vendor":       true,
}

// CollectFiles expands paths into the ordered list of files to process.
// Files named explicitly are always included. Directories contribute the
// files matching include, in lexical order; with recursive set they are
// walked depth-first, skipping hidden directories. A path that cannot be
// read is reported and skipped; the remaining paths are still collected.
func CollectFiles(paths []string, recursive bool, include []string) ([]string, error) {
	files, errs := collect(paths, recursive, include)
	return files, errors.Join(errs...)
}

func collect(paths []string, recursive bool, include []string) ([]string, []error) {
	var (
		out  []string
		errs []error
		seen = make(map[string]bool)
	)
	add := func(p string) {
		clean := filepath.Clean(p)
		if !seen[clean] {
			seen[clean] = true
			out = append(out, clean)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			errs = append(errs, &IOError{Op: "stat", Path: root, Err: err})
			continue
		}
		if !info.IsDir() {
			add(root)
			continue
		}

		if !recursive {
			entries, err := os.ReadDir(root)
			if err != nil {
				errs = append(errs, &IOError{Op: "read dir", Path: root, Err: err})
				continue
			}
			for _, e := range entries {
				if e.Type().IsRegular() && matchInclude(include, e.Name()) {
					add(filepath.Join(root, e.Name()))
				}
			}
			continue
		}

		err = walkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				errs = append(errs, walkError(root, path, err))
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if path != root && (strings.HasPrefix(d.Name(), ".") || skipDirs[d.Name()]) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				rel = d.Name()
			}
			if matchInclude(include, rel) {
				add(path)
			}
			return nil
		})
		if err != nil {
			errs = append(errs, walkError(root, root, err))
		}
	}
	return out, errs
}

// walkDir is replaced in tests to inject directory errors.
var walkDir = filepath.WalkDir

func walkError(root, path string, err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return &IOError{Op: "walk", Path: pathErr.Path, Err: pathErr.Err}
	}
	if path == "" {
		path = root
	}
	return &IOError{Op: "walk", Path: path, Err: err}
}

// matchInclude matches a path relative to the walked directory. Patterns
// without a slash match the base name; patterns with one match the whole
// relative path and may use "**".
func matchInclude(patterns []string, rel string) bool {
	rel = filepath.ToSlash(rel)
	base := rel
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		base = rel[i+1:]
	}
	for _, p := range patterns {
		target := base
		if strings.Contains(p, "/") {
			target = rel
		}
		if ok, err := doublestar.Match(p, target); err == nil && ok {
			return true
		}
	}
	return false
}
