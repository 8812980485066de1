// Package fsutil provides file system utility functions.
package fsutil

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Extension returns everything after the first dot of a file name, so
// "top.tb.v" has extension "tb.v". ok is false when there is no dot.
func Extension(name string) (ext string, ok bool) {
	_, ext, ok = strings.Cut(name, ".")
	return ext, ok
}

// FindFilesByExtension lists the regular files directly inside dir whose
// extension is one of exts. Names are returned sorted, without the dir prefix.
func FindFilesByExtension(dir string, exts []string) ([]string, error) {
	if len(exts) == 0 {
		panic("extensions must not be empty")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext, ok := Extension(e.Name()); ok && slices.Contains(exts, ext) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// RemoveFiles deletes the regular files directly inside dir and returns how
// many were removed. Subdirectories are kept.
func RemoveFiles(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
