package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// sourceExts are the file extensions ResolveFiles keeps. Glob patterns can
// match anything; headers meant only for `include should not be parsed as
// standalone units, but listing them explicitly is still allowed.
var sourceExts = map[string]bool{
	".sv":  true,
	".svh": true,
	".v":   true,
	".vh":  true,
}

// ResolveFiles expands a group's glob patterns relative to the manifest
// directory, drops excluded matches, and returns a sorted, deduplicated
// list of absolute paths.
func (m *Manifest) ResolveFiles(g SourceGroup) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	for _, pattern := range g.Files {
		abs := pattern
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(m.Dir, pattern)
		}
		matches, err := doublestar.FilepathGlob(abs)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		if len(matches) == 0 && !hasGlobMeta(pattern) {
			return nil, fmt.Errorf("source file %q not found", pattern)
		}
		for _, match := range matches {
			if hasGlobMeta(pattern) && !sourceExts[filepath.Ext(match)] {
				continue
			}
			excluded, err := m.matchesAny(g.Exclude, match)
			if err != nil {
				return nil, err
			}
			if excluded || seen[match] {
				continue
			}
			seen[match] = true
			files = append(files, match)
		}
	}

	sort.Strings(files)
	return files, nil
}

// IncludeDirsAbs returns the group's include directories resolved against
// the manifest directory.
func (m *Manifest) IncludeDirsAbs(g SourceGroup) []string {
	dirs := make([]string, 0, len(g.IncludeDirs))
	for _, d := range g.IncludeDirs {
		if !filepath.IsAbs(d) {
			d = filepath.Join(m.Dir, d)
		}
		dirs = append(dirs, d)
	}
	return dirs
}

func (m *Manifest) matchesAny(patterns []string, path string) (bool, error) {
	for _, pattern := range patterns {
		abs := pattern
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(m.Dir, pattern)
		}
		ok, err := doublestar.PathMatch(abs, path)
		if err != nil {
			return false, fmt.Errorf("exclude %q: %w", pattern, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func hasGlobMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}
