// Package files resolves command-line paths to the module files that may
// contain doctests.
package files

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// compiledPattern holds both the pattern string and compiled glob
type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// Discovery expands files and directories with include and ignore globs.
// Patterns match slash-separated paths relative to the directory being walked.
type Discovery struct {
	include []compiledPattern
	ignore  []compiledPattern
}

// NewDiscovery compiles the include and ignore patterns.
func NewDiscovery(include, ignore []string) (*Discovery, error) {
	d := &Discovery{}

	var err error
	if d.include, err = compile(include); err != nil {
		return nil, err
	}
	if d.ignore, err = compile(ignore); err != nil {
		return nil, err
	}
	return d, nil
}

func compile(patterns []string) ([]compiledPattern, error) {
	out := make([]compiledPattern, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		out = append(out, compiledPattern{pattern: pattern, glob: g})
	}
	return out, nil
}

// Discover returns the absolute, sorted and de-duplicated module files under
// paths. A path naming a file is always included; directories are walked.
func (d *Discovery) Discover(paths []string) ([]string, error) {
	seen := make(map[string]struct{})
	var found []string
	add := func(path string) {
		if _, ok := seen[path]; !ok {
			seen[path] = struct{}{}
			found = append(found, path)
		}
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !info.IsDir() {
			add(abs)
			continue
		}
		if err := d.walk(abs, add); err != nil {
			return nil, err
		}
	}

	sort.Strings(found)
	return found, nil
}

func (d *Discovery) walk(root string, add func(string)) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if entry.IsDir() {
			if relPath != "." && d.shouldIgnore(relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Match(relPath) {
			add(path)
		}
		return nil
	})
}

// Match reports whether a slash-separated relative path is an included,
// non-ignored module file.
func (d *Discovery) Match(relPath string) bool {
	return !d.shouldIgnore(relPath) && matchesAnyPattern(relPath, d.include)
}

// shouldIgnore checks if a path matches any ignore pattern.
func (d *Discovery) shouldIgnore(relPath string) bool {
	if relPath == ".jsdoctest" || strings.HasPrefix(relPath, ".jsdoctest/") {
		return true
	}

	if matchesAnyPattern(relPath, d.ignore) {
		return true
	}

	// "node_modules" should match pattern "node_modules/**"
	return matchesAnyPattern(relPath+"/**", d.ignore)
}

// matchesAnyPattern checks if a path matches any of the given patterns.
func matchesAnyPattern(path string, patterns []compiledPattern) bool {
	for _, cp := range patterns {
		if cp.glob.Match(path) {
			return true
		}
	}

	// "**/*.js" also matches "index.js" at the root.
	if !strings.Contains(path, "/") {
		for _, cp := range patterns {
			if strings.HasPrefix(cp.pattern, "**/") {
				simplified := strings.TrimPrefix(cp.pattern, "**/")
				if simplifiedGlob, err := glob.Compile(simplified, '/'); err == nil {
					if simplifiedGlob.Match(path) {
						return true
					}
				}
			}
		}
	}

	return false
}

// Ignored reports whether a slash-separated relative path is excluded by the
// ignore patterns. Directories are matched with or without a trailing "/**".
func (d *Discovery) Ignored(relPath string) bool {
	return d.shouldIgnore(relPath)
}
