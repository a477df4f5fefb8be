package domain

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// IgnoreSet is the glob set for files a background generator may rewrite at any time.
type IgnoreSet []string

// Match reports whether p matches any pattern. A pattern matches the full
// path, the base name, or any leading directory, so "locale/*" covers
// locale/de/LC_MESSAGES/app.po the way a git pathspec does. "**" crosses
// directories.
func (s IgnoreSet) Match(p string) bool {
	p = strings.TrimPrefix(p, "./")
	for _, pattern := range s {
		if matchPattern(pattern, p) {
			return true
		}
	}
	return false
}

func matchPattern(pattern, p string) bool {
	if ok, _ := doublestar.Match(pattern, p); ok {
		return true
	}
	if ok, _ := doublestar.Match(pattern, path.Base(p)); ok {
		return true
	}
	for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if ok, _ := doublestar.Match(pattern, dir); ok {
			return true
		}
	}
	return false
}

// Filter returns the paths that match the set.
func (s IgnoreSet) Filter(paths []string) []string {
	var out []string
	for _, p := range paths {
		if s.Match(p) {
			out = append(out, p)
		}
	}
	return out
}
