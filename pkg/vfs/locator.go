package vfs

import (
	"fmt"
	"path"
	"strings"
)

// Locator identifies a cluster-relative resource.
//
// Authority names a registered cluster; Path is an absolute, normalized
// POSIX-style path. The path is URL-encoded only at the transport boundary,
// never in cache keys, so two locators for the same resource always compare
// equal.
type Locator struct {
	Authority string
	Path      string
}

// NewLocator builds a locator, normalizing the path: leading "/", cleaned of
// "." and ".." segments and duplicate separators. An empty path resolves to
// the root "/".
func NewLocator(authority, p string) (Locator, error) {
	if authority == "" {
		return Locator{}, fmt.Errorf("locator: authority is required")
	}

	if p == "" {
		p = "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	cleaned := path.Clean(p)

	return Locator{Authority: authority, Path: cleaned}, nil
}

// MustLocator is NewLocator for statically known inputs; it panics on error.
// Intended for tests and wiring code.
func MustLocator(authority, p string) Locator {
	loc, err := NewLocator(authority, p)
	if err != nil {
		panic(err)
	}
	return loc
}

// Parent returns the locator of the containing directory. The parent of the
// root is the root itself.
func (l Locator) Parent() Locator {
	return Locator{Authority: l.Authority, Path: path.Dir(l.Path)}
}

// Child returns the locator for a named entry inside l.
func (l Locator) Child(name string) Locator {
	return Locator{Authority: l.Authority, Path: path.Join(l.Path, name)}
}

// Base returns the last path element.
func (l Locator) Base() string {
	return path.Base(l.Path)
}

// IsRoot reports whether the locator points at the cluster root.
func (l Locator) IsRoot() bool {
	return l.Path == "/"
}

func (l Locator) String() string {
	return l.Authority + ":" + l.Path
}
