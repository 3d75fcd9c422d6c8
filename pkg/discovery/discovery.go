// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package discovery walks the directory tree named by a parameter path
// pattern and reports the parameter sets it finds.
package discovery

import (
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"path/filepath"
	"sort"
	"strings"

	"clusterq/pkg/interp"

	"github.com/agext/levenshtein"
	"github.com/fatih/color"
	"github.com/moby/patternmatcher"
	"github.com/spf13/afero"
)

var (
	// ErrNotADirectory is returned when a directory the pattern requires is
	// missing or is not a directory.
	ErrNotADirectory = errors.New("not a directory")
	// ErrNotFound is returned when a fully resolved pattern names nothing.
	ErrNotFound = errors.New("parameter set not found")
)

// Tree maps discovered entry names to their subtrees. A leaf is an empty
// tree and stands for one complete parameter set path.
type Tree map[string]Tree

// Names returns the entry names of t in sorted order.
func (t Tree) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Paths returns every root-to-leaf name sequence of t, sorted.
func (t Tree) Paths() [][]string {
	var out [][]string
	for _, name := range t.Names() {
		sub := t[name]
		if len(sub) == 0 {
			out = append(out, []string{name})
			continue
		}
		for _, p := range sub.Paths() {
			out = append(out, append([]string{name}, p...))
		}
	}
	return out
}

// Split applies ctx to pattern and cuts it into the longest resolved prefix,
// which becomes the root of the walk, and the remaining path segments. The
// last segment always stays in the remainder so the root is a directory.
func Split(pattern *interp.Template, ctx interp.Context) (string, []*interp.Template) {
	segs := pattern.Apply(ctx).SplitPath('/')
	var root []string
	i := 0
	for ; i < len(segs)-1 && segs[i].IsLiteral(); i++ {
		text, _ := segs[i].Resolve(nil)
		root = append(root, text)
	}
	rootPath := strings.Join(root, "/")
	if rootPath == "" && len(root) > 0 {
		rootPath = "/"
	}
	if rootPath == "" {
		rootPath = "."
	}
	return rootPath, segs[i:]
}

// DiscoverPattern splits pattern at its first unresolved segment and
// discovers the tree below it.
func DiscoverPattern(fs afero.Fs, pattern *interp.Template, ctx interp.Context) (Tree, error) {
	root, segs := Split(pattern, ctx)
	return Discover(fs, root, segs, ctx)
}

// Discover walks segs below root. A segment that resolves fully under ctx
// is descended into directly; any other segment is matched against the
// entries of the current directory with its unresolved keys as wildcards.
//
// Directories required before the first enumerated segment must exist, else
// ErrNotADirectory is returned. Below an enumerated segment, branches that
// cannot complete the pattern are pruned, so every leaf exists.
func Discover(fs afero.Fs, root string, segs []*interp.Template, ctx interp.Context) (Tree, error) {
	if err := assertDir(fs, root); err != nil {
		return nil, err
	}
	return walk(fs, root, segs, ctx, true)
}

func walk(fs afero.Fs, dir string, segs []*interp.Template, ctx interp.Context, strict bool) (Tree, error) {
	if len(segs) == 0 {
		return Tree{}, nil
	}
	seg, rest := segs[0].Apply(ctx), segs[1:]

	if seg.IsLiteral() {
		name, _ := seg.Resolve(nil)
		next := filepath.Join(dir, name)
		if len(rest) > 0 {
			if err := assertDir(fs, next); err != nil {
				if strict {
					return nil, err
				}
				return nil, nil
			}
		} else if _, err := fs.Stat(next); err != nil {
			if strict {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, next)
			}
			return nil, nil
		}
		return walk(fs, next, rest, ctx, strict)
	}

	pm, err := patternmatcher.New([]string{Wildcard(seg)})
	if err != nil {
		return nil, fmt.Errorf("failed to compile wildcard for %q: %w", seg.String(), err)
	}
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	tree := Tree{}
	for _, e := range entries {
		ok, err := pm.MatchesOrParentMatches(e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to match %s: %w", e.Name(), err)
		}
		if !ok {
			continue
		}
		next := filepath.Join(dir, e.Name())
		if len(rest) > 0 && !isDir(fs, next) {
			continue
		}
		sub, err := walk(fs, next, rest, ctx, false)
		if err != nil {
			return nil, err
		}
		if sub != nil {
			tree[e.Name()] = sub
		}
	}
	if len(tree) == 0 && !strict {
		return nil, nil
	}
	return tree, nil
}

// wildcardSpecial are escaped in literal text so the matcher treats them
// as plain characters.
const wildcardSpecial = `\*?[]!.+()|{}^$`

// Wildcard renders seg as a match pattern in which every unresolved key
// matches any run of characters. Adjacent keys share one wildcard, since
// "**" would also match across directories.
func Wildcard(seg *interp.Template) string {
	var b strings.Builder
	star := false
	for _, span := range seg.Split(nil) {
		if !span.Resolved() {
			if !star {
				b.WriteByte('*')
			}
			star = true
			continue
		}
		star = false
		for _, r := range span.Text {
			if strings.ContainsRune(wildcardSpecial, r) {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isDir(fs afero.Fs, path string) bool {
	fi, err := fs.Stat(path)
	return err == nil && fi.IsDir()
}

func assertDir(fs afero.Fs, path string) error {
	fi, err := fs.Stat(path)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return fmt.Errorf("%w: %s does not exist", ErrNotADirectory, path)
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotADirectory, path)
	}
	return nil
}

// DefaultNames returns, for every unresolved segment of segs, the entry name
// selected by defaults and inline pattern defaults. The name is empty where
// no default applies.
func DefaultNames(segs []*interp.Template, ctx, defaults interp.Context) []string {
	var names []string
	for _, seg := range segs {
		applied := seg.Apply(ctx)
		if applied.IsLiteral() {
			continue
		}
		name, _ := applied.Resolve(defaults)
		for _, span := range applied.Apply(defaults).Split(nil) {
			if !span.Resolved() && !span.HasDefault {
				name = ""
				break
			}
		}
		names = append(names, name)
	}
	return names
}

var defaultMark = color.New(color.FgGreen).SprintFunc()

// Render writes t as an indented listing starting at depth, one entry per
// line, marking at each level the entry named in defaults.
func Render(w io.Writer, t Tree, defaults []string, depth int) {
	var def string
	if len(defaults) > 0 {
		def, defaults = defaults[0], defaults[1:]
	}
	pad := strings.Repeat("  ", depth)
	for _, name := range t.Names() {
		if name == def {
			fmt.Fprintf(w, "%s%s %s\n", pad, name, defaultMark("(default)"))
		} else {
			fmt.Fprintf(w, "%s%s\n", pad, name)
		}
		Render(w, t[name], defaults, depth+1)
	}
}

// Suggest returns the candidate closest to name, or "" when none is close
// enough to be a plausible typo.
func Suggest(name string, candidates []string) string {
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.Distance(name, c, nil)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist < 0 || bestDist > len(name)/2+1 {
		return ""
	}
	return best
}
