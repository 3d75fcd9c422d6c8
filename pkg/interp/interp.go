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

// Package interp resolves named placeholders in path and command patterns.
//
// A pattern is plain text with placeholders of the form {key} or
// {key=default}. Literal braces are written doubled: {{ and }}. Resolving a
// pattern never fails on an unknown key; the key is recorded in the returned
// KeySet instead, so callers can enumerate candidate values for it.
package interp

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedPattern is returned for syntactically invalid patterns.
var ErrMalformedPattern = errors.New("malformed pattern")

var keyRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Context maps placeholder keys to substitution text.
type Context map[string]string

// With returns a copy of c overlaid with other.
func (c Context) With(other Context) Context {
	out := make(Context, len(c)+len(other))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// KeySet is an insertion-ordered set of placeholder keys.
type KeySet struct {
	order []string
	seen  map[string]struct{}
}

func (s *KeySet) add(key string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[key]; ok {
		return
	}
	s.seen[key] = struct{}{}
	s.order = append(s.order, key)
}

// Has reports whether key is in the set.
func (s KeySet) Has(key string) bool {
	_, ok := s.seen[key]
	return ok
}

// Keys returns the keys in first-occurrence order.
func (s KeySet) Keys() []string {
	return append([]string(nil), s.order...)
}

// Len returns the number of keys.
func (s KeySet) Len() int {
	return len(s.order)
}

type placeholder struct {
	key        string
	def        string
	hasDefault bool
}

func (p placeholder) String() string {
	if p.hasDefault {
		return "{" + p.key + "=" + p.def + "}"
	}
	return "{" + p.key + "}"
}

// part is either literal text or a placeholder.
type part struct {
	text string
	ph   *placeholder
}

// Template is a parsed pattern. It is immutable.
type Template struct {
	parts []part
}

// Parse parses pattern.
func Parse(pattern string) (*Template, error) {
	t := &Template{}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.parts = append(t.parts, part{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '{':
			if i+1 < len(pattern) && pattern[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexAny(pattern[i+1:], "{}")
			if end < 0 || pattern[i+1+end] != '}' {
				return nil, fmt.Errorf("%w %q: unterminated placeholder at offset %d", ErrMalformedPattern, pattern, i)
			}
			ph, err := parsePlaceholder(pattern[i+1 : i+1+end])
			if err != nil {
				return nil, fmt.Errorf("%w %q: %v", ErrMalformedPattern, pattern, err)
			}
			flush()
			t.parts = append(t.parts, part{ph: ph})
			i += end + 1
		case '}':
			if i+1 < len(pattern) && pattern[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, fmt.Errorf("%w %q: single '}' at offset %d", ErrMalformedPattern, pattern, i)
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return t, nil
}

// MustParse is like Parse but panics on error. Intended for constants.
func MustParse(pattern string) *Template {
	t, err := Parse(pattern)
	if err != nil {
		panic(err)
	}
	return t
}

func parsePlaceholder(body string) (*placeholder, error) {
	key, def, hasDefault := strings.Cut(body, "=")
	if !keyRegexp.MatchString(key) {
		return nil, fmt.Errorf("invalid placeholder name %q", key)
	}
	return &placeholder{key: key, def: def, hasDefault: hasDefault}, nil
}

// Keys returns every placeholder key in order of first appearance.
func (t *Template) Keys() []string {
	var ks KeySet
	for _, p := range t.parts {
		if p.ph != nil {
			ks.add(p.ph.key)
		}
	}
	return ks.Keys()
}

// Resolve substitutes placeholders from ctx. Keys absent from ctx are
// recorded in the returned KeySet even when an inline default supplied the
// text. A missing key without default is left in the output as {key}.
func (t *Template) Resolve(ctx Context) (string, KeySet) {
	var b strings.Builder
	var missing KeySet
	for _, p := range t.parts {
		switch {
		case p.ph == nil:
			b.WriteString(p.text)
		default:
			if v, ok := ctx[p.ph.key]; ok {
				b.WriteString(v)
				continue
			}
			missing.add(p.ph.key)
			if p.ph.hasDefault {
				b.WriteString(p.ph.def)
			} else {
				b.WriteString("{" + p.ph.key + "}")
			}
		}
	}
	return b.String(), missing
}

// Apply substitutes the keys present in ctx and keeps the others as
// placeholders, defaults included.
func (t *Template) Apply(ctx Context) *Template {
	out := &Template{}
	for _, p := range t.parts {
		if p.ph != nil {
			if v, ok := ctx[p.ph.key]; ok {
				out.appendText(v)
				continue
			}
			out.parts = append(out.parts, p)
			continue
		}
		out.appendText(p.text)
	}
	return out
}

func (t *Template) appendText(s string) {
	if s == "" {
		return
	}
	if n := len(t.parts); n > 0 && t.parts[n-1].ph == nil {
		t.parts[n-1].text += s
		return
	}
	t.parts = append(t.parts, part{text: s})
}

// Span is one piece of a split template: resolved text when Key is empty,
// an unresolved placeholder otherwise.
type Span struct {
	Text       string
	Key        string
	Default    string
	HasDefault bool
}

// Resolved reports whether the span is plain text.
func (s Span) Resolved() bool {
	return s.Key == ""
}

// Split resolves what it can from ctx and emits each remaining placeholder
// as its own span instead of substituting its default.
func (t *Template) Split(ctx Context) []Span {
	var spans []Span
	for _, p := range t.Apply(ctx).parts {
		if p.ph == nil {
			spans = append(spans, Span{Text: p.text})
			continue
		}
		spans = append(spans, Span{Key: p.ph.key, Default: p.ph.def, HasDefault: p.ph.hasDefault})
	}
	return spans
}

// SplitPath cuts the template at every sep found in its literal text.
// Placeholders never span segments. Empty segments are dropped, except that
// an absolute template keeps a leading "" segment for the root.
func (t *Template) SplitPath(sep byte) []*Template {
	segs := []*Template{{}}
	for _, p := range t.parts {
		if p.ph != nil {
			cur := segs[len(segs)-1]
			cur.parts = append(cur.parts, p)
			continue
		}
		pieces := strings.Split(p.text, string(sep))
		for i, piece := range pieces {
			if i > 0 {
				segs = append(segs, &Template{})
			}
			segs[len(segs)-1].appendText(piece)
		}
	}

	out := make([]*Template, 0, len(segs))
	for i, s := range segs {
		if len(s.parts) == 0 && i > 0 {
			continue
		}
		out = append(out, s)
	}
	return out
}

// IsLiteral reports whether the template has no placeholders.
func (t *Template) IsLiteral() bool {
	for _, p := range t.parts {
		if p.ph != nil {
			return false
		}
	}
	return true
}

// String renders the template back into pattern syntax.
func (t *Template) String() string {
	var b strings.Builder
	for _, p := range t.parts {
		if p.ph != nil {
			b.WriteString(p.ph.String())
			continue
		}
		text := strings.ReplaceAll(p.text, "{", "{{")
		b.WriteString(strings.ReplaceAll(text, "}", "}}"))
	}
	return b.String()
}

// Resolve parses pattern and resolves it against ctx.
func Resolve(pattern string, ctx Context) (string, KeySet, error) {
	t, err := Parse(pattern)
	if err != nil {
		return "", KeySet{}, err
	}
	s, missing := t.Resolve(ctx)
	return s, missing, nil
}
