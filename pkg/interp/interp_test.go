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

package interp

import (
	"errors"
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		pattern     string
		ctx         Context
		want        string
		wantMissing []string
	}{
		{
			name:    "all keys known",
			pattern: "/home/{user}/basis/{basis}",
			ctx:     Context{"user": "ana", "basis": "def2-svp"},
			want:    "/home/ana/basis/def2-svp",
		},
		{
			name:        "missing key is kept and recorded",
			pattern:     "/opt/{cluster}/{basis}",
			ctx:         Context{"cluster": "nodo"},
			want:        "/opt/nodo/{basis}",
			wantMissing: []string{"basis"},
		},
		{
			name:        "inline default fills text but key is still missing",
			pattern:     "/opt/{version=5.0}/bin",
			ctx:         Context{},
			want:        "/opt/5.0/bin",
			wantMissing: []string{"version"},
		},
		{
			name:    "context wins over inline default",
			pattern: "/opt/{version=5.0}/bin",
			ctx:     Context{"version": "4.2"},
			want:    "/opt/4.2/bin",
		},
		{
			name:        "repeated keys recorded once in order",
			pattern:     "{b}/{a}/{b}-{c=x}",
			ctx:         Context{},
			want:        "{b}/{a}/{b}-x",
			wantMissing: []string{"b", "a", "c"},
		},
		{
			name:    "escaped braces",
			pattern: "{{literal}}/{name}",
			ctx:     Context{"name": "water"},
			want:    "{literal}/water",
		},
		{
			name:    "default may contain equals",
			pattern: "{opt=a=b}",
			ctx:     Context{"opt": "set"},
			want:    "set",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, missing, err := Resolve(tt.pattern, tt.ctx)
			if err != nil {
				t.Fatalf("Resolve(%q) failed: %v", tt.pattern, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.pattern, got, tt.want)
			}
			if diff := cmp.Diff(tt.wantMissing, missing.Keys()); diff != "" {
				t.Errorf("missing keys mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveMalformed(t *testing.T) {
	for _, pattern := range []string{
		"/opt/{basis",
		"/opt/basis}",
		"/opt/{}",
		"/opt/{0}",
		"/opt/{a b}",
		"/opt/{a={b}}",
		"/opt/{=x}",
		"/opt/{a:>10}",
	} {
		t.Run(pattern, func(t *testing.T) {
			_, _, err := Resolve(pattern, Context{})
			if !errors.Is(err, ErrMalformedPattern) {
				t.Errorf("expected ErrMalformedPattern for %q, got %v", pattern, err)
			}
		})
	}
}

var placeholderRegexp = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)(=[^{}]*)?\}`)

// Missing keys must equal the textual placeholder set minus the context keys.
func TestMissingKeysMatchTextualExtraction(t *testing.T) {
	patterns := []string{
		"/a/{x}/{y=1}/{z}",
		"{x}{x}{x}",
		"/scratch/{user}/{job}.{suffix=out}",
		"no placeholders",
	}
	contexts := []Context{
		{},
		{"x": "1"},
		{"y": "2", "user": "u"},
		{"x": "", "z": "", "job": "j", "suffix": "s"},
	}
	for _, p := range patterns {
		for _, ctx := range contexts {
			var want []string
			seen := map[string]bool{}
			for _, m := range placeholderRegexp.FindAllStringSubmatch(p, -1) {
				if _, ok := ctx[m[1]]; ok || seen[m[1]] {
					continue
				}
				seen[m[1]] = true
				want = append(want, m[1])
			}
			_, missing, err := Resolve(p, ctx)
			if err != nil {
				t.Fatalf("Resolve(%q) failed: %v", p, err)
			}
			if diff := cmp.Diff(want, missing.Keys()); diff != "" {
				t.Errorf("Resolve(%q, %v) missing keys mismatch (-want +got):\n%s", p, ctx, diff)
			}
		}
	}
}

func TestSplit(t *testing.T) {
	tmpl := MustParse("/opt/{cluster}/{functional}-{basis=svp}.dat")
	got := tmpl.Split(Context{"cluster": "nodo", "basis": "tzvp"})
	want := []Span{
		{Text: "/opt/nodo/"},
		{Key: "functional"},
		{Text: "-tzvp.dat"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Split mismatch (-want +got):\n%s", diff)
	}

	got = tmpl.Split(Context{"cluster": "nodo"})
	want = []Span{
		{Text: "/opt/nodo/"},
		{Key: "functional"},
		{Text: "-"},
		{Key: "basis", Default: "svp", HasDefault: true},
		{Text: ".dat"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Split mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitPath(t *testing.T) {
	tmpl := MustParse("/opt/{cluster}/basis//{basis}-{{x}}")
	var got []string
	for _, seg := range tmpl.SplitPath('/') {
		got = append(got, seg.String())
	}
	want := []string{"", "opt", "{cluster}", "basis", "{basis}-{{x}}"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SplitPath mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyKeepsUnknownPlaceholders(t *testing.T) {
	tmpl := MustParse("{home}/params/{set=std}/{name}")
	applied := tmpl.Apply(Context{"home": "/home/ana"})
	if got, want := applied.String(), "/home/ana/params/{set=std}/{name}"; got != want {
		t.Errorf("Apply() = %q, want %q", got, want)
	}
	if diff := cmp.Diff([]string{"set", "name"}, applied.Keys()); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}
	if applied.IsLiteral() {
		t.Errorf("expected placeholders to remain")
	}
	if !tmpl.Apply(Context{"home": "h", "set": "s", "name": "n"}).IsLiteral() {
		t.Errorf("expected a literal template once every key is applied")
	}
}
