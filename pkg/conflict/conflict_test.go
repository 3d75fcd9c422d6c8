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

package conflict

import (
	"errors"
	"testing"

	"clusterq/pkg/config"

	"github.com/google/go-cmp/cmp"
)

func TestEvaluate(t *testing.T) {
	preds := Predicates{"a": true, "b": false}
	tests := []struct {
		expr string
		want bool
	}{
		{"a & !b", true},
		{"a & b", false},
		{"c", false},
		{"!c", true},
		{"a | c", true},
		{"b | c", false},
		{"b & c | a", true},
		{"a | b & c", true},
		{"(a | b) & c", false},
		{"!(a & b)", true},
		{"a && !b", true},
		{"b || a", true},
	}
	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			e, err := Compile(tc.expr)
			if err != nil {
				t.Fatalf("Compile(%q) returned error: %v", tc.expr, err)
			}
			got, err := e.Evaluate(preds)
			if err != nil {
				t.Fatalf("Evaluate(%q) returned error: %v", tc.expr, err)
			}
			if got != tc.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tc.expr, got, tc.want)
			}
		})
	}
}

func TestCompileMalformed(t *testing.T) {
	for _, src := range []string{"", "a &", "a + b", "a.b", "a[0]", "true", "(a", "a == b", "upper(a)"} {
		t.Run(src, func(t *testing.T) {
			if _, err := Compile(src); !errors.Is(err, ErrMalformedExpression) {
				t.Errorf("Compile(%q) error = %v, want ErrMalformedExpression", src, err)
			}
		})
	}
}

func TestNames(t *testing.T) {
	e, err := Compile("hasGuess & !hasBasis | (hasGuess & hasWfn)")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"hasGuess", "hasBasis", "hasWfn"}, e.Names()); diff != "" {
		t.Errorf("Names() diff (-want +got):\n%s", diff)
	}
}

func TestFirstMatch(t *testing.T) {
	rules, err := CompileRules(config.Rules{
		{Expression: "hasBasis & !hasGuess", Message: "basis without guess"},
		{Expression: "hasGuess & !hasBasis", Message: "missing basis set"},
		{Expression: "hasGuess", Message: "guess present"},
	})
	if err != nil {
		t.Fatal(err)
	}

	r, err := rules.FirstMatch(Predicates{"hasGuess": true, "hasBasis": false})
	if err != nil {
		t.Fatal(err)
	}
	if r == nil || r.Message != "missing basis set" {
		t.Fatalf("FirstMatch() = %v, want rule %q", r, "missing basis set")
	}

	err = rules.Check(Predicates{"hasGuess": true})
	if !errors.Is(err, ErrConflictDetected) {
		t.Fatalf("Check() error = %v, want ErrConflictDetected", err)
	}
	if got, want := err.Error(), "conflict detected: missing basis set"; got != want {
		t.Errorf("Check() error = %q, want %q", got, want)
	}

	if err := rules.Check(Predicates{}); err != nil {
		t.Errorf("Check() with no files = %v, want nil", err)
	}
}

func TestCompileRulesStopsOnMalformed(t *testing.T) {
	_, err := CompileRules(config.Rules{{Expression: "a & (", Message: "x"}})
	if !errors.Is(err, ErrMalformedExpression) {
		t.Errorf("CompileRules() error = %v, want ErrMalformedExpression", err)
	}
}
