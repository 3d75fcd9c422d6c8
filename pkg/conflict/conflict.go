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

// Package conflict evaluates the boolean rules that veto inconsistently
// specified jobs. Rules reference file predicates by name and combine them
// with ! (not), & (and) and | (or); & binds tighter than | and parentheses
// group explicitly.
package conflict

import (
	"errors"
	"fmt"
	"regexp"

	"clusterq/pkg/config"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

var (
	// ErrConflictDetected is returned when a rule matches a job.
	ErrConflictDetected = errors.New("conflict detected")
	// ErrMalformedExpression is returned for rules that cannot be compiled.
	ErrMalformedExpression = errors.New("malformed conflict expression")
)

// Predicates maps predicate names to their truth value for one job.
type Predicates map[string]bool

var (
	andOp = regexp.MustCompile(`&+`)
	orOp  = regexp.MustCompile(`\|+`)
)

// Expression is a compiled conflict expression.
type Expression struct {
	source string
	expr   hclsyntax.Expression
	names  []string
}

// Compile parses src. Only predicate names, negation, conjunction,
// disjunction and parentheses are accepted.
func Compile(src string) (*Expression, error) {
	normalized := orOp.ReplaceAllString(andOp.ReplaceAllString(src, "&&"), "||")
	expr, diags := hclsyntax.ParseExpression([]byte(normalized), "conflict", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w %q: %s", ErrMalformedExpression, src, diags.Error())
	}
	e := &Expression{source: src, expr: expr}
	if err := e.check(expr); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrMalformedExpression, src, err)
	}
	return e, nil
}

func (e *Expression) check(expr hclsyntax.Expression) error {
	switch x := expr.(type) {
	case *hclsyntax.BinaryOpExpr:
		if x.Op != hclsyntax.OpLogicalAnd && x.Op != hclsyntax.OpLogicalOr {
			return errors.New("only & and | may combine predicates")
		}
		if err := e.check(x.LHS); err != nil {
			return err
		}
		return e.check(x.RHS)
	case *hclsyntax.UnaryOpExpr:
		if x.Op != hclsyntax.OpLogicalNot {
			return errors.New("only ! may negate a predicate")
		}
		return e.check(x.Val)
	case *hclsyntax.ParenthesesExpr:
		return e.check(x.Expression)
	case *hclsyntax.ScopeTraversalExpr:
		if len(x.Traversal) != 1 {
			return fmt.Errorf("attribute or index access on %q", x.Traversal.RootName())
		}
		name := x.Traversal.RootName()
		for _, n := range e.names {
			if n == name {
				return nil
			}
		}
		e.names = append(e.names, name)
		return nil
	default:
		return errors.New("unexpected term")
	}
}

// String returns the expression as written.
func (e *Expression) String() string {
	return e.source
}

// Names lists the referenced predicates in order of first appearance.
func (e *Expression) Names() []string {
	return append([]string(nil), e.names...)
}

// Evaluate folds the expression over preds. Names absent from preds are
// false.
func (e *Expression) Evaluate(preds Predicates) (bool, error) {
	vars := make(map[string]cty.Value, len(e.names))
	for _, name := range e.names {
		vars[name] = cty.BoolVal(preds[name])
	}
	val, diags := e.expr.Value(&hcl.EvalContext{Variables: vars})
	if diags.HasErrors() {
		return false, fmt.Errorf("%w %q: %s", ErrMalformedExpression, e.source, diags.Error())
	}
	return val.True(), nil
}

// Rule is a compiled conflict rule.
type Rule struct {
	Expression *Expression
	Message    string
}

// Rules are checked in declaration order.
type Rules []Rule

// CompileRules compiles every configured rule, keeping their order.
func CompileRules(rules config.Rules) (Rules, error) {
	out := make(Rules, 0, len(rules))
	for _, r := range rules {
		expr, err := Compile(r.Expression)
		if err != nil {
			return nil, err
		}
		out = append(out, Rule{Expression: expr, Message: r.Message})
	}
	return out, nil
}

// FirstMatch returns the first rule matching preds. Later rules are not
// evaluated once one matches.
func (rs Rules) FirstMatch(preds Predicates) (*Rule, error) {
	for i := range rs {
		ok, err := rs[i].Expression.Evaluate(preds)
		if err != nil {
			return nil, err
		}
		if ok {
			return &rs[i], nil
		}
	}
	return nil, nil
}

// Check returns an ErrConflictDetected error carrying the message of the
// first matching rule, or nil when no rule matches.
func (rs Rules) Check(preds Predicates) error {
	r, err := rs.FirstMatch(preds)
	if err != nil {
		return err
	}
	if r != nil {
		return fmt.Errorf("%w: %s", ErrConflictDetected, r.Message)
	}
	return nil
}
