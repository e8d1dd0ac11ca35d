// Package expr is the default expression evaluator: dotted-path
// lookups over the bindings, infix comparisons joined by && and ||,
// and text/template rendering for transforms. It covers the predicate
// shapes patterns typically use; richer languages can be plugged in
// through the ports.Evaluator interface.
package expr

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/template"
)

// Evaluator implements ports.Evaluator. It is stateless and safe for
// concurrent use.
type Evaluator struct{}

// New creates the default evaluator.
func New() *Evaluator { return &Evaluator{} }

// Evaluate computes an expression against the bindings. Expressions
// are either a single term (path or literal, returned as a value) or a
// boolean combination of comparisons: `a.b == 'x' && c.d >= 3`.
// || binds looser than &&. Parentheses are not supported.
func (e *Evaluator) Evaluate(_ context.Context, expr string, bindings map[string]any) (any, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty expression")
	}

	orParts := strings.Split(expr, "||")
	if len(orParts) == 1 && !strings.Contains(expr, "&&") &&
		!containsComparison(expr) && !strings.HasPrefix(expr, "!") {
		// Single term: return its value rather than a truth verdict.
		return term(expr, bindings)
	}

	for _, orPart := range orParts {
		andParts := strings.Split(orPart, "&&")
		all := true
		for _, clause := range andParts {
			ok, err := evalClause(strings.TrimSpace(clause), bindings)
			if err != nil {
				return nil, err
			}
			if !ok {
				all = false
				break
			}
		}
		if all {
			return true, nil
		}
	}
	return false, nil
}

// Render interpolates a template with the bindings as the root object.
func (e *Evaluator) Render(_ context.Context, tmpl string, bindings map[string]any) (string, error) {
	t, err := template.New("transform").Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}
	var b strings.Builder
	if err := t.Execute(&b, bindings); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return b.String(), nil
}

// comparison operators, longest first so ">=" wins over ">".
var operators = []string{"==", "!=", ">=", "<=", ">", "<"}

func containsComparison(expr string) bool {
	for _, op := range operators {
		if strings.Contains(expr, op) {
			return true
		}
	}
	return false
}

func evalClause(clause string, bindings map[string]any) (bool, error) {
	if clause == "" {
		return false, fmt.Errorf("empty clause")
	}

	negate := false
	for strings.HasPrefix(clause, "!") && !strings.HasPrefix(clause, "!=") {
		negate = !negate
		clause = strings.TrimSpace(clause[1:])
	}

	for _, op := range operators {
		idx := indexOperator(clause, op)
		if idx < 0 {
			continue
		}
		lhs, err := term(strings.TrimSpace(clause[:idx]), bindings)
		if err != nil {
			return false, err
		}
		rhs, err := term(strings.TrimSpace(clause[idx+len(op):]), bindings)
		if err != nil {
			return false, err
		}
		ok, err := compare(lhs, rhs, op)
		if err != nil {
			return false, fmt.Errorf("clause %q: %w", clause, err)
		}
		return ok != negate, nil
	}

	// Bare term: truthiness.
	v, err := term(clause, bindings)
	if err != nil {
		return false, err
	}
	return truthy(v) != negate, nil
}

// indexOperator finds op outside of quoted literals.
func indexOperator(clause, op string) int {
	inQuote := rune(0)
	for i := 0; i+len(op) <= len(clause); i++ {
		c := rune(clause[i])
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			}
		case c == '\'' || c == '"':
			inQuote = c
		case clause[i:i+len(op)] == op:
			// Avoid matching ">" inside ">=" and friends.
			if op == ">" || op == "<" {
				if i+1 < len(clause) && clause[i+1] == '=' {
					continue
				}
			}
			return i
		}
	}
	return -1
}

// term resolves a literal or a dotted path into the bindings.
func term(s string, bindings map[string]any) (any, error) {
	if s == "" {
		return nil, fmt.Errorf("empty term")
	}

	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1], nil
		}
	}
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null", "nil":
		return nil, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}

	return lookup(s, bindings), nil
}

// lookup walks a dotted path through nested maps. Missing segments
// resolve to nil; predicates treat nil as false.
func lookup(path string, bindings map[string]any) any {
	var cur any = bindings
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[seg]
		if !ok {
			return nil
		}
	}
	return cur
}

func compare(lhs, rhs any, op string) (bool, error) {
	lf, lok := asFloat(lhs)
	rf, rok := asFloat(rhs)
	if lok && rok {
		switch op {
		case "==":
			return lf == rf, nil
		case "!=":
			return lf != rf, nil
		case ">=":
			return lf >= rf, nil
		case "<=":
			return lf <= rf, nil
		case ">":
			return lf > rf, nil
		case "<":
			return lf < rf, nil
		}
	}

	ls := asString(lhs)
	rs := asString(rhs)
	switch op {
	case "==":
		return ls == rs, nil
	case "!=":
		return ls != rs, nil
	case ">=":
		return ls >= rs, nil
	case "<=":
		return ls <= rs, nil
	case ">":
		return ls > rs, nil
	case "<":
		return ls < rs, nil
	}
	return false, fmt.Errorf("unsupported operator %q", op)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case int:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
