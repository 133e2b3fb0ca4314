package flow

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"
)

// Interpolator substitutes {{name}} tokens from the execution context into
// outbound text, URLs and request bodies. Plain dot-path lookups are resolved
// directly; anything richer falls back to a CEL expression over the same
// variables. Tokens that resolve to nothing are left untouched so a broken
// flow is visible instead of silently blank.
type Interpolator struct {
	tokenRegex *regexp.Regexp
}

// NewInterpolator creates an interpolator.
func NewInterpolator() *Interpolator {
	return &Interpolator{
		tokenRegex: regexp.MustCompile(`\{\{([^}]+)\}\}`),
	}
}

// Text replaces every token in s with its string rendering.
func (i *Interpolator) Text(s string, vars map[string]any) string {
	return i.tokenRegex.ReplaceAllStringFunc(s, func(match string) string {
		expr := strings.TrimSpace(i.tokenRegex.FindStringSubmatch(match)[1])
		if value, found := lookupPath(vars, expr); found {
			return fmt.Sprintf("%v", value)
		}
		if value, err := evalCEL(expr, vars); err == nil {
			return fmt.Sprintf("%v", value)
		}
		return match
	})
}

// Value resolves s keeping the native type when the string is exactly one
// token (e.g. "{{order.total}}" stays a number); otherwise behaves like Text.
func (i *Interpolator) Value(s string, vars map[string]any) (any, error) {
	matches := i.tokenRegex.FindStringSubmatch(s)
	if len(matches) > 0 && s == matches[0] {
		expr := strings.TrimSpace(matches[1])
		if value, found := lookupPath(vars, expr); found {
			return value, nil
		}
		return evalCEL(expr, vars)
	}
	return i.Text(s, vars), nil
}

// Map walks a decoded-JSON structure and interpolates every string in it.
func (i *Interpolator) Map(data map[string]any, vars map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = i.walk(v, vars)
	}
	return out
}

// StringMap interpolates the values of a flat string map (headers, params).
func (i *Interpolator) StringMap(data map[string]string, vars map[string]any) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = i.Text(v, vars)
	}
	return out
}

func (i *Interpolator) walk(v any, vars map[string]any) any {
	switch val := v.(type) {
	case string:
		resolved, err := i.Value(val, vars)
		if err != nil {
			return val
		}
		return resolved
	case map[string]any:
		return i.Map(val, vars)
	case []any:
		out := make([]any, len(val))
		for idx, item := range val {
			out[idx] = i.walk(item, vars)
		}
		return out
	default:
		return v
	}
}

// lookupPath resolves a dotted path against nested maps.
func lookupPath(vars map[string]any, path string) (any, bool) {
	current := any(vars)
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// evalCEL compiles and runs one CEL expression with every context variable
// declared as a dynamic top-level name.
func evalCEL(expression string, vars map[string]any) (any, error) {
	var envOptions []cel.EnvOption
	for key := range vars {
		if validCELIdent(key) {
			envOptions = append(envOptions, cel.Variable(key, cel.DynType))
		}
	}

	env, err := cel.NewEnv(envOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression %q: %w", expression, issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build program for %q: %w", expression, err)
	}

	input := make(map[string]any, len(vars))
	for k, v := range vars {
		if validCELIdent(k) {
			input[k] = v
		}
	}
	out, _, err := prg.Eval(input)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate %q: %w", expression, err)
	}

	return celToNative(out)
}

func celToNative(val ref.Val) (any, error) {
	if val == nil || val.Value() == nil {
		return nil, nil
	}
	if native, err := val.ConvertToNative(reflect.TypeOf(map[string]any{})); err == nil {
		return native, nil
	}
	return val.Value(), nil
}

var celIdentRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validCELIdent filters out variable names (attempt counters, markers) that
// CEL cannot declare.
func validCELIdent(name string) bool {
	return celIdentRegex.MatchString(name)
}
