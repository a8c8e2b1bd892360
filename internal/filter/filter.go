// Package filter decides which fetched flags are worth caching, using an
// expr-lang expression over the flag's attributes.
package filter

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/flagbase/flagbase-go/internal/domain"
)

// Filter is a compiled cache filter. A nil *Filter accepts every flag.
//
// The expression sees two variables:
//   - key: the flag key
//   - attributes: the full attribute map
//
// Example: `key startsWith "checkout-" || attributes.enabled == true`
type Filter struct {
	source  string
	program *vm.Program
}

// Compile parses expression. An empty expression returns a nil filter.
func Compile(expression string) (*Filter, error) {
	if expression == "" {
		return nil, nil
	}

	program, err := expr.Compile(expression, expr.Env(env("", nil)), expr.AsBool())
	if err != nil {
		return nil, domain.NewValidationErrorWithCause("invalid cache filter", err)
	}

	return &Filter{source: expression, program: program}, nil
}

// Match reports whether flag passes the filter.
func (f *Filter) Match(flag domain.RawFlag) (bool, error) {
	if f == nil {
		return true, nil
	}

	key, err := flag.Key()
	if err != nil {
		return false, err
	}

	result, err := expr.Run(f.program, env(key, flag))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate cache filter for %s: %w", key, err)
	}

	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("cache filter returned non-boolean: %T", result)
	}
	return matched, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return "no filtering (all flags cached)"
	}
	return f.source
}

func env(key string, attrs domain.RawFlag) map[string]interface{} {
	if attrs == nil {
		attrs = domain.RawFlag{}
	}
	return map[string]interface{}{
		"key":        key,
		"attributes": map[string]interface{}(attrs),
	}
}
