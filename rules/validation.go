package rules

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	maxNameLength       = 100
	maxExpressionLength = 4096
)

// ErrInvalidRule wraps every ValidateRule failure.
var ErrInvalidRule = errors.New("invalid rule")

// ValidateRule checks the fields of r that do not need the CEL environment.
// Expressions are checked for presence and size here and compiled by Engine.
func ValidateRule(r *Rule) error {
	if err := validateName(r.Name); err != nil {
		return fmt.Errorf("%w: name: %v", ErrInvalidRule, err)
	}

	if !r.Entity.Valid() {
		return fmt.Errorf("%w: entity %q must be one of candidate, project, client", ErrInvalidRule, r.Entity)
	}

	if !r.Type.Valid() {
		return fmt.Errorf("%w: unknown nudge type %q", ErrInvalidRule, r.Type)
	}

	if !r.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %d", ErrInvalidRule, int(r.Priority))
	}

	for _, expr := range []struct{ field, value string }{
		{"condition", r.Condition},
		{"title", r.Title},
		{"description", r.Description},
	} {
		if strings.TrimSpace(expr.value) == "" {
			return fmt.Errorf("%w: %s expression cannot be empty", ErrInvalidRule, expr.field)
		}
		if len(expr.value) > maxExpressionLength {
			return fmt.Errorf("%w: %s expression is %d bytes, maximum is %d", ErrInvalidRule, expr.field, len(expr.value), maxExpressionLength)
		}
	}

	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("cannot be empty")
	}
	if strings.TrimSpace(name) != name {
		return fmt.Errorf("has leading or trailing whitespace: %q", name)
	}
	if n := utf8.RuneCountInString(name); n > maxNameLength {
		return fmt.Errorf("length %d exceeds maximum of %d characters", n, maxNameLength)
	}
	return nil
}
