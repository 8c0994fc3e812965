package domain

import (
	"fmt"
	"strings"
)

// MaxCategories caps the combined income+expense category count.
const MaxCategories = 20

// MaxCategoryLength is the exclusive upper bound on a category's length.
const MaxCategoryLength = 30

// ValidationError reports malformed caller input. It is the only error,
// besides ConfigurationError, allowed to escape the orchestrator.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ErrValidation creates a validation error for the given field.
func ErrValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ConfigurationError reports missing or unusable configuration. It is fatal
// at construction time and never surfaces per-request.
type ConfigurationError struct {
	Component string
	Message   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Component, e.Message)
}

// ErrConfiguration creates a configuration error for the given component.
func ErrConfiguration(component, message string) *ConfigurationError {
	return &ConfigurationError{Component: component, Message: message}
}

// ValidateCategories enforces the caller-supplied category invariants:
// combined length at most MaxCategories, every entry non-empty after
// trimming and under MaxCategoryLength characters.
func ValidateCategories(income, expense []string) error {
	if len(income)+len(expense) > MaxCategories {
		return ErrValidation("categories",
			fmt.Sprintf("combined category count %d exceeds %d", len(income)+len(expense), MaxCategories))
	}
	for field, list := range map[string][]string{
		"incomeCategories":  income,
		"expenseCategories": expense,
	} {
		for _, c := range list {
			trimmed := strings.TrimSpace(c)
			if trimmed == "" {
				return ErrValidation(field, "categories must be non-empty strings")
			}
			if len(trimmed) >= MaxCategoryLength {
				return ErrValidation(field,
					fmt.Sprintf("category %q must be under %d characters", trimmed, MaxCategoryLength))
			}
		}
	}
	return nil
}
