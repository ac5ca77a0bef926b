package params

import (
	"fmt"
	"strings"
)

// ValidationError is a single parameter failure.
type ValidationError struct {
	Key    string
	Reason string
	Value  any
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("param %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("param %q: %s (got %T)", e.Key, e.Reason, e.Value)
}

// AggregateError collects every failure found by Validate.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d param errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *AggregateError) Unwrap() []error {
	return e.Errors
}
