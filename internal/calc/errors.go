package calc

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAllBackendsExhausted is matched by every *ExhaustedError.
	ErrAllBackendsExhausted = errors.New("all calculation backends exhausted")
	// ErrEmptyPayload is reported when a backend returns neither payload nor error.
	ErrEmptyPayload = errors.New("backend returned empty payload")
	// ErrBudgetReserved is recorded for a backend skipped because the time
	// left is kept for the last eligible backend.
	ErrBudgetReserved = errors.New("turn budget reserved for fallback backend")
)

// Attempt records one failed backend call or skip.
type Attempt struct {
	Backend string
	Err     error
}

// ExhaustedError is returned when no eligible backend produced a result.
type ExhaustedError struct {
	Kind     OperationKind
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("%s: %s: no eligible backend", ErrAllBackendsExhausted, e.Kind)
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Backend+": "+a.Err.Error())
	}
	return fmt.Sprintf("%s: %s: %s", ErrAllBackendsExhausted, e.Kind, strings.Join(parts, "; "))
}

// Is matches ErrAllBackendsExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllBackendsExhausted
}
