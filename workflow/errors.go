package workflow

import "fmt"

// Denial is a validation failure raised before any mutation is attempted.
// It is purely local: nothing was sent to the store.
type Denial struct {
	// NoOp marks a drop onto the current column; callers dismiss it without
	// surfacing an error.
	NoOp   bool
	Reason string
}

func (d *Denial) Error() string { return d.Reason }

// ScopeError signals the acting authority lacks the scope id the operation
// requires (for example a company admin with no associated company).
type ScopeError struct {
	Reason string
}

func (e *ScopeError) Error() string { return e.Reason }

// ErrNoCompanyScope is the scope failure for company-side actions.
func ErrNoCompanyScope() *ScopeError {
	return &ScopeError{Reason: "No tienes una empresa asociada para realizar esta acción"}
}

// ErrNoAdvisorScope is the scope failure for advisor-side actions.
func ErrNoAdvisorScope() *ScopeError {
	return &ScopeError{Reason: "Solo los asesores pueden realizar esta acción"}
}

// DenialErrorf builds a plain denial with a formatted reason.
func DenialErrorf(format string, args ...any) *Denial {
	return &Denial{Reason: fmt.Sprintf(format, args...)}
}
