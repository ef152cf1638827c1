package timetable

import "fmt"

// RunErrorKind is the tagged enum the original ExcelImportError/ValueError
// taxonomy is translated into: a closed set of first-class outcomes instead
// of exceptions used for control flow.
type RunErrorKind string

const (
	KindCapacity  RunErrorKind = "capacity"
	KindInfeasible RunErrorKind = "infeasible"
	KindInput     RunErrorKind = "input"
	KindIntegrity RunErrorKind = "integrity"
)

// RunError is the domain-level error type. Infeasible is a first-class
// outcome, not an exception: callers check Kind rather than unwrapping a
// generic error chain.
type RunError struct {
	Kind    RunErrorKind
	Message string
	// Shortfall fields, populated only for KindCapacity.
	NeededTheory, AvailableTheory int
	NeededLab, AvailableLab       int
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewCapacityError reports a pre-solve arithmetic shortfall; no solver is
// invoked when this is returned.
func NewCapacityError(neededTheory, availableTheory, neededLab, availableLab int) *RunError {
	return &RunError{
		Kind:            KindCapacity,
		Message:         fmt.Sprintf("insufficient capacity: theory need=%d have=%d, lab need=%d have=%d", neededTheory, availableTheory, neededLab, availableLab),
		NeededTheory:    neededTheory,
		AvailableTheory: availableTheory,
		NeededLab:       neededLab,
		AvailableLab:    availableLab,
	}
}

// ErrInfeasible is returned verbatim whenever the solver proves (or times
// out without finding) a feasible schedule. The driver does not distinguish
// proven infeasibility from timeout unless the underlying solver surfaces
// that signal explicitly.
var ErrInfeasible = &RunError{Kind: KindInfeasible, Message: "no feasible schedule found"}

// NewInputError wraps a malformed-ingestion failure.
func NewInputError(message string) *RunError {
	return &RunError{Kind: KindInput, Message: message}
}

// NewIntegrityError wraps a persistence failure; callers must roll back the
// entire run.
func NewIntegrityError(message string) *RunError {
	return &RunError{Kind: KindIntegrity, Message: message}
}
