package voting

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Base error kinds. Specific failures wrap one of these so callers can
// branch with errors.Is and map them to transport-level responses.
var (
	// ErrNotFound indicates an entity id did not resolve.
	ErrNotFound = errors.New("voting: not found")
	// ErrConflict indicates the operation lost to concurrent state.
	ErrConflict = errors.New("voting: conflict")
	// ErrInvalidState indicates a lifecycle precondition does not hold.
	ErrInvalidState = errors.New("voting: invalid state")
)

var (
	// ErrVoteNotFound indicates the vote id did not resolve.
	ErrVoteNotFound = fmt.Errorf("%w: vote", ErrNotFound)
	// ErrAnotherVoteOpen indicates a different vote already holds the
	// single open slot.
	ErrAnotherVoteOpen = fmt.Errorf("%w: another vote is already open", ErrConflict)
	// ErrSubItemNotCurrent indicates the vote's sub-item is not the
	// active agenda entry.
	ErrSubItemNotCurrent = fmt.Errorf("%w: sub-item is not current", ErrInvalidState)
	// ErrVoteNotOpen indicates the vote is not in the open status.
	ErrVoteNotOpen = fmt.Errorf("%w: vote is not open", ErrInvalidState)
	// ErrNoCurrentSubItem indicates no sub-item is active, so presence
	// cannot change.
	ErrNoCurrentSubItem = fmt.Errorf("%w: no sub-item is current", ErrInvalidState)
	// ErrVoteOpen indicates an open vote blocks the operation.
	ErrVoteOpen = fmt.Errorf("%w: a vote is open", ErrInvalidState)
)

// ValidationErrors collects field-level validation messages. It is
// returned by operations whose failures the caller surfaces for display;
// no state is mutated when it is non-empty.
type ValidationErrors map[string][]string

// Add appends a message for the named field.
func (v ValidationErrors) Add(field, message string) {
	v[field] = append(v[field], message)
}

// Error renders the collected messages field by field.
func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(v[field], "; ")))
	}
	return "voting: validation failed: " + strings.Join(parts, ", ")
}

// AsValidationErrors extracts a ValidationErrors value from an error chain.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var fieldErrors ValidationErrors
	if errors.As(err, &fieldErrors) {
		return fieldErrors, true
	}
	return nil, false
}
