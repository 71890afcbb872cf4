package doi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/doiregistry/hub"
)

var (
	// ErrNotFound is returned when a DOI does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a concurrent write changed the record
	// or the DOI is already taken.
	ErrConflict = errors.New("conflict")
	// ErrMethodNotAllowed is returned for operations the record's state
	// does not permit, such as deleting a findable DOI.
	ErrMethodNotAllowed = errors.New("method not allowed")
	// ErrForbidden is returned when the principal lacks a capability.
	ErrForbidden = errors.New("forbidden")
)

// NotFoundError names the missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Is enables errors.Is matching against ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// PolicyError is an authorization or domain policy refusal. It names the
// policy so it is never mistaken for a validation failure.
type PolicyError struct {
	Policy  string
	Message string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%s policy: %s", e.Policy, e.Message)
}

// Is enables errors.Is matching against ErrForbidden.
func (e *PolicyError) Is(target error) bool {
	return target == ErrForbidden
}

// ValidationError carries every field error of a refused write. Fatal
// marks an unsupported schema version, which is reported alone.
type ValidationError struct {
	Errors []hub.FieldError
	Fatal  bool
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Error())
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func newValidationError(r *hub.ValidationResult) *ValidationError {
	return &ValidationError{Errors: r.Errors, Fatal: r.Fatal}
}
