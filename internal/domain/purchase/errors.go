package purchase

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound          = errors.New("purchase not found")
	ErrProjectNotFound   = errors.New("project not found")
	ErrForbidden         = errors.New("not allowed to act on this purchase")
	ErrNotEligible       = errors.New("purchase is not eligible for this action")
	ErrAlreadyRated      = errors.New("purchase has already been rated")
	ErrUntrustedCallback = errors.New("untrusted payment callback")
	ErrConcurrentUpdate  = errors.New("purchase was modified concurrently")
	ErrDuplicateRef      = errors.New("gateway reference already used")
	ErrNotConfigured     = errors.New("feature is not configured")
	ErrValidation        = errors.New("validation failed")
)

// ValidationError carries per-field messages for a rejected request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// ErrSelfPurchase is returned when a seller tries to buy their own project.
var ErrSelfPurchase = invalid("project_id", "You cannot purchase your own project")
