// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors for the domain layer. Handlers wrap domain failures in one
// of these classes; RespondError maps the class to a status code.
var (
	// ErrNotFound indicates a missing resource.
	ErrNotFound = errors.New("resource not found")
	// ErrValidation covers malformed or incomplete input, safe to retry
	// after correction.
	ErrValidation = errors.New("validation failed")
	// ErrConflict covers failures that depend on concurrent state, such as
	// stale availability counts. A retry after re-reading may succeed.
	ErrConflict = errors.New("conflict")
	// ErrInvariant covers blocked lifecycle transitions. The entity remains
	// in its prior state.
	ErrInvariant = errors.New("invariant violated")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrConflict), IsSerializationFailure(err):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvariant):
		Problem(w, http.StatusUnprocessableEntity, "Invariant Violated", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// IsSerializationFailure reports whether err is a PostgreSQL serialization
// or deadlock failure. These surface as conflicts for caller retry.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
