package app

import (
	"errors"
	"fmt"
	"net/http"

	"contentcal/api/internal/auth"
	"contentcal/api/internal/content"
	"contentcal/api/internal/export"
	"contentcal/api/internal/history"
	"contentcal/api/internal/lock"
	"contentcal/api/internal/reconcile"
	"contentcal/api/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, content.ErrValidation), errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, reconcile.ErrDecisionRequired):
		return http.StatusConflict, "DECISION_REQUIRED", err.Error(), nil
	case errors.Is(err, lock.ErrLocked), errors.Is(err, store.ErrLockHeld):
		return http.StatusLocked, "LOCKED", err.Error(), nil
	case errors.Is(err, lock.ErrStaleLockCleared):
		return http.StatusConflict, "STALE_LOCK_CLEARED", err.Error(), nil
	case errors.Is(err, store.ErrLockRequired):
		return http.StatusPreconditionRequired, "LOCK_REQUIRED", err.Error(), nil
	case errors.Is(err, store.ErrNotFound), errors.Is(err, history.ErrNoHistory):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not available", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
