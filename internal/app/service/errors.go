package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sifan077/linkguard/internal/app/model"
)

var (
	// ErrNotFound signals an unknown or inactive short code.
	ErrNotFound = errors.New("short link not found")
	// ErrConflict signals that the requested or generated short code is taken.
	ErrConflict = errors.New("short code already exists")
	// ErrStoreUnavailable wraps failures of the authoritative store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrIPBlocked signals that the caller's IP has an active block entry.
	ErrIPBlocked = errors.New("ip address is blocked")
	// ErrForbidden signals an attempt to modify a link owned by another IP.
	ErrForbidden = errors.New("not authorized to modify this link")
	// ErrSpamRejected matches every *SpamRejectedError.
	ErrSpamRejected = errors.New("request rejected as spam")
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports malformed input. It is never counted as abuse.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// SpamRejectedError carries the classifier reason. Detail stays server side.
type SpamRejectedError struct {
	Reason model.AbuseKind
}

func (e *SpamRejectedError) Error() string {
	return fmt.Sprintf("request rejected as spam (%s)", e.Reason)
}

func (e *SpamRejectedError) Is(target error) bool {
	return target == ErrSpamRejected
}

func storeUnavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
