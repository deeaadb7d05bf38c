package services

import (
	"errors"
	"fmt"
)

// Domain failures returned by the services. Controllers map these to HTTP
// statuses; anything else is an unexpected store failure.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("not allowed")
	ErrNotFound        = errors.New("not found")

	ErrAlreadyCheckedIn   = errors.New("already checked in today")
	ErrAttendanceRequired = errors.New("attendance required for that date")

	ErrInvalidCode             = errors.New("study code not recognized")
	ErrAlreadyMember           = errors.New("already a member of this study")
	ErrStudyFull               = errors.New("study is full")
	ErrOwnerCannotLeave        = errors.New("the owner cannot leave the study")
	ErrCodeGenerationExhausted = errors.New("could not generate a unique study code")

	// ErrTransient marks store/network failures that are safe to retry.
	ErrTransient = errors.New("temporary failure")
)

// transient wraps an unexpected store error so callers can offer a retry.
func transient(err error) error {
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

// IsDomainErr reports whether err is one of the typed domain failures, as
// opposed to a transient or unknown error.
func IsDomainErr(err error) bool {
	for _, e := range []error{
		ErrUnauthenticated, ErrForbidden, ErrNotFound,
		ErrAlreadyCheckedIn, ErrAttendanceRequired,
		ErrInvalidCode, ErrAlreadyMember, ErrStudyFull,
		ErrOwnerCannotLeave, ErrCodeGenerationExhausted,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
