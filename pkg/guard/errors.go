package guard

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated signals that no principal is attached to the request.
// The HTTP layer maps it to 401.
var ErrUnauthenticated = errors.New("authentication required")

// NotFoundError signals that the target resource (or a resource in its
// ownership chain) does not exist. Mapped to 404. Guards always resolve the
// resource before authorizing, so missing resources are reported as such
// rather than as denials.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Resource, e.ID)
}

// ForbiddenError signals that an authenticated principal was denied an
// action on an existing resource. Mapped to 403. Every instance is audited.
type ForbiddenError struct {
	UserID     int64
	Action     string
	Resource   string
	ResourceID int64
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("user %d is not allowed to %s %s %d", e.UserID, e.Action, e.Resource, e.ResourceID)
}

// DomainCode identifies a business-rule violation.
type DomainCode string

const (
	CodeInvitationExpired  DomainCode = "invitation_expired"
	CodeInvitationAccepted DomainCode = "invitation_accepted"
	CodeInvitationLimit    DomainCode = "invitation_limit_reached"
	CodeInvitationEmail    DomainCode = "invitation_email_mismatch"
	CodeWrongPassword      DomainCode = "wrong_page_password"
	CodeRoleInUse          DomainCode = "role_in_use"
	CodePermissionInUse    DomainCode = "permission_in_use"
	CodeSystemImmutable    DomainCode = "system_resource_immutable"
	CodeSelfDeletion       DomainCode = "admin_self_deletion"
)

// DomainError is a business-rule violation thrown as a distinct error
// channel from authorization denials: callers render its message instead of
// a blanket "not authorized".
type DomainError struct {
	Code    DomainCode
	Message string
}

func (e *DomainError) Error() string { return e.Message }

func domainErr(code DomainCode, format string, args ...interface{}) error {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err is a missing-resource rejection.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsForbidden reports whether err is an authorization denial.
func IsForbidden(err error) bool {
	var fb *ForbiddenError
	return errors.As(err, &fb)
}

// IsDomainError reports whether err is a business-rule violation, and
// optionally whether it carries one of the given codes.
func IsDomainError(err error, codes ...DomainCode) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	if len(codes) == 0 {
		return true
	}
	for _, code := range codes {
		if de.Code == code {
			return true
		}
	}
	return false
}
