package signup

import (
	"errors"
	"strings"
)

// Role is the account type chosen on the signup form.
type Role string

const (
	RolePatient  Role = "patient"
	RoleDoctor   Role = "doctor"
	RoleHospital Role = "hospital"
)

// Roles lists the selectable roles in form order.
var Roles = []Role{RolePatient, RoleDoctor, RoleHospital}

var ErrInvalidRole = errors.New("invalid role")

// ParseRole accepts the form value. "citizen" is the old name for patient;
// an empty value selects patient as well.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "citizen", string(RolePatient):
		return RolePatient, nil
	case string(RoleDoctor):
		return RoleDoctor, nil
	case string(RoleHospital):
		return RoleHospital, nil
	}
	return "", ErrInvalidRole
}

// Label is the text shown on the role selector.
func (r Role) Label() string {
	switch r {
	case RolePatient:
		return "Patient"
	case RoleDoctor:
		return "Doctor"
	case RoleHospital:
		return "Hospital"
	}
	return string(r)
}

// RedirectPath is where a freshly signed-up account continues.
func RedirectPath(r Role) string {
	switch r {
	case RolePatient:
		return "/create-patient"
	case RoleDoctor:
		return "/create-doctor"
	case RoleHospital:
		return "/create-hospital"
	default:
		return "/"
	}
}

// Identity provider error codes, in the form Firebase client SDKs use.
const (
	CodeEmailInUse       = "auth/email-already-in-use"
	CodeInvalidEmail     = "auth/invalid-email"
	CodeWeakPassword     = "auth/weak-password"
	CodeMissingPassword  = "auth/missing-password"
	CodeInvalidPhone     = "auth/invalid-phone-number"
	CodeInvalidCode      = "auth/invalid-verification-code"
	CodeSessionExpired   = "auth/code-expired"
	CodeTooManyRequests  = "auth/too-many-requests"
	CodeInvalidIDPToken  = "auth/invalid-credential"
	CodeOperationBlocked = "auth/operation-not-allowed"
	CodeInternal         = "auth/internal-error"
)

const genericMessage = "An error occurred. Please try again later."

// MessageForError maps a provider error code to the text shown on the form.
func MessageForError(code string) string {
	switch code {
	case CodeEmailInUse:
		return "Email is already in use"
	case CodeInvalidEmail:
		return "Invalid Email"
	case CodeWeakPassword:
		return "The password is too weak."
	default:
		return genericMessage
	}
}

// ProviderError is a failure reported by the identity provider.
type ProviderError struct {
	Code   string
	Detail string
}

func (e *ProviderError) Error() string {
	if e.Detail == "" {
		return e.Code
	}
	return e.Code + ": " + e.Detail
}

// CodeOf extracts the provider error code from err, or CodeInternal.
func CodeOf(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeInternal
}
