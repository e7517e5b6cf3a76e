package signup

import (
	"context"
	"time"
)

// User is an account as returned by the identity provider.
type User struct {
	UID          string
	Email        string
	PhoneNumber  string
	DisplayName  string
	IDToken      string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Provider is the identity provider used by signup. Every call that signs a
// user in returns a User with a stable UID.
type Provider interface {
	SignUpWithPassword(ctx context.Context, email, password string) (*User, error)
	// SignInWithIDP exchanges a federated credential (for example a Google
	// ID token obtained from a popup) for an account.
	SignInWithIDP(ctx context.Context, providerID, idToken, requestURI string) (*User, error)
	// SendPhoneCode texts a confirmation code and returns the session info
	// that SignInWithPhone needs.
	SendPhoneCode(ctx context.Context, phoneNumber, recaptchaToken string) (string, error)
	SignInWithPhone(ctx context.Context, sessionInfo, code string) (*User, error)
	UpdateProfile(ctx context.Context, idToken, displayName string) (*User, error)
}
