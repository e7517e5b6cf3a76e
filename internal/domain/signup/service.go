package signup

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Result is a completed signup.
type Result struct {
	User     *User
	Role     Role
	Redirect string
}

// Service runs the signup flows and records the chosen role on the account.
type Service struct {
	provider Provider
	logger   zerolog.Logger
}

func NewService(p Provider, logger zerolog.Logger) *Service {
	return &Service{provider: p, logger: logger}
}

func (s *Service) SignUpWithEmail(ctx context.Context, role Role, email, password string) (*Result, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, &ProviderError{Code: CodeInvalidEmail}
	}
	if password == "" {
		return nil, &ProviderError{Code: CodeMissingPassword}
	}
	u, err := s.provider.SignUpWithPassword(ctx, email, password)
	if err != nil {
		s.logFailure("password", role, err)
		return nil, err
	}
	return s.finish(ctx, "password", role, u)
}

func (s *Service) SignUpWithIDP(ctx context.Context, role Role, providerID, idToken, requestURI string) (*Result, error) {
	if providerID == "" {
		providerID = "google.com"
	}
	u, err := s.provider.SignInWithIDP(ctx, providerID, idToken, requestURI)
	if err != nil {
		s.logFailure(providerID, role, err)
		return nil, err
	}
	return s.finish(ctx, providerID, role, u)
}

// StartPhone sends the confirmation code and returns the session info the
// confirmation step echoes back.
func (s *Service) StartPhone(ctx context.Context, phoneNumber, recaptchaToken string) (string, error) {
	phoneNumber = strings.TrimSpace(phoneNumber)
	if phoneNumber == "" {
		return "", &ProviderError{Code: CodeInvalidPhone}
	}
	session, err := s.provider.SendPhoneCode(ctx, phoneNumber, recaptchaToken)
	if err != nil {
		s.logger.Info().Str("code", CodeOf(err)).Msg("phone code request failed")
		return "", err
	}
	return session, nil
}

func (s *Service) SignUpWithPhone(ctx context.Context, role Role, sessionInfo, code string) (*Result, error) {
	code = strings.TrimSpace(code)
	if sessionInfo == "" || code == "" {
		return nil, &ProviderError{Code: CodeInvalidCode}
	}
	u, err := s.provider.SignInWithPhone(ctx, sessionInfo, code)
	if err != nil {
		s.logFailure("phone", role, err)
		return nil, err
	}
	return s.finish(ctx, "phone", role, u)
}

// finish stores the role as the display name, which later shows up in the
// ID token's name claim.
func (s *Service) finish(ctx context.Context, method string, role Role, u *User) (*Result, error) {
	updated, err := s.provider.UpdateProfile(ctx, u.IDToken, string(role))
	if err != nil {
		s.logFailure(method, role, err)
		return nil, fmt.Errorf("store role: %w", err)
	}
	if updated.IDToken != "" {
		u.IDToken = updated.IDToken
		u.RefreshToken = updated.RefreshToken
		if updated.ExpiresIn > 0 {
			u.ExpiresIn = updated.ExpiresIn
		}
	}
	u.DisplayName = string(role)

	s.logger.Info().
		Str("user_id", u.UID).
		Str("method", method).
		Str("role", string(role)).
		Msg("account created")
	return &Result{User: u, Role: role, Redirect: RedirectPath(role)}, nil
}

func (s *Service) logFailure(method string, role Role, err error) {
	s.logger.Info().
		Str("method", method).
		Str("role", string(role)).
		Str("code", CodeOf(err)).
		Msg("signup failed")
}
