package signup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const identityToolkitURL = "https://identitytoolkit.googleapis.com/v1"

// firebaseCodes maps Identity Toolkit REST error messages onto client codes.
var firebaseCodes = map[string]string{
	"EMAIL_EXISTS":                CodeEmailInUse,
	"INVALID_EMAIL":               CodeInvalidEmail,
	"WEAK_PASSWORD":               CodeWeakPassword,
	"MISSING_PASSWORD":            CodeMissingPassword,
	"INVALID_PHONE_NUMBER":        CodeInvalidPhone,
	"MISSING_PHONE_NUMBER":        CodeInvalidPhone,
	"INVALID_CODE":                CodeInvalidCode,
	"SESSION_EXPIRED":             CodeSessionExpired,
	"TOO_MANY_ATTEMPTS_TRY_LATER": CodeTooManyRequests,
	"INVALID_IDP_RESPONSE":        CodeInvalidIDPToken,
	"OPERATION_NOT_ALLOWED":       CodeOperationBlocked,
}

// FirebaseOption configures a FirebaseProvider.
type FirebaseOption func(*FirebaseProvider)

func WithEndpoint(base string) FirebaseOption {
	return func(p *FirebaseProvider) { p.base = strings.TrimRight(base, "/") }
}

func WithFirebaseHTTPClient(hc *http.Client) FirebaseOption {
	return func(p *FirebaseProvider) { p.http = hc }
}

// FirebaseProvider talks to the Firebase Authentication REST API.
type FirebaseProvider struct {
	apiKey string
	base   string
	http   *http.Client
}

func NewFirebaseProvider(apiKey string, opts ...FirebaseOption) (*FirebaseProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("firebase api key is required")
	}
	p := &FirebaseProvider{
		apiKey: apiKey,
		base:   identityToolkitURL,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// accountResponse covers the fields shared by the sign-in style endpoints.
type accountResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	PhoneNumber  string `json:"phoneNumber"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

func (r accountResponse) user() *User {
	u := &User{
		UID:          r.LocalID,
		Email:        r.Email,
		PhoneNumber:  r.PhoneNumber,
		DisplayName:  r.DisplayName,
		IDToken:      r.IDToken,
		RefreshToken: r.RefreshToken,
	}
	if secs, err := strconv.Atoi(r.ExpiresIn); err == nil {
		u.ExpiresIn = time.Duration(secs) * time.Second
	}
	return u
}

func (p *FirebaseProvider) SignUpWithPassword(ctx context.Context, email, password string) (*User, error) {
	var out accountResponse
	err := p.call(ctx, "accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.user(), nil
}

func (p *FirebaseProvider) SignInWithIDP(ctx context.Context, providerID, idToken, requestURI string) (*User, error) {
	if requestURI == "" {
		requestURI = "http://localhost"
	}
	postBody := url.Values{"id_token": {idToken}, "providerId": {providerID}}.Encode()
	var out accountResponse
	err := p.call(ctx, "accounts:signInWithIdp", map[string]any{
		"postBody":            postBody,
		"requestUri":          requestURI,
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.user(), nil
}

func (p *FirebaseProvider) SendPhoneCode(ctx context.Context, phoneNumber, recaptchaToken string) (string, error) {
	var out struct {
		SessionInfo string `json:"sessionInfo"`
	}
	err := p.call(ctx, "accounts:sendVerificationCode", map[string]any{
		"phoneNumber":    phoneNumber,
		"recaptchaToken": recaptchaToken,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.SessionInfo, nil
}

func (p *FirebaseProvider) SignInWithPhone(ctx context.Context, sessionInfo, code string) (*User, error) {
	var out accountResponse
	err := p.call(ctx, "accounts:signInWithPhoneNumber", map[string]any{
		"sessionInfo": sessionInfo,
		"code":        code,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.user(), nil
}

// UpdateProfile sets the display name. The returned ID token, when present,
// already carries the new name claim.
func (p *FirebaseProvider) UpdateProfile(ctx context.Context, idToken, displayName string) (*User, error) {
	var out accountResponse
	err := p.call(ctx, "accounts:update", map[string]any{
		"idToken":           idToken,
		"displayName":       displayName,
		"returnSecureToken": true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.user(), nil
}

type firebaseErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *FirebaseProvider) call(ctx context.Context, method string, body any, dst any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}
	target := p.base + "/" + method + "?key=" + url.QueryEscape(p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeFirebaseError(resp.Body)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", method, err)
	}
	return nil
}

// decodeFirebaseError turns an error body into a ProviderError. Messages may
// carry a detail after " : ", as in "WEAK_PASSWORD : Password should be at
// least 6 characters".
func decodeFirebaseError(r io.Reader) error {
	var body firebaseErrorBody
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error.Message == "" {
		return &ProviderError{Code: CodeInternal, Detail: strings.TrimSpace(string(raw))}
	}
	name, detail, _ := strings.Cut(body.Error.Message, ":")
	name = strings.TrimSpace(name)
	code, ok := firebaseCodes[name]
	if !ok {
		code = CodeInternal
		detail = body.Error.Message
	}
	return &ProviderError{Code: code, Detail: strings.TrimSpace(detail)}
}
