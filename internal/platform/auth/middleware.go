package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRoleKey  contextKey = "user_role"
	UserEmailKey contextKey = "user_email"
)

// SessionCookie carries the Firebase ID token for browser requests. The name
// is the only cookie Firebase Hosting forwards to backends.
const SessionCookie = "__session"

// Claims is the subset of a Firebase ID token the server relies on. Signup
// stores the selected role as the account display name, which Firebase
// echoes back in the "name" claim. A "role" custom claim takes precedence.
type Claims struct {
	jwt.RegisteredClaims
	Name     string        `json:"name,omitempty"`
	Email    string        `json:"email,omitempty"`
	Role     string        `json:"role,omitempty"`
	Firebase FirebaseClaim `json:"firebase,omitempty"`
}

type FirebaseClaim struct {
	SignInProvider string `json:"sign_in_provider,omitempty"`
}

// EffectiveRole resolves the account role from the token. A display name
// that is not a role name, such as a person's name on an account created
// outside signup, means a patient.
func (c *Claims) EffectiveRole() string {
	if c.Role != "" {
		return NormalizeRole(c.Role)
	}
	switch role := NormalizeRole(c.Name); role {
	case RoleDoctor, RoleHospital:
		return role
	default:
		return RolePatient
	}
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey is used for development/testing only
	SigningKey []byte
	// LoginURL, when set, redirects browser GETs without a token instead of
	// answering 401.
	LoginURL string
	Skipper  func(c echo.Context) bool
}

// JWKSKey represents a single JSON Web Key from a JWKS endpoint.
type JWKSKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSResponse represents the response from a JWKS endpoint.
type JWKSResponse struct {
	Keys []JWKSKey `json:"keys"`
}

// JWKSCache caches JWKS keys fetched from a remote endpoint with a configurable TTL.
type JWKSCache struct {
	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	jwksURL   string
	ttl       time.Duration
	fetchedAt time.Time
	client    *http.Client
}

// NewJWKSCache creates a new JWKS cache that fetches keys from the given URL.
func NewJWKSCache(jwksURL string, ttl time.Duration) *JWKSCache {
	return &JWKSCache{
		keys:    make(map[string]*rsa.PublicKey),
		jwksURL: jwksURL,
		ttl:     ttl,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// GetKey returns the RSA public key for the given kid. Firebase rotates its
// keys every few hours, so an unknown kid forces a refetch.
func (c *JWKSCache) GetKey(kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	expired := time.Since(c.fetchedAt) > c.ttl
	c.mu.RUnlock()

	if ok && !expired {
		return key, nil
	}

	if err := c.fetch(); err != nil {
		return nil, fmt.Errorf("fetching JWKS: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok = c.keys[kid]
	if !ok {
		return nil, fmt.Errorf("key with kid %q not found in JWKS", kid)
	}
	return key, nil
}

func (c *JWKSCache) fetch() error {
	resp, err := c.client.Get(c.jwksURL)
	if err != nil {
		return fmt.Errorf("GET %s: %w", c.jwksURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var jwks JWKSResponse
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return fmt.Errorf("decoding JWKS response: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pubKey, err := parseRSAPublicKey(k)
		if err != nil {
			continue // skip malformed keys
		}
		keys[k.Kid] = pubKey
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	return nil
}

func parseRSAPublicKey(k JWKSKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

const defaultJWKSCacheTTL = 5 * time.Minute

func jwksKeyFunc(jwksURL string) jwt.Keyfunc {
	cache := NewJWKSCache(jwksURL, defaultJWKSCacheTTL)
	return func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("token has no kid header")
		}
		return cache.GetKey(kid)
	}
}

// tokenFromRequest reads the bearer token from the Authorization header,
// falling back to the session cookie set at signup.
func tokenFromRequest(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
		}
		return parts[1], nil
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
}

func wantsHTML(r *http.Request) bool {
	return r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html")
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	// Resolve JWKS URL: if not explicitly set, try OIDC auto-discovery from issuer.
	resolvedJWKSURL := cfg.JWKSURL
	if resolvedJWKSURL == "" && cfg.Issuer != "" && len(cfg.SigningKey) == 0 {
		provider, err := NewOIDCProvider(cfg.Issuer)
		if err == nil {
			resolvedJWKSURL = provider.JWKSURI
		}
	}

	var keyFunc jwt.Keyfunc
	if len(cfg.SigningKey) > 0 {
		keyFunc = func(t *jwt.Token) (interface{}, error) {
			return cfg.SigningKey, nil
		}
	} else {
		keyFunc = jwksKeyFunc(resolvedJWKSURL)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "HS256"}),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			tokenStr, err := tokenFromRequest(c.Request())
			if err != nil {
				if cfg.LoginURL != "" && wantsHTML(c.Request()) {
					return c.Redirect(http.StatusSeeOther, cfg.LoginURL)
				}
				return err
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, keyFunc, opts...)
			if err != nil || !token.Valid {
				if cfg.LoginURL != "" && wantsHTML(c.Request()) {
					return c.Redirect(http.StatusSeeOther, cfg.LoginURL)
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has no subject")
			}

			c.SetRequest(c.Request().WithContext(
				WithUser(c.Request().Context(), claims.Subject, claims.EffectiveRole(), claims.Email)))

			return next(c)
		}
	}
}

// DevAuthHeader lets local tooling impersonate a user in development mode.
const DevAuthHeader = "X-Dev-User"

// DevAuthMiddleware is a permissive middleware for development. Every
// request is signed in with the patient role as the first of: the bearer
// token (the development signup provider issues the uid as the token), the
// X-Dev-User header, the session cookie, or "dev-user".
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var uid string
			if parts := strings.SplitN(c.Request().Header.Get("Authorization"), " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				uid = strings.TrimSpace(parts[1])
			}
			if uid == "" {
				uid = c.Request().Header.Get(DevAuthHeader)
			}
			if uid == "" {
				if cookie, err := c.Request().Cookie(SessionCookie); err == nil {
					uid = cookie.Value
				}
			}
			if uid == "" {
				uid = "dev-user"
			}
			c.SetRequest(c.Request().WithContext(
				WithUser(c.Request().Context(), uid, RolePatient, "")))
			return next(c)
		}
	}
}

// WithUser stores the authenticated identity on ctx.
func WithUser(ctx context.Context, uid, role, email string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, uid)
	ctx = context.WithValue(ctx, UserRoleKey, role)
	ctx = context.WithValue(ctx, UserEmailKey, email)
	return ctx
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}

func EmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(UserEmailKey).(string)
	return email
}
