package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func rsaPublicKeyToJWK(key *rsa.PrivateKey, kid string) JWKSKey {
	return JWKSKey{
		Kty: "RSA",
		Kid: kid,
		Use: "sig",
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
	}
}

func newJWKSServer(t *testing.T, keys func() []JWKSKey) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(JWKSResponse{Keys: keys()})
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestOIDCProvider_Discovery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/doc-plus/.well-known/openid-configuration" {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"issuer":                                "https://securetoken.google.com/doc-plus",
				"jwks_uri":                              "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com",
				"id_token_signing_alg_values_supported": []string{"RS256"},
			})
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	provider, err := NewOIDCProvider(server.URL + "/doc-plus/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Issuer != "https://securetoken.google.com/doc-plus" {
		t.Errorf("unexpected issuer %s", provider.Issuer)
	}
	if !provider.SupportsAlg("RS256") {
		t.Error("expected RS256 support")
	}
	if provider.SupportsAlg("HS256") {
		t.Error("did not expect HS256 support")
	}
}

func TestOIDCProvider_InvalidIssuer(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	if _, err := NewOIDCProvider(server.URL); err == nil {
		t.Fatal("expected error for 404 discovery document")
	}
}

func TestOIDCProvider_MissingJWKSURI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"issuer": "x"})
	}))
	defer server.Close()

	if _, err := NewOIDCProvider(server.URL); err == nil {
		t.Fatal("expected error for missing jwks_uri")
	}
}

func TestJWKSCache_FetchAndCache(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	server, calls := newJWKSServer(t, func() []JWKSKey {
		return []JWKSKey{rsaPublicKeyToJWK(privateKey, "k1")}
	})

	cache := NewJWKSCache(server.URL, 5*time.Minute)
	key, err := cache.GetKey("k1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.N.Cmp(privateKey.PublicKey.N) != 0 || key.E != privateKey.PublicKey.E {
		t.Error("fetched key does not match original")
	}

	if _, err := cache.GetKey("k1"); err != nil {
		t.Fatalf("unexpected error on cache hit: %v", err)
	}
	if got := atomic.LoadInt32(calls); got != 1 {
		t.Errorf("expected 1 fetch, got %d", got)
	}
}

func TestJWKSCache_UnknownKidRefetches(t *testing.T) {
	key1, _ := rsa.GenerateKey(rand.Reader, 2048)
	key2, _ := rsa.GenerateKey(rand.Reader, 2048)
	var rotated atomic.Bool
	server, calls := newJWKSServer(t, func() []JWKSKey {
		if rotated.Load() {
			return []JWKSKey{rsaPublicKeyToJWK(key1, "k1"), rsaPublicKeyToJWK(key2, "k2")}
		}
		return []JWKSKey{rsaPublicKeyToJWK(key1, "k1")}
	})

	cache := NewJWKSCache(server.URL, time.Hour)
	if _, err := cache.GetKey("k1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rotated.Store(true)
	if _, err := cache.GetKey("k2"); err != nil {
		t.Fatalf("expected rotated key to be found, got %v", err)
	}
	if got := atomic.LoadInt32(calls); got != 2 {
		t.Errorf("expected 2 fetches, got %d", got)
	}
	if _, err := cache.GetKey("missing"); err == nil {
		t.Fatal("expected error for unknown kid")
	}
}

func TestJWKSCache_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cache := NewJWKSCache(server.URL, time.Minute)
	if _, err := cache.GetKey("k1"); err == nil {
		t.Fatal("expected error from failing JWKS endpoint")
	}
}

func TestParseRSAPublicKey_InvalidModulus(t *testing.T) {
	if _, err := parseRSAPublicKey(JWKSKey{Kty: "RSA", N: "!!!", E: "AQAB"}); err == nil {
		t.Fatal("expected error for invalid modulus")
	}
}

func TestJWTMiddleware_RS256ViaJWKS(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	server, _ := newJWKSServer(t, func() []JWKSKey {
		return []JWKSKey{rsaPublicKeyToJWK(privateKey, "firebase-1")}
	})

	claims := validClaims("firebase-uid")
	claims.Issuer = "https://securetoken.google.com/doc-plus"
	claims.Audience = jwt.ClaimStrings{"doc-plus"}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "firebase-1"
	tokenStr, err := token.SignedString(privateKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		if uid := UserIDFromContext(c.Request().Context()); uid != "firebase-uid" {
			t.Errorf("expected firebase-uid, got %s", uid)
		}
		return c.String(http.StatusOK, "ok")
	}

	mw := JWTMiddleware(JWTConfig{
		Issuer:   "https://securetoken.google.com/doc-plus",
		Audience: "doc-plus",
		JWKSURL:  server.URL,
	})
	if err := mw(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJWKSKeyFunc_NoKidHeader(t *testing.T) {
	kf := jwksKeyFunc("http://127.0.0.1:0")
	if _, err := kf(&jwt.Token{Header: map[string]interface{}{}}); err == nil {
		t.Fatal("expected error for token without kid")
	}
}
