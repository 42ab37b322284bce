package identity

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeIssuer struct {
	url string
	key *rsa.PrivateKey
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	iss := &fakeIssuer{key: key}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"issuer":                                iss.url,
			"jwks_uri":                              iss.url + "/keys",
			"authorization_endpoint":                iss.url + "/auth",
			"token_endpoint":                        iss.url + "/token",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": "test-key",
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	iss.url = srv.URL

	return iss
}

func (f *fakeIssuer) token(t *testing.T, claims map[string]interface{}) string {
	t.Helper()

	header := map[string]string{"alg": "RS256", "kid": "test-key", "typ": "JWT"}

	hb, err := json.Marshal(header)
	if err != nil {
		t.Fatal(err)
	}
	cb, err := json.Marshal(claims)
	if err != nil {
		t.Fatal(err)
	}

	signing := base64.RawURLEncoding.EncodeToString(hb) + "." + base64.RawURLEncoding.EncodeToString(cb)

	digest := sha256.Sum256([]byte(signing))
	sig, err := rsa.SignPKCS1v15(rand.Reader, f.key, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatal(err)
	}

	return signing + "." + base64.RawURLEncoding.EncodeToString(sig)
}

func TestOIDCAuthenticate(t *testing.T) {
	iss := newFakeIssuer(t)
	ctx := context.Background()

	o, err := NewOIDC(ctx, iss.url, "edtech-client")
	if err != nil {
		t.Fatalf("discovering the issuer: %v", err)
	}

	raw := iss.token(t, map[string]interface{}{
		"iss":   iss.url,
		"aud":   "edtech-client",
		"sub":   "u1",
		"email": "ana@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	})

	p, err := o.Authenticate(ctx, raw)
	if err != nil {
		t.Fatalf("verifying a valid token: %v", err)
	}
	if p.ID != "u1" || p.Email != "ana@example.com" {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestOIDCRejectsBadTokens(t *testing.T) {
	iss := newFakeIssuer(t)
	ctx := context.Background()

	o, err := NewOIDC(ctx, iss.url, "edtech-client")
	if err != nil {
		t.Fatal(err)
	}

	expired := iss.token(t, map[string]interface{}{
		"iss":   iss.url,
		"aud":   "edtech-client",
		"sub":   "u1",
		"email": "ana@example.com",
		"exp":   time.Now().Add(-time.Hour).Unix(),
		"iat":   time.Now().Add(-2 * time.Hour).Unix(),
	})
	if _, err := o.Authenticate(ctx, expired); err == nil {
		t.Fatal("an expired token should be rejected")
	}

	wrongAud := iss.token(t, map[string]interface{}{
		"iss":   iss.url,
		"aud":   "someone-else",
		"sub":   "u1",
		"email": "ana@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	})
	if _, err := o.Authenticate(ctx, wrongAud); err == nil {
		t.Fatal("a token for another client should be rejected")
	}

	if _, err := o.Authenticate(ctx, "not.a.token"); err == nil {
		t.Fatal("garbage should be rejected")
	}

	other := newFakeIssuer(t)
	forged := other.token(t, map[string]interface{}{
		"iss":   iss.url,
		"aud":   "edtech-client",
		"sub":   "u1",
		"email": "ana@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	})
	if _, err := o.Authenticate(ctx, forged); err == nil {
		t.Fatal("a token signed by another key should be rejected")
	}
}
