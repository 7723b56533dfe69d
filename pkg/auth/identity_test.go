package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signHS(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestNewIdentityVerifierDisabled(t *testing.T) {
	v := NewIdentityVerifier("", "")
	assert.Nil(t, v)
	_, err := v.Verify("anything")
	assert.ErrorIs(t, err, ErrNoVerifier)
}

func TestVerifyHS256(t *testing.T) {
	v := NewIdentityVerifier("s3cret", "")
	exp := time.Now().Add(time.Hour).Unix()

	user, err := v.Verify(signHS(t, "s3cret", jwt.MapClaims{"user_id": 42, "email": "me@x.org", "exp": exp}))
	require.NoError(t, err)
	assert.Equal(t, int64(42), user.ID)
	assert.Equal(t, "me@x.org", user.Email)

	user, err = v.Verify(signHS(t, "s3cret", jwt.MapClaims{"sub": "17", "exp": exp}))
	require.NoError(t, err)
	assert.Equal(t, int64(17), user.ID)

	_, err = v.Verify(signHS(t, "s3cret", jwt.MapClaims{"sub": "abc-uuid", "exp": exp}))
	assert.Error(t, err)

	_, err = v.Verify(signHS(t, "wrong", jwt.MapClaims{"user_id": 42, "exp": exp}))
	assert.Error(t, err)

	_, err = v.Verify(signHS(t, "s3cret", jwt.MapClaims{"user_id": 42, "exp": time.Now().Add(-time.Hour).Unix()}))
	assert.Error(t, err)
}

func TestVerifyRS256WithJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(JWKS{Keys: []JSONWebKey{{
			Kid: "k1",
			Kty: "RSA",
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{"user_id": 9, "exp": time.Now().Add(time.Hour).Unix()})
	token.Header["kid"] = "k1"
	signed, err := token.SignedString(key)
	require.NoError(t, err)

	v := NewIdentityVerifier("", srv.URL)
	user, err := v.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, int64(9), user.ID)

	// HS256 without a secret is refused
	_, err = v.Verify(signHS(t, "x", jwt.MapClaims{"user_id": 1}))
	assert.Error(t, err)
}
