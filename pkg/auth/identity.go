package auth

import (
	"errors"
	"fmt"
	"strconv"

	"contactus-backend/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoVerifier = errors.New("no token verifier configured")

// IdentityVerifier resolves a bearer token to the site user it was issued for.
// HS256 tokens are checked against the shared secret, RS256 against the JWKS.
type IdentityVerifier struct {
	secret []byte
	jwks   *Provider
}

// NewIdentityVerifier returns nil when neither a secret nor a JWKS URL is set
func NewIdentityVerifier(secret, jwksURL string) *IdentityVerifier {
	if secret == "" && jwksURL == "" {
		return nil
	}
	v := &IdentityVerifier{}
	if secret != "" {
		v.secret = []byte(secret)
	}
	if jwksURL != "" {
		v.jwks = NewProvider(jwksURL)
	}
	return v
}

func (v *IdentityVerifier) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if v.secret == nil {
			return nil, fmt.Errorf("HS256 token received but JWT_SECRET is not configured")
		}
		return v.secret, nil
	case *jwt.SigningMethodRSA:
		if v.jwks == nil {
			return nil, fmt.Errorf("RS256 token received but JWKS_URL is not configured")
		}
		return v.jwks.KeyFunc(token)
	}
	return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
}

// Verify parses the token and returns the user it identifies. The numeric
// user_id claim wins over sub; email is optional.
func (v *IdentityVerifier) Verify(tokenString string) (*domain.User, error) {
	if v == nil {
		return nil, ErrNoVerifier
	}

	token, err := jwt.Parse(tokenString, v.keyFunc, jwt.WithValidMethods([]string{"HS256", "RS256"}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}

	id, err := userID(claims)
	if err != nil {
		return nil, err
	}
	email, _ := claims["email"].(string)
	return &domain.User{ID: id, Email: email}, nil
}

func userID(claims jwt.MapClaims) (int64, error) {
	switch v := claims["user_id"].(type) {
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	}
	if sub, _ := claims["sub"].(string); sub != "" {
		id, err := strconv.ParseInt(sub, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("sub claim is not a numeric user id: %w", err)
		}
		return id, nil
	}
	return 0, errors.New("token carries no user id")
}
