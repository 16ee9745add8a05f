package http

import (
	"errors"
	"strings"

	"github.com/dkeye/Parley/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

var ErrBadToken = errors.New("invalid bearer token")

// TokenVerifier checks HS256 tokens issued by the upstream authenticator.
// The subject claim carries the user id.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier returns nil for an empty secret, which disables bearer auth.
func NewTokenVerifier(secret string) *TokenVerifier {
	if secret == "" {
		return nil
	}
	return &TokenVerifier{secret: []byte(secret)}
}

func (v *TokenVerifier) Verify(tokenString string) (domain.UserID, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", errors.Join(ErrBadToken, err)
	}
	uid, err := domain.NewUserID(claims.Subject)
	if err != nil {
		return "", errors.Join(ErrBadToken, err)
	}
	return uid, nil
}

func bearer(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
