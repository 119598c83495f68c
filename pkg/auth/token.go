package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/threshingfloor/roastery-backend/pkg/config"
)

// Tokens are HMAC signed with the shared secret; no other alg is accepted.
var signingMethod = jwt.SigningMethodHS256

var (
	errNoSecret  = errors.New("jwt secret is required")
	errNoIssuer  = errors.New("jwt issuer is required")
	errBadTTL    = errors.New("jwt expiration minutes must be positive")
	errNoSubject = errors.New("token missing user id")
)

// MintAccessToken signs a token for payload that expires
// cfg.ExpirationMinutes after now. A blank JTI gets a fresh uuid.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", errNoSecret
	case cfg.Issuer == "":
		return "", errNoIssuer
	case cfg.ExpirationMinutes <= 0:
		return "", errBadTTL
	case payload.UserID == uuid.Nil:
		return "", errors.New("user id is required")
	}
	email := strings.TrimSpace(payload.Email)
	if email == "" {
		return "", errors.New("email is required")
	}
	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	expires := now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)
	token := jwt.NewWithClaims(signingMethod, AccessTokenClaims{
		UserID: payload.UserID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    cfg.Issuer,
			Subject:   payload.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	return verify(cfg, raw, jwt.WithIssuer(cfg.Issuer), jwt.WithExpirationRequired())
}

// ParseAccessTokenAllowExpired verifies only the signature. Refresh uses it
// to read the jti of a token that has already expired.
func ParseAccessTokenAllowExpired(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	return verify(cfg, raw, jwt.WithoutClaimsValidation())
}

func verify(cfg config.JWTConfig, raw string, opts ...jwt.ParserOption) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, errNoSecret
	}
	parser := jwt.NewParser(append(opts, jwt.WithValidMethods([]string{signingMethod.Alg()}))...)

	claims := new(AccessTokenClaims)
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, err
	}
	if claims.UserID == uuid.Nil || claims.Subject != claims.UserID.String() {
		return nil, errNoSubject
	}
	return claims, nil
}
