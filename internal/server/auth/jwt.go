// Package auth builds and validates signed access tokens. Tokens are
// short-lived HS256 JWTs; every token carries a unique id (jti) that pairs it
// with exactly one refresh token.
package auth

import (
	"errors"
	"slices"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sessionworks/authd/internal/common"
	"github.com/sessionworks/authd/internal/server/models"
)

// Claims is the validated claim set of an access token: the registered
// claims plus the user's email and role.
type Claims struct {
	jwt.RegisteredClaims
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

// UserID returns the subject claim as the user's integer id.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, common.ErrInvalidToken
	}
	return id, nil
}

// Issuer signs and parses access tokens with a fixed symmetric key. It is
// stateless; the only non-determinism is the generated jti and current time.
type Issuer struct {
	secret   []byte
	issuer   string
	audience string
	validity time.Duration
}

func NewIssuer(secret []byte, issuer, audience string, validity time.Duration) *Issuer {
	return &Issuer{secret: secret, issuer: issuer, audience: audience, validity: validity}
}

// Issue signs a new access token for user and returns the encoded token
// together with its jti.
func (i *Issuer) Issue(user *models.User) (string, string, error) {
	now := time.Now()
	tokenID := uuid.NewString()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.validity)),
			ID:        tokenID,
		},
		Email: user.Email,
		Role:  user.Role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", "", err
	}

	return signed, tokenID, nil
}

// Parse fully validates a token: signature, algorithm, issuer, audience and
// lifetime. An expired token yields common.ErrTokenExpired; every other
// failure collapses into common.ErrInvalidToken.
func (i *Issuer) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, i.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// ParseExpired validates signature, algorithm, issuer and audience but not
// the token lifetime. Rotation uses it: the presented access token is
// expected to be past its expiry, yet must still be authentic.
func (i *Issuer) ParseExpired(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, i.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, common.ErrInvalidToken
	}
	if claims.Issuer != i.issuer {
		return nil, common.ErrInvalidToken
	}
	if !slices.Contains(claims.Audience, i.audience) {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

func (i *Issuer) keyFunc(t *jwt.Token) (any, error) {
	return i.secret, nil
}
