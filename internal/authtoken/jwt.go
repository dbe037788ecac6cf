// jwt.go

package authtoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ReconnectClaims binds a short-lived JWT to an account so a client that
// loses its socket can resume with `resume {token}` instead of
// resubmitting credentials (SPEC_FULL.md §4.12). Purely additive: it never
// substitutes for the password check on `login` itself.
type ReconnectClaims struct {
	AccountID int64  `json:"accountId"`
	Username  string `json:"username"`
	jwt.RegisteredClaims
}

// Issuer signs and validates reconnect tokens with a single HS256 secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer builds an Issuer from the configured secret and token lifetime.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Issue mints a reconnect token for the given account.
func (iss *Issuer) Issue(accountID int64, username string) (string, error) {
	now := time.Now()
	claims := ReconnectClaims{
		AccountID: accountID,
		Username:  username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(iss.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "aethermoor",
			Subject:   username,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(iss.secret)
}

// Validate parses and verifies a reconnect token, rejecting anything
// expired or signed with a different method or secret.
func (iss *Issuer) Validate(tokenString string) (*ReconnectClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ReconnectClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("authtoken: unexpected signing method")
		}
		return iss.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*ReconnectClaims)
	if !ok || !token.Valid {
		return nil, errors.New("authtoken: invalid token")
	}
	return claims, nil
}
