package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultResetTokenTTL = 10 * time.Minute

var (
	ErrResetTokenExpired = errors.New("reset token expired")
	ErrResetTokenInvalid = errors.New("reset token invalid")
)

// ResetClaims is the payload of a password-reset token.
type ResetClaims struct {
	UserID int64 `json:"reset_password"`
	jwt.RegisteredClaims
}

// ResetTokenCodec issues and checks HS256-signed, self-expiring reset
// tokens. Tokens are compact JWTs and therefore URL-safe.
type ResetTokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewResetTokenCodec(secret string, ttl time.Duration) *ResetTokenCodec {
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &ResetTokenCodec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// SetClock replaces the time source used for issuing and verifying.
func (c *ResetTokenCodec) SetClock(now func() time.Time) {
	c.now = now
}

func (c *ResetTokenCodec) TTL() time.Duration { return c.ttl }

func (c *ResetTokenCodec) Issue(userID int64) (string, error) {
	return c.IssueTTL(userID, c.ttl)
}

// IssueTTL signs a token valid for at least ttl. exp is stored in whole
// seconds, so a fractional expiry is rounded up.
func (c *ResetTokenCodec) IssueTTL(userID int64, ttl time.Duration) (string, error) {
	exp := c.now().Add(ttl)
	if whole := exp.Truncate(time.Second); !whole.Equal(exp) {
		exp = whole.Add(time.Second)
	}
	claims := ResetClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign reset token: %w", err)
	}
	return signed, nil
}

// Parse returns the claims of a valid token. Failures wrap
// ErrResetTokenExpired or ErrResetTokenInvalid.
func (c *ResetTokenCodec) Parse(tokenString string) (*ResetClaims, error) {
	claims := &ResetClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrResetTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrResetTokenInvalid, err)
	}
	if !token.Valid || claims.UserID <= 0 {
		return nil, ErrResetTokenInvalid
	}
	return claims, nil
}

// Verify returns the user id of a valid token. It does not say why a
// token was rejected.
func (c *ResetTokenCodec) Verify(tokenString string) (int64, bool) {
	claims, err := c.Parse(tokenString)
	if err != nil {
		return 0, false
	}
	return claims.UserID, true
}
