package security

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"syncstream.pro/pkg/errs"
)

// RoomClaims binds a connection to a room and the role it held when the token was issued.
type RoomClaims struct {
	RoomID  string `json:"roomId"`
	UserID  string `json:"userId"`
	IsAdmin bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies room tokens with the instance secret.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret []byte, ttl time.Duration) *Tokens {
	return &Tokens{secret: secret, ttl: ttl, now: time.Now}
}

func (t *Tokens) Sign(roomID, userID string, isAdmin bool) (string, error) {
	now := t.now()
	claims := RoomClaims{
		RoomID:  roomID,
		UserID:  userID,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify rejects tampered, foreign-algorithm and expired tokens.
func (t *Tokens) Verify(tok string) (*RoomClaims, error) {
	claims := &RoomClaims{}
	_, err := jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidToken, err)
	}
	if claims.RoomID == "" || claims.UserID == "" {
		return nil, errs.ErrInvalidToken
	}
	return claims, nil
}
