package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"contesthub/internal/models"
)

// MinSigningKeyLength is the hard floor for any signing key; config enforces
// a stricter floor in production.
const MinSigningKeyLength = 32

var (
	ErrSigningKey   = errors.New("signing key missing or too short")
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

type SessionClaims struct {
	PrincipalID string             `json:"pid"`
	LoginID     string             `json:"login"`
	Role        models.Role        `json:"role"`
	SessionType models.SessionType `json:"stype"`
	jwt.RegisteredClaims
}

type TokenSigner struct {
	secret []byte
	now    func() time.Time
}

func NewTokenSigner(secret string) (*TokenSigner, error) {
	if len(secret) < MinSigningKeyLength {
		return nil, ErrSigningKey
	}
	return &TokenSigner{secret: []byte(secret), now: time.Now}, nil
}

// WithClock returns a copy of the signer that reads time from now.
func (s *TokenSigner) WithClock(now func() time.Time) *TokenSigner {
	clone := *s
	clone.now = now
	return &clone
}

// Sign issues an HS512 token for the claims, valid from issuedAt for ttl.
// Each token gets a random jti so two sessions never share a reference.
func (s *TokenSigner) Sign(claims SessionClaims, issuedAt time.Time, ttl time.Duration) (string, time.Time, error) {
	if s == nil || len(s.secret) < MinSigningKeyLength {
		return "", time.Time{}, ErrSigningKey
	}

	jti, err := randomID()
	if err != nil {
		return "", time.Time{}, err
	}

	expiresAt := issuedAt.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        jti,
		Subject:   claims.PrincipalID,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign jwt: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies signature and embedded expiry. It returns ErrTokenExpired for
// a well-signed token past its expiry and ErrTokenInvalid for anything else.
func (s *TokenSigner) Parse(tokenStr string) (*SessionClaims, error) {
	if s == nil || len(s.secret) < MinSigningKeyLength {
		return nil, ErrSigningKey
	}

	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.PrincipalID == "" || !claims.SessionType.Valid() {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// TokenReference derives the value persisted on the session row. The raw
// token never reaches the database.
func TokenReference(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
