// Package jwt issues and verifies the platform session tokens that identify
// mentors and mentees.
package jwt

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrInvalidClaim = errors.New("invalid token claims")
)

// Roles a token may carry. Tokens minted before roles existed have none.
const (
	RoleMentor = "mentor"
	RoleMentee = "mentee"
)

// clockSkew tolerated on exp, nbf and iat
const clockSkew = 30 * time.Second

// UserClaims are the claims of a platform session token
type UserClaims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	parser *jwt.Parser
}

// NewTokenManager verifies HS256 tokens signed with secret. A non-empty
// issuer is both stamped on new tokens and required on incoming ones.
func NewTokenManager(secret string, issuer string, ttlHours int) *TokenManager {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(clockSkew),
		jwt.WithIssuedAt(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    time.Duration(ttlHours) * time.Hour,
		parser: jwt.NewParser(opts...),
	}
}

// GenerateToken signs a session token for userID
func (tm *TokenManager) GenerateToken(userID, name, role string) (string, error) {
	now := time.Now()
	claims := UserClaims{
		UserID: userID,
		Name:   name,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tm.issuer,
			Subject:   userID,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies the signature, time claims and issuer of
// tokenString. The user id falls back to the subject claim.
func (tm *TokenManager) ValidateToken(tokenString string) (*UserClaims, error) {
	claims := &UserClaims{}
	token, err := tm.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return tm.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	case !token.Valid:
		return nil, ErrInvalidToken
	}

	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: no user id", ErrInvalidClaim)
	}
	switch claims.Role {
	case "", RoleMentor, RoleMentee:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidClaim, claims.Role)
	}
	return claims, nil
}

// TimingSafeCompare compares secrets in constant time
func TimingSafeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
