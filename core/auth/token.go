package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/trezcool/gradedesk/core"
)

const (
	RoleAdmin      = "admin"
	RoleInstructor = "instructor"
	RoleStudent    = "student"

	audience = "gradedesk"
)

var (
	ErrInvalidToken = errors.New("invalid or expired jwt")
	ErrInvalidRole  = errors.New("unknown role")

	signingMethod = jwt.SigningMethodHS256
)

// Claims represents the authorization claims transmitted via a JWT.
// For students the subject is their student id.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleInstructor, RoleStudent:
		return true
	}
	return false
}

// IsStaff reports whether the principal may work on any student's grades.
func (c Claims) IsStaff() bool {
	return c.Role == RoleAdmin || c.Role == RoleInstructor
}

func (c Claims) Actor() core.Actor {
	return core.Actor{ID: c.Subject, Role: c.Role}
}

func NewClaims(issuer, subject, role string, ttl time.Duration) (*Claims, error) {
	if !ValidRole(role) {
		return nil, ErrInvalidRole
	}
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: role,
	}, nil
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(secret []byte, claims *Claims) (string, error) {
	ss, err := jwt.NewWithClaims(signingMethod, claims).SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// ParseToken verifies a signed token and returns its claims.
func ParseToken(secret []byte, token string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{signingMethod.Alg()}), jwt.WithAudience(audience))
	if err != nil || claims.Subject == "" || !ValidRole(claims.Role) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
