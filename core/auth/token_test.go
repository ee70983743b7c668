package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToken(t *testing.T) {
	secret := []byte("secret")

	sign := func(claims *Claims, key []byte) string {
		token, err := GenerateToken(key, claims)
		require.NoError(t, err)
		return token
	}
	claims, err := NewClaims("Gradedesk", "t1", RoleInstructor, time.Hour)
	require.NoError(t, err)
	expired, err := NewClaims("Gradedesk", "t1", RoleInstructor, -time.Hour)
	require.NoError(t, err)
	noRole := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "t1", Audience: jwt.ClaimStrings{audience}}, Role: "janitor"}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "valid", token: sign(claims, secret)},
		{name: "garbage", token: "lmaooolol", wantErr: true},
		{name: "wrong key", token: sign(claims, []byte("nope")), wantErr: true},
		{name: "expired", token: sign(expired, secret), wantErr: true},
		{name: "unknown role", token: sign(noRole, secret), wantErr: true},
		{name: "unsigned", token: none, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseToken(secret, tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				assert.Equal(t, "t1", got.Subject)
				assert.True(t, got.IsStaff())
			}
		})
	}
}

func TestNewClaims_invalidRole(t *testing.T) {
	if _, err := NewClaims("Gradedesk", "x", "janitor", time.Hour); err != ErrInvalidRole {
		t.Errorf("NewClaims() error = %v, want %v", err, ErrInvalidRole)
	}
}
