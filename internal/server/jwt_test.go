package server

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cashback-scout/internal/config"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{Enabled: true, Secret: testSecret, Issuer: "cashback-scout", ExpirationHours: 24}
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(testAuthConfig())

	token, expires, err := svc.IssueToken("ext-42")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), expires, time.Minute)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ext-42", claims.ClientID)
	assert.Equal(t, "ext-42", claims.Subject)
	assert.Equal(t, "cashback-scout", claims.Issuer)

	getter, err := svc.AsTokenValidator().ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ext-42", getter.GetClientID())
}

func TestJWTService_IssueRequiresClientID(t *testing.T) {
	_, _, err := NewJWTService(testAuthConfig()).IssueToken("")
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService(testAuthConfig())
	good, _, err := svc.IssueToken("ext-1")
	require.NoError(t, err)

	otherSecret := testAuthConfig()
	otherSecret.Secret = "ffffffffffffffffffff"
	forged, _, err := NewJWTService(otherSecret).IssueToken("ext-1")
	require.NoError(t, err)

	otherIssuer := testAuthConfig()
	otherIssuer.Issuer = "someone-else"
	wrongIssuer, _, err := NewJWTService(otherIssuer).IssueToken("ext-1")
	require.NoError(t, err)

	expiredSvc := NewJWTService(testAuthConfig())
	expiredSvc.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	expired, _, err := expiredSvc.IssueToken("ext-1")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{ClientID: "ext-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.token", wantErr: jwt.ErrTokenMalformed},
		{name: "wrong secret", token: forged, wantErr: jwt.ErrTokenSignatureInvalid},
		{name: "wrong issuer", token: wrongIssuer, wantErr: jwt.ErrTokenInvalidIssuer},
		{name: "expired", token: expired, wantErr: jwt.ErrTokenExpired},
		{name: "alg none", token: none},
		{name: "truncated", token: good[:len(good)-4]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token)
			require.Error(t, err)
			var unauthorized *ErrUnauthorized
			assert.True(t, errors.As(err, &unauthorized))
			assert.Equal(t, http.StatusUnauthorized, HTTPStatus(err))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
