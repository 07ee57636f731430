package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolhub-server-go/models"
)

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", hash)
	assert.True(t, CheckPassword(hash, "s3cret!"))
	assert.False(t, CheckPassword(hash, "S3cret!"))
	assert.False(t, CheckPassword("not-a-hash", "s3cret!"))

	_, err = HashPassword("abc")
	assert.Error(t, err)
}

func TestSigner(t *testing.T) {
	_, err := NewSigner("", time.Hour)
	assert.Error(t, err)

	signer, err := NewSigner("secret", time.Hour)
	require.NoError(t, err)
	user := models.User{ID: "u1", Username: "linh", Role: models.RoleTeacher}

	valid, exp, err := signer.Issue(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	// issue one that expired yesterday
	signer.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	expired, _, err := signer.Issue(user)
	require.NoError(t, err)
	signer.now = time.Now

	other, err := NewSigner("other", time.Hour)
	require.NoError(t, err)
	forged, _, err := other.Issue(user)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1", Role: models.RoleAdmin}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "u1"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "no token", token: "", wantErr: true},
		{name: "garbage", token: "lmaooolol", wantErr: true},
		{name: "expired token", token: expired, wantErr: true},
		{name: "wrong secret", token: forged, wantErr: true},
		{name: "alg none", token: none, wantErr: true},
		{name: "missing role", token: noRole, wantErr: true},
		{name: "tampered", token: strings.TrimSuffix(valid, valid[len(valid)-2:]) + "xx", wantErr: true},
		{name: "valid token", token: valid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := signer.Parse(tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u1", claims.UserID)
			assert.Equal(t, models.RoleTeacher, claims.Role)
			assert.Equal(t, "linh", claims.Subject)
		})
	}
}
