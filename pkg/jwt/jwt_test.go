package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	m := NewManager([]byte("secret"), time.Hour)
	id := uuid.New()

	token, err := m.Generate(id, "ops@example.com", "Ops", "ADMIN", []string{"transaction:create"}, "v1")
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	require.Equal(t, id, claims.UserID)
	require.Equal(t, []string{"transaction:create"}, claims.Privileges)
	require.Equal(t, "v1", claims.TokenVersion)
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	token, err := NewManager([]byte("a"), time.Hour).Generate(uuid.New(), "", "", "", nil, "")
	require.NoError(t, err)

	_, err = NewManager([]byte("b"), time.Hour).Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	m := NewManager([]byte("secret"), time.Minute)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := m.Generate(uuid.New(), "", "", "", nil, "")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateEmpty(t *testing.T) {
	_, err := NewManager([]byte("secret"), time.Hour).Validate("")
	require.ErrorIs(t, err, ErrMissingToken)
}
