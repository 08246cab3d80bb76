package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerIssueAndValidate(t *testing.T) {
	mgr := NewManager(TokenConfig{Secret: []byte("test-secret")})

	userID := uuid.New()
	token, err := mgr.Issue(userID, "alice")
	require.NoError(t, err)

	claims, err := mgr.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestManagerRejectsForeignSecret(t *testing.T) {
	issuer := NewManager(TokenConfig{Secret: []byte("one")})
	verifier := NewManager(TokenConfig{Secret: []byte("two")})

	token, err := issuer.Issue(uuid.New(), "bob")
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManagerRejectsExpiredToken(t *testing.T) {
	mgr := NewManager(TokenConfig{Secret: []byte("test-secret"), TTL: -time.Minute})

	token, err := mgr.Issue(uuid.New(), "carol")
	require.NoError(t, err)

	_, err = mgr.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestManagerRejectsGarbage(t *testing.T) {
	mgr := NewManager(TokenConfig{Secret: []byte("test-secret")})

	_, err := mgr.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
