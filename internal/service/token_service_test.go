package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTTokenService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTTokenService("test-secret-key", time.Hour, "wallet-ledger-engine")
	userID := uuid.New()

	token, expiresAt, err := svc.Generate(userID)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
}

func TestJWTTokenService_RejectsWrongSecret(t *testing.T) {
	svc := NewJWTTokenService("correct-secret", time.Hour, "wallet-ledger-engine")
	other := NewJWTTokenService("wrong-secret", time.Hour, "wallet-ledger-engine")

	token, _, err := svc.Generate(uuid.New())
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenService_RejectsExpired(t *testing.T) {
	svc := NewJWTTokenService("test-secret-key", -time.Minute, "wallet-ledger-engine")

	token, _, err := svc.Generate(uuid.New())
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenService_RejectsGarbage(t *testing.T) {
	svc := NewJWTTokenService("test-secret-key", time.Hour, "wallet-ledger-engine")

	_, err := svc.Validate("not-a-token")
	assert.Error(t, err)
}
