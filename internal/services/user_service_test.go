package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/auth"
	"expensetracker/internal/storage"
)

func TestUserService_RegisterAndLogin(t *testing.T) {
	issuer := auth.NewIssuer("0123456789abcdef", time.Hour)
	store := newFakeStore()
	svc := NewUserService(store, issuer)
	ctx := context.Background()

	id, err := svc.Register(ctx, " alice ", "alice@example.com", "s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", store.users[id].PasswordHash)
	assert.Equal(t, "alice", store.users[id].Username)

	_, err = svc.Register(ctx, "alice", "", "other")
	assert.ErrorIs(t, err, storage.ErrDuplicateUser)

	token, err := svc.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)
	subject, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, id, subject)
}

func TestUserService_LoginFailures(t *testing.T) {
	svc := NewUserService(newFakeStore(), auth.NewIssuer("0123456789abcdef", time.Hour))
	ctx := context.Background()
	_, err := svc.Register(ctx, "bob", "", "pw")
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
		want     error
	}{
		{"wrong password", "bob", "nope", auth.ErrInvalidCredentials},
		{"unknown user", "carol", "pw", auth.ErrInvalidCredentials},
		{"missing password", "bob", "", ErrMissingCredentials},
		{"missing username", " ", "pw", ErrMissingCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tt.username, tt.password)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
