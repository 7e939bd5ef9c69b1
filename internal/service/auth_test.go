package service

import (
	"context"
	"testing"
	"time"

	"jobook/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuth(f *fixture) *AuthService {
	return NewAuthService(f.repo, f.kv, time.Hour, bcrypt.MinCost, testLogger)
}

func TestAuthRegisterLoginLogout(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	auth := newTestAuth(f)

	user, err := auth.Register(ctx, RegisterInput{
		Email:    "  Alice@Example.com ",
		Password: "secret123",
		FullName: "Alice",
		Role:     "candidate",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, constants.RoleCandidate, user.Role)
	assert.NotEqual(t, "secret123", user.PasswordHash)

	session, err := auth.Login(ctx, "ALICE@example.com", "secret123")
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	assert.Equal(t, time.Hour, f.kv.ttl["app:auth:session:"+session.Token])

	me, err := auth.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, me.ID)

	require.NoError(t, auth.Logout(ctx, session.Token))
	_, err = auth.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthRegisterValidation(t *testing.T) {
	ctx := context.Background()
	auth := newTestAuth(newFixture())

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"bad email", RegisterInput{Email: "not-an-email", Password: "secret123", FullName: "A", Role: "CANDIDATE"}},
		{"short password", RegisterInput{Email: "a@b.io", Password: "short", FullName: "A", Role: "CANDIDATE"}},
		{"admin role", RegisterInput{Email: "a@b.io", Password: "secret123", FullName: "A", Role: "ADMIN"}},
		{"missing name", RegisterInput{Email: "a@b.io", Password: "secret123", FullName: "  ", Role: "COMPANY"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Register(ctx, tt.in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestAuthDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	auth := newTestAuth(newFixture())
	in := RegisterInput{Email: "dup@example.com", Password: "secret123", FullName: "Dup", Role: "COMPANY"}

	_, err := auth.Register(ctx, in)
	require.NoError(t, err)
	_, err = auth.Register(ctx, in)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAuthLoginFailures(t *testing.T) {
	ctx := context.Background()
	auth := newTestAuth(newFixture())
	_, err := auth.Register(ctx, RegisterInput{Email: "bob@example.com", Password: "secret123", FullName: "Bob", Role: "CANDIDATE"})
	require.NoError(t, err)

	_, err = auth.Login(ctx, "bob@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = auth.Login(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = auth.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = auth.Authenticate(ctx, "unknown-token")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	auth := newTestAuth(f)

	require.NoError(t, auth.EnsureAdmin(ctx, "Admin@Jobook.io", "admin-pass"))
	require.NoError(t, auth.EnsureAdmin(ctx, "admin@jobook.io", "other-pass"))

	admin, err := f.repo.GetUserByEmail(ctx, "admin@jobook.io")
	require.NoError(t, err)
	assert.Equal(t, constants.RoleAdmin, admin.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("admin-pass")))

	assert.NoError(t, auth.EnsureAdmin(ctx, "", ""))
	assert.Len(t, f.repo.users, 1)
}
