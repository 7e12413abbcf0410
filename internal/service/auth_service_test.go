package service

import (
	"ai_tutor_backend/internal/config"
	"ai_tutor_backend/internal/repository"
	"ai_tutor_backend/internal/util"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuth(t *testing.T) (*AuthService, *repository.MemoryStore) {
	t.Helper()
	mem := repository.NewMemoryStore()
	cfg := config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour}
	return NewAuthService(mem.Users, cfg), mem
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	user, token, err := svc.Register(ctx, RegisterInput{
		Name:     "Ada",
		Email:    "Ada@Example.com",
		Password: "password123",
		Subjects: []string{"Mathematics"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	// 邮箱统一小写存储，密码不落明文
	assert.Equal(t, "ada@example.com", user.Email)
	assert.NotEqual(t, "password123", user.Password)

	claims, err := util.ParseJWT(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	loggedIn, token2, err := svc.Login(ctx, "ADA@example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token2)
	assert.Equal(t, user.ID, loggedIn.ID)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "password123"})
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, RegisterInput{Name: "Eve", Email: "ada@example.com", Password: "password456"})
	assert.ErrorIs(t, err, util.ErrEmailRegistered)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "password123"})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
}
