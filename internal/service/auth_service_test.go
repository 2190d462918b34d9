package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/arjun-mehta/school-erp-api/internal/models"
	appErrors "github.com/arjun-mehta/school-erp-api/pkg/errors"
)

type mockAuthRepo struct {
	user             *models.User
	findByEmailErr   error
	lastLoginUpdated bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	return m.user, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func newAuthFixture(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		Secret:     "secret",
		Expiration: time.Hour,
		Issuer:     "school-erp-api",
	})
}

func TestAuthLoginSuccess(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{user: &models.User{
		ID: "user-1", SchoolID: "sch-1", Email: "admin@example.com",
		PasswordHash: string(password), FullName: "Admin", Role: models.RoleSchoolAdmin, Active: true,
	}}
	svc := newAuthFixture(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, "sch-1", res.User.SchoolID)
	assert.True(t, repo.lastLoginUpdated)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleSchoolAdmin, claims.Role)
}

func TestAuthLoginWrongPassword(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{user: &models.User{
		ID: "user-1", Email: "admin@example.com", PasswordHash: string(password), Active: true,
	}}
	svc := newAuthFixture(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthLoginInactiveAccount(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{user: &models.User{
		ID: "user-1", Email: "admin@example.com", PasswordHash: string(password), Active: false,
	}}
	svc := newAuthFixture(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "password"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInactiveAccount))
}

func TestAuthLoginInvalidPayload(t *testing.T) {
	svc := newAuthFixture(&mockAuthRepo{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email", Password: ""})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAuthValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthFixture(&mockAuthRepo{})

	_, err := svc.ValidateToken("not.a.token")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthValidateTokenRejectsWrongSecret(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{user: &models.User{
		ID: "user-1", Email: "admin@example.com", PasswordHash: string(password), Active: true,
	}}
	issuer := newAuthFixture(repo)
	res, err := issuer.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "password"})
	require.NoError(t, err)

	other := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{Secret: "different", Expiration: time.Hour})
	_, err = other.ValidateToken(res.AccessToken)
	require.Error(t, err)
}

func TestAuthLoginRepoError(t *testing.T) {
	repo := &mockAuthRepo{findByEmailErr: errors.New("db down")}
	svc := newAuthFixture(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "password"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}
