package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"farmtrace/internal/auth"
	apperrors "farmtrace/internal/errors"
	"farmtrace/internal/model"
)

func newTestAuthService(t *testing.T) (AuthService, *MockUserRepository, *MockTokenStore, *auth.JWTService, *model.User) {
	t.Helper()
	repo := new(MockUserRepository)
	tokens := new(MockTokenStore)
	wallets := newTestWallets()
	jwtService := auth.NewJWTService("test-secret")
	users := newTestUserService(repo, nil, wallets)
	user := newTestUser(t, wallets, model.RoleRetailer)
	return NewAuthService(users, jwtService, tokens), repo, tokens, jwtService, user
}

func TestAuthService_Login(t *testing.T) {
	svc, repo, tokens, jwtService, user := newTestAuthService(t)
	repo.On("FindByPhone", mock.Anything, user.Phone).Return(user, nil)
	tokens.On("StoreRefreshToken", mock.Anything, mock.AnythingOfType("string"), user.ID, "retailer", auth.RefreshTokenExpiry).Return(nil)

	pair, got, err := svc.Login(context.Background(), user.Phone, testPassword)

	require.NoError(t, err)
	assert.Same(t, user, got)
	assert.Equal(t, int64(auth.AccessTokenExpiry/time.Second), pair.ExpiresIn)

	claims, err := jwtService.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "retailer", claims.Role)
	tokens.AssertExpectations(t)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	svc, repo, tokens, _, user := newTestAuthService(t)
	repo.On("FindByPhone", mock.Anything, user.Phone).Return(user, nil)

	_, _, err := svc.Login(context.Background(), user.Phone, "wrong-password")

	assert.ErrorIs(t, err, apperrors.ErrAuthentication)
	tokens.AssertNotCalled(t, "StoreRefreshToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthService_RefreshToken(t *testing.T) {
	svc, _, tokens, jwtService, user := newTestAuthService(t)
	tokenID, refresh, err := jwtService.GenerateRefreshToken(user.ID, "retailer")
	require.NoError(t, err)
	tokens.On("GetRefreshToken", mock.Anything, tokenID).Return(user.ID, "retailer", nil)

	access, err := svc.RefreshToken(context.Background(), refresh)

	require.NoError(t, err)
	claims, err := jwtService.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestAuthService_RefreshToken_Rejected(t *testing.T) {
	svc, _, tokens, jwtService, user := newTestAuthService(t)
	tokenID, refresh, err := jwtService.GenerateRefreshToken(user.ID, "retailer")
	require.NoError(t, err)

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.RefreshToken(context.Background(), "not-a-token")
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
		assert.ErrorIs(t, err, apperrors.ErrAuthentication)
	})

	t.Run("revoked", func(t *testing.T) {
		tokens.On("GetRefreshToken", mock.Anything, tokenID).Return(uuid.Nil, "", auth.ErrTokenNotFound).Once()
		_, err := svc.RefreshToken(context.Background(), refresh)
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	})

	t.Run("access token", func(t *testing.T) {
		_, access, err := jwtService.GenerateAccessToken(user.ID, "retailer")
		require.NoError(t, err)
		_, err = svc.RefreshToken(context.Background(), access)
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	})

	t.Run("role changed", func(t *testing.T) {
		tokens.On("GetRefreshToken", mock.Anything, tokenID).Return(user.ID, "consumer", nil).Once()
		_, err := svc.RefreshToken(context.Background(), refresh)
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	})
}

func TestAuthService_Logout(t *testing.T) {
	svc, _, tokens, jwtService, user := newTestAuthService(t)
	refreshID, refresh, err := jwtService.GenerateRefreshToken(user.ID, "retailer")
	require.NoError(t, err)
	_, access, err := jwtService.GenerateAccessToken(user.ID, "retailer")
	require.NoError(t, err)
	claims, err := jwtService.ValidateToken(access)
	require.NoError(t, err)

	tokens.On("DeleteRefreshToken", mock.Anything, refreshID).Return(nil)
	tokens.On("BlacklistAccessToken", mock.Anything, claims.ID, mock.MatchedBy(func(ttl time.Duration) bool {
		return ttl > 0 && ttl <= auth.AccessTokenExpiry
	})).Return(nil)
	tokens.On("IsAccessTokenBlacklisted", mock.Anything, claims.ID).Return(true, nil)

	require.NoError(t, svc.Logout(context.Background(), refresh, claims))
	assert.True(t, svc.IsRevoked(context.Background(), claims.ID))
	tokens.AssertExpectations(t)
}

func TestAuthService_Logout_RejectsAccessTokenAsRefreshToken(t *testing.T) {
	svc, _, tokens, jwtService, user := newTestAuthService(t)
	_, access, err := jwtService.GenerateAccessToken(user.ID, "retailer")
	require.NoError(t, err)

	err = svc.Logout(context.Background(), access, nil)

	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	tokens.AssertNotCalled(t, "DeleteRefreshToken", mock.Anything, mock.Anything)
}

func TestAuthService_Logout_ExpiredAccessTokenNotBlacklisted(t *testing.T) {
	svc, _, tokens, jwtService, user := newTestAuthService(t)
	refreshID, refresh, err := jwtService.GenerateRefreshToken(user.ID, "retailer")
	require.NoError(t, err)
	tokens.On("DeleteRefreshToken", mock.Anything, refreshID).Return(nil)

	claims := &auth.Claims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "expired",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	require.NoError(t, svc.Logout(context.Background(), refresh, claims))
	tokens.AssertNotCalled(t, "BlacklistAccessToken", mock.Anything, mock.Anything, mock.Anything)
}
