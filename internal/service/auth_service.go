package service

import (
	"context"
	"fmt"
	"time"

	"farmtrace/internal/auth"
	apperrors "farmtrace/internal/errors"
	"farmtrace/internal/model"
)

// ErrInvalidRefreshToken is returned when refresh token is invalid or expired.
var ErrInvalidRefreshToken = fmt.Errorf("%w: invalid or expired refresh token", apperrors.ErrAuthentication)

// TokenPair is issued on login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AuthService handles session operations.
type AuthService interface {
	Login(ctx context.Context, phone, password string) (*TokenPair, *model.User, error)
	RefreshToken(ctx context.Context, refreshToken string) (accessToken string, err error)
	Logout(ctx context.Context, refreshToken string, accessClaims *auth.Claims) error
	IsRevoked(ctx context.Context, accessTokenID string) bool
}

type authService struct {
	users      UserService
	jwtService *auth.JWTService
	tokenStore auth.TokenStoreInterface
}

// NewAuthService creates a new authentication service.
func NewAuthService(users UserService, jwtService *auth.JWTService, tokenStore auth.TokenStoreInterface) AuthService {
	return &authService{
		users:      users,
		jwtService: jwtService,
		tokenStore: tokenStore,
	}
}

// Login authenticates a user and returns access and refresh tokens.
func (s *authService) Login(ctx context.Context, phone, password string) (*TokenPair, *model.User, error) {
	user, err := s.users.Authenticate(ctx, phone, password)
	if err != nil {
		return nil, nil, err
	}

	_, accessToken, err := s.jwtService.GenerateAccessToken(user.ID, string(user.Role))
	if err != nil {
		return nil, nil, fmt.Errorf("generate access token: %w", err)
	}

	tokenID, refreshToken, err := s.jwtService.GenerateRefreshToken(user.ID, string(user.Role))
	if err != nil {
		return nil, nil, fmt.Errorf("generate refresh token: %w", err)
	}

	if err := s.tokenStore.StoreRefreshToken(ctx, tokenID, user.ID, string(user.Role), auth.RefreshTokenExpiry); err != nil {
		return nil, nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(auth.AccessTokenExpiry / time.Second),
	}, user, nil
}

// RefreshToken validates a refresh token and returns a new access token.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return "", ErrInvalidRefreshToken
	}

	storedUserID, storedRole, err := s.tokenStore.GetRefreshToken(ctx, claims.ID)
	if err != nil {
		return "", ErrInvalidRefreshToken
	}
	if storedUserID != claims.UserID || storedRole != claims.Role {
		return "", ErrInvalidRefreshToken
	}

	_, accessToken, err := s.jwtService.GenerateAccessToken(claims.UserID, claims.Role)
	if err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return accessToken, nil
}

// Logout invalidates a refresh token and, when given, the current access token.
func (s *authService) Logout(ctx context.Context, refreshToken string, accessClaims *auth.Claims) error {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return ErrInvalidRefreshToken
	}
	if err := s.tokenStore.DeleteRefreshToken(ctx, claims.ID); err != nil {
		return err
	}

	if accessClaims != nil && accessClaims.ID != "" && accessClaims.ExpiresAt != nil {
		if ttl := time.Until(accessClaims.ExpiresAt.Time); ttl > 0 {
			return s.tokenStore.BlacklistAccessToken(ctx, accessClaims.ID, ttl)
		}
	}
	return nil
}

// IsRevoked reports whether an access token was revoked by logout.
func (s *authService) IsRevoked(ctx context.Context, accessTokenID string) bool {
	revoked, _ := s.tokenStore.IsAccessTokenBlacklisted(ctx, accessTokenID)
	return revoked
}
