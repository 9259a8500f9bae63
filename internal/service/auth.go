package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"monch/internal/cache"
	"monch/internal/config"
	"monch/internal/model"
	"monch/internal/repository"
)

// ExpiredTokenRetention is how long expired refresh tokens are kept before purging.
const ExpiredTokenRetention = 7 * 24 * time.Hour

// AuthService handles authentication-related business logic with refresh token rotation and reuse detection.
type AuthService struct {
	refreshTokenRepo repository.RefreshTokenRepository
	denylist         cache.TokenDenylist
	config           *config.Config
	logger           *zap.Logger
}

func NewAuthService(
	refreshTokenRepo repository.RefreshTokenRepository,
	denylist cache.TokenDenylist,
	cfg *config.Config,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		refreshTokenRepo: refreshTokenRepo,
		denylist:         denylist,
		config:           cfg,
		logger:           logger,
	}
}

// GenerateTokenPair issues a new access token and persists a refresh token.
func (s *AuthService) GenerateTokenPair(ctx context.Context, userID int64, deviceInfo, ipAddress string) (*model.TokenPair, error) {
	refreshTokenRaw, refreshToken := s.newRefreshToken(userID, deviceInfo, ipAddress)
	if err := s.refreshTokenRepo.Create(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	return s.tokenPair(userID, refreshTokenRaw)
}

// RefreshTokens validates the refresh token and rotates a new pair.
// Presenting a token that was already rotated revokes every token of its user.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshTokenRaw, deviceInfo, ipAddress string) (*model.TokenPair, int64, error) {
	if refreshTokenRaw == "" {
		return nil, 0, model.ErrRefreshTokenMissing
	}

	token, err := s.refreshTokenRepo.FindByTokenHash(ctx, s.hashToken(refreshTokenRaw))
	if err != nil {
		return nil, 0, model.ErrRefreshTokenNotFound
	}
	if token.IsRevoked() {
		return nil, 0, s.reuseDetected(ctx, token)
	}
	if token.IsExpired() {
		return nil, 0, model.ErrRefreshTokenExpired
	}

	nextRaw, next := s.newRefreshToken(token.UserID, deviceInfo, ipAddress)
	if err := s.refreshTokenRepo.Rotate(ctx, token.ID, next); err != nil {
		if errors.Is(err, model.ErrRefreshTokenReused) {
			// lost a race against a concurrent refresh of the same token
			return nil, 0, s.reuseDetected(ctx, token)
		}
		return nil, 0, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	pair, err := s.tokenPair(token.UserID, nextRaw)
	if err != nil {
		return nil, 0, err
	}
	return pair, token.UserID, nil
}

func (s *AuthService) RevokeRefreshToken(ctx context.Context, refreshTokenRaw string) error {
	token, err := s.refreshTokenRepo.FindByTokenHash(ctx, s.hashToken(refreshTokenRaw))
	if err != nil {
		return err
	}
	return s.refreshTokenRepo.Revoke(ctx, token.ID)
}

func (s *AuthService) RevokeAllUserTokens(ctx context.Context, userID int64) error {
	n, err := s.refreshTokenRepo.RevokeAllForUser(ctx, userID)
	if err != nil {
		return err
	}
	s.logger.Info("revoked all refresh tokens", zap.Int64("user_id", userID), zap.Int64("count", n))
	return nil
}

// Logout revokes the refresh token, if any, and denylists the access token
// until it expires. An unknown refresh token is not an error.
func (s *AuthService) Logout(ctx context.Context, refreshTokenRaw string, access *model.AccessClaims) error {
	if refreshTokenRaw != "" {
		err := s.RevokeRefreshToken(ctx, refreshTokenRaw)
		if err != nil && !errors.Is(err, model.ErrRefreshTokenNotFound) {
			return err
		}
	}
	if access != nil {
		s.RevokeAccessToken(ctx, access)
	}
	return nil
}

// RevokeAccessToken denylists the token id until the token expires.
func (s *AuthService) RevokeAccessToken(ctx context.Context, access *model.AccessClaims) {
	if err := s.denylist.Revoke(ctx, access.TokenID, time.Until(access.ExpiresAt)); err != nil {
		s.logger.Warn("failed to denylist access token", zap.Int64("user_id", access.UserID), zap.Error(err))
	}
}

// VerifyAccessToken parses a signed access token and checks it against the denylist.
// A denylist lookup failure lets the token through.
func (s *AuthService) VerifyAccessToken(ctx context.Context, tokenString string) (*model.AccessClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, model.ErrAccessTokenExpired
		}
		return nil, model.ErrAccessTokenInvalid
	}
	if !token.Valid {
		return nil, model.ErrAccessTokenInvalid
	}

	userIDFloat, ok := claims["user_id"].(float64)
	if !ok {
		return nil, model.ErrAccessTokenInvalid
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, model.ErrAccessTokenInvalid
	}
	tokenID, _ := claims["jti"].(string)

	access := &model.AccessClaims{
		UserID:    int64(userIDFloat),
		TokenID:   tokenID,
		ExpiresAt: exp.Time,
	}

	revoked, err := s.denylist.IsRevoked(ctx, tokenID)
	if err != nil {
		s.logger.Warn("token denylist unavailable", zap.Error(err))
	} else if revoked {
		return nil, model.ErrAccessTokenRevoked
	}

	return access, nil
}

// PurgeExpired removes refresh tokens that expired more than ExpiredTokenRetention ago.
func (s *AuthService) PurgeExpired(ctx context.Context) {
	n, err := s.refreshTokenRepo.DeleteExpired(ctx, ExpiredTokenRetention)
	if err != nil {
		s.logger.Warn("failed to purge expired refresh tokens", zap.Error(err))
		return
	}
	s.logger.Info("purged expired refresh tokens", zap.Int64("count", n))
}

// reuseDetected revokes every token of the user after a rotated token came back.
func (s *AuthService) reuseDetected(ctx context.Context, token *model.RefreshToken) error {
	s.logger.Warn("refresh token reuse detected", zap.Int64("user_id", token.UserID), zap.String("token_id", token.ID))
	if _, err := s.refreshTokenRepo.RevokeAllForUser(ctx, token.UserID); err != nil {
		s.logger.Error("failed to revoke token family", zap.Int64("user_id", token.UserID), zap.Error(err))
	}
	return model.ErrRefreshTokenReused
}

func (s *AuthService) newRefreshToken(userID int64, deviceInfo, ipAddress string) (string, *model.RefreshToken) {
	raw := uuid.New().String()
	token := &model.RefreshToken{
		UserID:    userID,
		TokenHash: s.hashToken(raw),
		ExpiresAt: time.Now().Add(time.Duration(s.config.RefreshTokenMaxAge) * time.Second),
	}
	if deviceInfo != "" {
		token.DeviceInfo = &deviceInfo
	}
	if ipAddress != "" {
		token.IPAddress = &ipAddress
	}
	return raw, token
}

func (s *AuthService) tokenPair(userID int64, refreshTokenRaw string) (*model.TokenPair, error) {
	accessToken, err := s.generateAccessToken(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	return &model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshTokenRaw,
		ExpiresIn:    s.config.AccessTokenMaxAge,
	}, nil
}

func (s *AuthService) generateAccessToken(userID int64) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"jti":     uuid.NewString(),
		"exp":     now.Add(time.Duration(s.config.AccessTokenMaxAge) * time.Second).Unix(),
		"iat":     now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

func (s *AuthService) hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
