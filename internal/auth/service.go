// Package auth issues and verifies the JWT access and refresh tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fixit-hub/fixit/internal/apperr"
	"github.com/fixit-hub/fixit/internal/config"
	"github.com/fixit-hub/fixit/internal/identity"
	"github.com/fixit-hub/fixit/internal/ledger"
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

// ErrInvalidToken covers malformed, expired and revoked tokens.
var ErrInvalidToken = fmt.Errorf("invalid token: %w", apperr.ErrUnauthorized)

// Claims are carried by both token kinds.
type Claims struct {
	Role    ledger.Role `json:"role"`
	Version int         `json:"ver"`
	Kind    string      `json:"kind"`
	jwt.RegisteredClaims
}

type Service struct {
	cfg    config.Config
	idRepo identity.Repository
	now    func() time.Time
}

func NewService(cfg config.Config, idRepo identity.Repository) *Service {
	return &Service{cfg: cfg, idRepo: idRepo, now: time.Now}
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login issues a token pair for an authenticated user.
func (s *Service) Login(user identity.User) (TokenPair, error) {
	access, err := s.sign(user.ID, user.Role, user.TokenVersion, kindAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(user.ID, user.Role, user.TokenVersion, kindRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(s.cfg.AccessTokenTTL.Seconds())}, nil
}

func (s *Service) sign(userID string, role ledger.Role, version int, kind string) (string, error) {
	secret, ttl := s.cfg.JWTSecret, s.cfg.AccessTokenTTL
	if kind == kindRefresh {
		secret, ttl = s.cfg.RefreshSecret, s.cfg.RefreshTokenTTL
	}
	now := s.now()
	claims := Claims{
		Role:    role,
		Version: version,
		Kind:    kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.cfg.AppName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func (s *Service) parse(token, secret, kind string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || claims.Kind != kind || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Verify checks an access token and that it has not been revoked by logout.
func (s *Service) Verify(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.parse(token, s.cfg.JWTSecret, kindAccess)
	if err != nil {
		return nil, err
	}
	if err := s.checkVersion(ctx, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Refresh verifies the refresh token and returns a new access token if valid.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	claims, err := s.parse(refreshToken, s.cfg.RefreshSecret, kindRefresh)
	if err != nil {
		return "", 0, err
	}
	if err := s.checkVersion(ctx, claims); err != nil {
		return "", 0, err
	}
	signed, err := s.sign(claims.Subject, claims.Role, claims.Version, kindAccess)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(s.cfg.AccessTokenTTL.Seconds()), nil
}

func (s *Service) checkVersion(ctx context.Context, claims *Claims) error {
	user, err := s.idRepo.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	if user.TokenVersion != claims.Version || user.Role != claims.Role {
		return ErrInvalidToken
	}
	return nil
}

// Logout increments token version so older tokens become invalid.
func (s *Service) Logout(ctx context.Context, userID string) error {
	user, err := s.idRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	return s.idRepo.UpdateTokenVersion(ctx, user.ID, user.TokenVersion+1)
}

// Principal verifies an access token and returns who it belongs to.
func (s *Service) Principal(ctx context.Context, token string) (string, ledger.Role, error) {
	claims, err := s.Verify(ctx, token)
	if err != nil {
		return "", "", err
	}
	return claims.Subject, claims.Role, nil
}
