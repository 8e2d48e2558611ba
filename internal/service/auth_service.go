package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/authgate/internal/models"
	appErrors "github.com/noah-isme/authgate/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id int64, ts time.Time) error
}

type activeTokenStore interface {
	Save(ctx context.Context, record *models.ActiveToken) error
	FindByUserID(ctx context.Context, userID int64) ([]models.ActiveToken, error)
	DeleteByToken(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID int64) error
}

// RevocationRegistry tracks tokens disallowed ahead of their natural expiry.
type RevocationRegistry interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
	Unrevoke(ctx context.Context, token string) error
}

// AuthService provides token issuance, verification and revocation.
type AuthService struct {
	users     authUserRepository
	store     activeTokenStore
	registry  RevocationRegistry
	tokens    *TokenService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users authUserRepository, store activeTokenStore, registry RevocationRegistry, tokens *TokenService, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{
		users:     users,
		store:     store,
		registry:  registry,
		tokens:    tokens,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Login authenticates a user and returns an issued token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	token, expiresAt, err := s.tokens.Issue(user.Email, user.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	if err := s.store.Save(ctx, &models.ActiveToken{Token: token, UserID: user.ID, ExpiresAt: expiresAt}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to record issued token")
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.tokens.TTL().Seconds()),
		IssuedAt:    s.now().UTC(),
		User: models.UserInfo{
			ID:       user.ID,
			Email:    user.Email,
			FullName: user.FullName,
		},
	}, nil
}

// Authenticate runs the per-request token checks in order: revocation
// lookup first (the cheap check), then signature and expiry. A registry
// failure is logged and skipped rather than failing the request.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.JWTClaims, error) {
	revoked, err := s.registry.IsRevoked(ctx, token)
	if err != nil {
		s.logger.Warn("revocation lookup failed, continuing with verification", zap.Error(err))
	} else if revoked {
		return nil, appErrors.Clone(appErrors.ErrTokenRevoked, "")
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	return claims, nil
}

// Logout revokes the presented token and drops its store record. The
// revocation entry outlives the record until the sweeper confirms expiry.
func (s *AuthService) Logout(ctx context.Context, token string, claims *models.JWTClaims) error {
	if err := s.registry.Revoke(ctx, token, s.remainingLifetime(claims)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke token")
	}

	if err := s.store.DeleteByToken(ctx, token); err != nil {
		s.logger.Warn("failed to delete active token record on logout", zap.Error(err))
	}

	return nil
}

// LogoutAll revokes every active token belonging to the user, then removes
// their store records in one sweep.
func (s *AuthService) LogoutAll(ctx context.Context, userID int64) (int, error) {
	records, err := s.store.FindByUserID(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to load active tokens")
	}

	revoked := 0
	now := s.now().UTC()
	for _, record := range records {
		ttl := record.ExpiresAt.Sub(now)
		if ttl <= 0 {
			// Already expired, verification rejects it on its own.
			continue
		}
		if err := s.registry.Revoke(ctx, record.Token, ttl); err != nil {
			s.logger.Warn("failed to revoke token during logout-all", zap.Int64("user_id", userID), zap.Error(err))
			continue
		}
		revoked++
	}

	if err := s.store.DeleteByUser(ctx, userID); err != nil {
		s.logger.Warn("failed to delete active token records", zap.Int64("user_id", userID), zap.Error(err))
	}

	return revoked, nil
}

// Unrevoke manually lifts a revocation, making a still-valid token
// acceptable again.
func (s *AuthService) Unrevoke(ctx context.Context, token string) error {
	if err := s.registry.Unrevoke(ctx, token); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unrevoke token")
	}
	return nil
}

func (s *AuthService) remainingLifetime(claims *models.JWTClaims) time.Duration {
	if claims == nil || claims.ExpiresAt == nil {
		return s.tokens.TTL()
	}
	remaining := claims.ExpiresAt.Time.Sub(s.now())
	if remaining <= 0 {
		return time.Minute
	}
	return remaining
}
