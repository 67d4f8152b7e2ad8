package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sessionworks/authd/internal/common"
	"github.com/sessionworks/authd/internal/dbx"
	"github.com/sessionworks/authd/internal/server/auth"
	"github.com/sessionworks/authd/internal/server/config"
	"github.com/sessionworks/authd/internal/server/hashing"
	"github.com/sessionworks/authd/internal/server/models"
	"github.com/sessionworks/authd/internal/server/repositories/repomanager"
)

// TokenPair is one issued credential set: a signed access token and the
// opaque refresh token paired with it.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthService owns the token lifecycle: credential verification, pair
// issuance, the refresh exchange and revocation. It holds no mutable state
// of its own; everything shared lives in the database.
//
// Issued access tokens are never blacklisted: after logout or logout-all
// they remain usable until their natural expiry. With second-to-minute
// access-token lifetimes this is an accepted limitation, not an oversight.
type AuthService struct {
	db                           *sql.DB
	repos                        repomanager.RepositoryManager
	users                        *UserService
	hasher                       hashing.Hasher
	issuer                       *auth.Issuer
	refreshTokenValidityDuration time.Duration
}

func NewAuthService(db *sql.DB, repos repomanager.RepositoryManager, users *UserService, hasher hashing.Hasher, cfg *config.Config) *AuthService {
	return &AuthService{
		db:                           db,
		repos:                        repos,
		users:                        users,
		hasher:                       hasher,
		issuer:                       auth.NewIssuer([]byte(cfg.JWTSecretKey), cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTokenValidityDuration),
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// Issuer exposes the access-token issuer, used by the HTTP layer to validate
// bearer tokens.
func (s *AuthService) Issuer() *auth.Issuer {
	return s.issuer
}

// Login verifies email+password and issues a fresh token pair. An unknown
// email and a wrong password both fail with the same
// common.ErrInvalidCredentials so callers cannot tell the cases apart.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.repos.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}

	return s.issuePair(ctx, s.db, user)
}

// Register creates an account and immediately issues its first token pair.
// The requested role is only honored when the caller is a SuperAdmin.
func (s *AuthService) Register(ctx context.Context, params CreateUserParams, callerRole models.Role) (*TokenPair, error) {
	user, err := s.users.Create(ctx, params, callerRole)
	if err != nil {
		return nil, err
	}
	return s.issuePair(ctx, s.db, user)
}

// Refresh exchanges an expired access token plus its paired refresh token
// for a brand-new pair, consuming the old refresh token. Every validation
// failure is a *RotationError carrying the exact reason.
func (s *AuthService) Refresh(ctx context.Context, accessToken, refreshValue string) (*TokenPair, error) {
	claims, err := s.issuer.ParseExpired(accessToken)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	if claims.ExpiresAt == nil || claims.ExpiresAt.After(now) {
		return nil, rejected(ReasonNotYetExpired)
	}

	stored, err := s.repos.RefreshTokens(s.db).GetByToken(ctx, refreshValue)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, rejected(ReasonNotFound)
		}
		return nil, fmt.Errorf("looking up refresh token: %w", err)
	}

	switch {
	case !now.Before(stored.ExpiresAt):
		return nil, rejected(ReasonExpired)
	case !stored.Valid:
		return nil, rejected(ReasonInvalidated)
	case stored.Used:
		return nil, rejected(ReasonAlreadyUsed)
	case stored.TokenID != claims.ID:
		return nil, rejected(ReasonPairingMismatch)
	}

	user, err := s.repos.Users(s.db).GetByGuid(ctx, stored.OwnerGuid)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrOwnerNotFound
		}
		return nil, fmt.Errorf("resolving token owner: %w", err)
	}

	// Consuming the old token and persisting the new one happen in one
	// transaction. The conditional update re-checks the flags, so of two
	// concurrent exchanges of the same token only one can win; the loser
	// observes zero affected rows here even though its earlier lookup
	// passed.
	var pair *TokenPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		affected, err := s.repos.RefreshTokens(tx).InvalidateByTokenID(ctx, stored.TokenID)
		if err != nil {
			return fmt.Errorf("consuming refresh token: %w", err)
		}
		if affected == 0 {
			return rejected(ReasonAlreadyUsed)
		}

		pair, err = s.issuePair(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	return pair, nil
}

// Logout revokes the single refresh token paired with the given access-token
// id. Revoking an already-spent session is not an error.
func (s *AuthService) Logout(ctx context.Context, tokenID string) error {
	if _, err := s.repos.RefreshTokens(s.db).InvalidateByTokenID(ctx, tokenID); err != nil {
		return fmt.Errorf("invalidating refresh token: %w", err)
	}
	return nil
}

// LogoutAll revokes every refresh token owned by the user, ending all of
// their sessions.
func (s *AuthService) LogoutAll(ctx context.Context, userID int64) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrOwnerNotFound
		}
		return err
	}

	if _, err := s.repos.RefreshTokens(s.db).InvalidateAllForOwner(ctx, user.Guid); err != nil {
		return fmt.Errorf("invalidating refresh tokens: %w", err)
	}
	return nil
}

// issuePair signs a new access token and persists the refresh token paired
// with it, on whatever handle the caller provides (plain connection or
// transaction).
func (s *AuthService) issuePair(ctx context.Context, db dbx.DBTX, user *models.User) (*TokenPair, error) {
	accessToken, tokenID, err := s.issuer.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}

	refreshValue, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, fmt.Errorf("generating refresh token: %w", err)
	}

	token := &models.RefreshToken{
		Token:     refreshValue,
		TokenID:   tokenID,
		OwnerGuid: user.Guid,
		ExpiresAt: time.Now().Add(s.refreshTokenValidityDuration),
	}
	if err := s.repos.RefreshTokens(db).Create(ctx, token); err != nil {
		return nil, fmt.Errorf("storing refresh token: %w", err)
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshValue}, nil
}
