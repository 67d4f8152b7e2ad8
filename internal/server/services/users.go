package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sessionworks/authd/internal/common"
	"github.com/sessionworks/authd/internal/dbx"
	"github.com/sessionworks/authd/internal/server/hashing"
	"github.com/sessionworks/authd/internal/server/models"
	"github.com/sessionworks/authd/internal/server/repositories/repomanager"
)

// CreateUserParams carries the fields of a registration or administrative
// user creation. Role is a request, not a guarantee: it is only honored for
// SuperAdmin callers.
type CreateUserParams struct {
	Username  string
	FirstName string
	LastName  string
	Email     string
	Role      models.Role
	Password  string
}

// UserService owns account records. The token lifecycle consumes it for
// owner lookups and account creation.
type UserService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	hasher hashing.Hasher
}

func NewUserService(db *sql.DB, repos repomanager.RepositoryManager, hasher hashing.Hasher) *UserService {
	return &UserService{db: db, repos: repos, hasher: hasher}
}

// Create adds a new account. The email must be unused. The requested role is
// forced to RoleUser unless the caller holds SuperAdmin. The Guid is
// assigned here, once, and never changes afterwards.
func (s *UserService) Create(ctx context.Context, params CreateUserParams, callerRole models.Role) (*models.User, error) {
	repo := s.repos.Users(s.db)

	if _, err := repo.GetByEmail(ctx, params.Email); err == nil {
		return nil, common.ErrorAlreadyExists
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("checking email: %w", err)
	}

	role := params.Role
	if callerRole != models.RoleSuperAdmin || !role.Valid() {
		role = models.RoleUser
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &models.User{
		Guid:         uuid.NewString(),
		Username:     params.Username,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Email:        params.Email,
		Role:         role,
		PasswordHash: hash,
	}

	user, err = repo.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return s.repos.Users(s.db).GetByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.repos.Users(s.db).GetByEmail(ctx, email)
}

func (s *UserService) GetByGuid(ctx context.Context, guid string) (*models.User, error) {
	return s.repos.Users(s.db).GetByGuid(ctx, guid)
}

// Delete removes an account and revokes all of its refresh tokens in the
// same transaction, so a deleted user cannot keep a live session.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	user, err := s.repos.Users(s.db).GetByID(ctx, id)
	if err != nil {
		return err
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		affected, err := s.repos.Users(tx).Delete(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("deleting user: %w", err)
		}
		if affected == 0 {
			return common.ErrorNotFound
		}

		if _, err := s.repos.RefreshTokens(tx).InvalidateAllForOwner(ctx, user.Guid); err != nil {
			return fmt.Errorf("invalidating refresh tokens: %w", err)
		}
		return nil
	})
}
