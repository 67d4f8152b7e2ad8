// Package refreshtokens provides a PostgreSQL-backed repository for the
// opaque rotation tokens used in the authentication flow.
package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sessionworks/authd/internal/common"
	"github.com/sessionworks/authd/internal/dbx"
	"github.com/sessionworks/authd/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (token, token_id, owner_guid, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		token.Token, token.TokenID, token.OwnerGuid, token.ExpiresAt).
		Scan(&token.ID, &token.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	token.Used = false
	token.Valid = true
	return nil
}

func (r *PostgresRepository) GetByToken(ctx context.Context, value string) (*models.RefreshToken, error) {
	query := `
		SELECT id, token, token_id, owner_guid, created_at, expires_at, used, valid
		FROM refresh_tokens
		WHERE token = $1
	`
	token := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&token.ID, &token.Token, &token.TokenID, &token.OwnerGuid,
		&token.CreatedAt, &token.ExpiresAt, &token.Used, &token.Valid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

// InvalidateByTokenID marks the paired row as used in a single conditional
// update, so that of any number of concurrent callers presenting the same
// token, exactly one sees a row count of 1. The WHERE clause re-checks the
// flags; there is no separate read.
func (r *PostgresRepository) InvalidateByTokenID(ctx context.Context, tokenID string) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET used = TRUE
		WHERE token_id = $1 AND used = FALSE AND valid = TRUE
	`
	res, err := r.db.ExecContext(ctx, query, tokenID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return affected, nil
}

func (r *PostgresRepository) InvalidateAllForOwner(ctx context.Context, ownerGuid string) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET valid = FALSE
		WHERE owner_guid = $1 AND valid = TRUE
	`
	res, err := r.db.ExecContext(ctx, query, ownerGuid)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return affected, nil
}
