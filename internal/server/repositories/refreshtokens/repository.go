package refreshtokens

import (
	"context"

	"github.com/sessionworks/authd/internal/server/models"
)

// Repository is the persistence contract for opaque rotation tokens. It is a
// pure storage boundary; no business-rule validation lives here. Rows are
// soft-invalidated (flags flipped), never deleted, so spent tokens stay
// auditable.
type Repository interface {
	// Create inserts a new row with used=false, valid=true. Fails only on
	// storage errors.
	Create(ctx context.Context, token *models.RefreshToken) error

	// GetByToken returns the row holding the given opaque value, or
	// common.ErrorNotFound.
	GetByToken(ctx context.Context, token string) (*models.RefreshToken, error)

	// InvalidateByTokenID marks the row paired with the given access-token id
	// as used, but only if it is still redeemable. The returned count is the
	// number of rows actually flipped: it is 1 for the single caller that
	// wins a concurrent redemption race and 0 for everyone else, which
	// callers must treat as a rejection, never as success.
	InvalidateByTokenID(ctx context.Context, tokenID string) (int64, error)

	// InvalidateAllForOwner revokes every live token owned by the guid and
	// returns the number of rows affected.
	InvalidateAllForOwner(ctx context.Context, ownerGuid string) (int64, error)
}
