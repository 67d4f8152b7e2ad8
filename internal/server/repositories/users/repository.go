package users

import (
	"context"

	"github.com/sessionworks/authd/internal/server/models"
)

// Repository persists user accounts. Lookups return common.ErrorNotFound
// when no row matches.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByGuid(ctx context.Context, guid string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Delete(ctx context.Context, id int64) (int64, error)
}
