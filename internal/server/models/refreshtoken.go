package models

import "time"

// RefreshToken is one opaque rotation token. Token is the bearer secret
// handed to the client; TokenID pairs the row with exactly one access token
// (its jti claim). Rows are never deleted by the token lifecycle: rotation,
// logout and logout-all flip the Used/Valid flags so spent tokens remain
// auditable.
type RefreshToken struct {
	ID        int64     `db:"id"`
	Token     string    `db:"token"`
	TokenID   string    `db:"token_id"`
	OwnerGuid string    `db:"owner_guid"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
	Used      bool      `db:"used"`
	Valid     bool      `db:"valid"`
}

// Redeemable reports whether the token can still be exchanged at the given
// moment. A redeemed or revoked token stays in the table but is never
// redeemable again.
func (t *RefreshToken) Redeemable(now time.Time) bool {
	return !t.Used && t.Valid && now.Before(t.ExpiresAt)
}
