// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account record. Guid is assigned once at creation and never
// changes; refresh tokens reference it rather than the integer ID so they
// survive any future change to integer ids.
type User struct {
	ID           int64     `db:"id"`
	Guid         string    `db:"guid"`
	Username     string    `db:"username"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	Email        string    `db:"email"`
	Role         Role      `db:"role"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}
