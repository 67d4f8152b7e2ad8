// Package hashing wraps the password-hashing primitive behind a small
// interface so services can be tested without paying the bcrypt cost.
package hashing

// Hasher hashes plaintext passwords and verifies candidates against stored
// hashes. Verification is CPU-bound and runs synchronously in the calling
// goroutine.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}
