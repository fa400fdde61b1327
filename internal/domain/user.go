package domain

import (
	"errors"
	"time"
)

// ErrEmptyPassword is returned by SetPassword for an empty plaintext.
var ErrEmptyPassword = errors.New("password must not be empty")

// PasswordHasher produces and verifies one-way salted password hashes.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Check(plaintext, hash string) bool
}

// User represents an account of the task board.
type User struct {
	ID              string
	Username        string
	Email           string
	PasswordHash    string
	IsAdmin         bool
	Role            string
	Title           string
	IsActive        bool
	IsEmailVerified bool
	Avatar          string
	Tasks           []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SetPassword hashes plaintext and stores the result. It is the only way a
// password enters a User; repositories persist PasswordHash as-is.
func (u *User) SetPassword(hasher PasswordHasher, plaintext string) error {
	if plaintext == "" {
		return ErrEmptyPassword
	}
	hash, err := hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// CheckPassword reports whether plaintext matches the stored hash.
func (u *User) CheckPassword(hasher PasswordHasher, plaintext string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return hasher.Check(plaintext, u.PasswordHash)
}

// Sanitized returns a copy without credential material.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.PasswordHash = ""
	if u.Tasks != nil {
		clone.Tasks = append([]string(nil), u.Tasks...)
	}
	return &clone
}
