package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingHasher struct {
	calls int
}

func (h *countingHasher) Hash(plaintext string) (string, error) {
	h.calls++
	return "hashed:" + plaintext, nil
}

func (h *countingHasher) Check(plaintext, hash string) bool {
	return hash == "hashed:"+plaintext
}

type failingHasher struct{}

func (failingHasher) Hash(string) (string, error) { return "", errors.New("boom") }
func (failingHasher) Check(string, string) bool   { return false }

func TestUser_SetPassword(t *testing.T) {
	h := &countingHasher{}
	u := &User{Email: "a@x.com"}

	require.NoError(t, u.SetPassword(h, "password1"))
	assert.Equal(t, "hashed:password1", u.PasswordHash)
	assert.Equal(t, 1, h.calls)
	assert.True(t, u.CheckPassword(h, "password1"))
	assert.False(t, u.CheckPassword(h, "password2"))

	u.Title = "lead"
	assert.Equal(t, 1, h.calls, "unrelated updates must not rehash")
}

func TestUser_SetPasswordErrors(t *testing.T) {
	u := &User{PasswordHash: "keep"}

	assert.ErrorIs(t, u.SetPassword(&countingHasher{}, ""), ErrEmptyPassword)
	assert.Error(t, u.SetPassword(failingHasher{}, "password1"))
	assert.Equal(t, "keep", u.PasswordHash)
}

func TestUser_CheckPasswordWithoutHash(t *testing.T) {
	u := &User{}
	assert.False(t, u.CheckPassword(&countingHasher{}, ""))
}

func TestUser_Sanitized(t *testing.T) {
	u := &User{ID: "1", PasswordHash: "secret", Tasks: []string{"t1"}}

	clean := u.Sanitized()
	assert.Empty(t, clean.PasswordHash)
	assert.Equal(t, "secret", u.PasswordHash)

	clean.Tasks[0] = "changed"
	assert.Equal(t, "t1", u.Tasks[0])

	var nilUser *User
	assert.Nil(t, nilUser.Sanitized())
}
