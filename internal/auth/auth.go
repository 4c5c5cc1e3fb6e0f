// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth is the login gate: it maps a user name and password to the
// user id sent with every request.
//
// This is not an authentication scheme. The backend trusts the user id
// header; the gate only keeps a shared terminal from opening someone else's
// history by accident.
package auth

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown user, a wrong password,
// or an empty user name.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Verifier checks credentials against bcrypt hashes keyed by user name.
type Verifier struct {
	users map[string]string
}

// NewVerifier creates a verifier. With no users configured every non-empty
// user name is accepted and the password is ignored.
func NewVerifier(users map[string]string) *Verifier {
	copied := make(map[string]string, len(users))
	for name, hash := range users {
		copied[name] = hash
	}
	return &Verifier{users: copied}
}

// Open reports whether the verifier accepts any user name.
func (v *Verifier) Open() bool {
	return len(v.users) == 0
}

// Verify returns the user id for valid credentials. Surrounding whitespace
// of the user name is ignored.
func (v *Verifier) Verify(user, password string) (string, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return "", ErrInvalidCredentials
	}
	if v.Open() {
		return user, nil
	}
	hash, ok := v.users[user]
	if !ok {
		// Spend the same time as a real comparison.
		bcrypt.CompareHashAndPassword(dummy(), []byte(password))
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return user, nil
}

// HashPassword returns a bcrypt hash suitable for the [auth.users] table.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(hash), nil
}

var (
	dummyOnce sync.Once
	dummyHash []byte
)

func dummy() []byte {
	dummyOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("witness-lens"), bcrypt.DefaultCost)
	})
	return dummyHash
}
