// Package otp issues and stores one-time passwords used to prove possession
// of a mobile number.
package otp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	codeMin   = 100000
	codeRange = 900000
)

// ErrNotFound is returned when no live challenge exists for a mobile number.
var ErrNotFound = errors.New("otp challenge not found")

// Purpose distinguishes what a verified challenge unlocks.
type Purpose string

const (
	PurposeRegister Purpose = "register"
	PurposeLogin    Purpose = "login"
)

// Registration is the profile captured at registration time and applied once
// the code is verified.
type Registration struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Challenge is a pending verification for a single mobile number.
type Challenge struct {
	Mobile       string        `json:"mobile"`
	Purpose      Purpose       `json:"purpose"`
	CodeHash     []byte        `json:"code_hash"`
	Registration *Registration `json:"registration,omitempty"`
	UserID       string        `json:"user_id,omitempty"`
	Attempts     int           `json:"attempts"`
	CreatedAt    time.Time     `json:"created_at"`
	ExpiresAt    time.Time     `json:"expires_at"`
}

// Expired reports whether the challenge is past its expiry at now.
func (c Challenge) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// Generate returns a 6-digit numeric code in the range 100000..999999.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

// Hash returns the bcrypt hash stored in place of the plain code.
func Hash(code string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
}

// Matches reports whether code hashes to hash.
func Matches(hash []byte, code string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(code)) == nil
}
