package user

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")

	// ErrMobileTaken is returned when a user with the same mobile already exists.
	ErrMobileTaken = errors.New("mobile number already registered")
)

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user User) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	FindByMobile(ctx context.Context, mobile string) (User, error)
	ListByAdmin(ctx context.Context, isAdmin bool) ([]User, error)
	SetAdmin(ctx context.Context, id string, isAdmin bool) error
	Delete(ctx context.Context, id string) error
}
