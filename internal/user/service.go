package user

import (
	"context"
	"errors"
	"time"
)

// ErrAdminProtected is returned when an admin account is targeted by a
// customer-only operation.
var ErrAdminProtected = errors.New("cannot delete admin users")

// Service manages user accounts.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new user service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// CreateInput captures data required to create a customer account.
type CreateInput struct {
	FirstName string
	LastName  string
	Mobile    string
}

// CreateCustomer stores a new non-admin user.
func (s *Service) CreateCustomer(ctx context.Context, input CreateInput) (User, error) {
	now := s.now()
	return s.repo.Create(ctx, User{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Mobile:    input.Mobile,
		IsAdmin:   false,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// Get retrieves a user by ID.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// FindByMobile retrieves a user by mobile number.
func (s *Service) FindByMobile(ctx context.Context, mobile string) (User, error) {
	return s.repo.FindByMobile(ctx, mobile)
}

// ListCustomers returns every non-admin user.
func (s *Service) ListCustomers(ctx context.Context) ([]User, error) {
	return s.repo.ListByAdmin(ctx, false)
}

// DeleteCustomer removes a non-admin user. Admin accounts are refused.
func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	target, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if target.IsAdmin {
		return ErrAdminProtected
	}
	return s.repo.Delete(ctx, id)
}

// EnsureAdmin grants admin rights to the user owning mobile, creating the
// account first when it does not exist.
func (s *Service) EnsureAdmin(ctx context.Context, input CreateInput) (User, error) {
	existing, err := s.repo.FindByMobile(ctx, input.Mobile)
	switch {
	case err == nil:
		if existing.IsAdmin {
			return existing, nil
		}
		if err := s.repo.SetAdmin(ctx, existing.ID, true); err != nil {
			return User{}, err
		}
		existing.IsAdmin = true
		return existing, nil
	case errors.Is(err, ErrNotFound):
		now := s.now()
		return s.repo.Create(ctx, User{
			FirstName: input.FirstName,
			LastName:  input.LastName,
			Mobile:    input.Mobile,
			IsAdmin:   true,
			CreatedAt: now,
			UpdatedAt: now,
		})
	default:
		return User{}, err
	}
}
