package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agrihub/agrihub/internal/notification"
	"github.com/agrihub/agrihub/internal/otp"
	"github.com/agrihub/agrihub/internal/user"
	"github.com/agrihub/agrihub/internal/validation"
)

var (
	ErrInvalidMobile     = errors.New("mobile number must be 10 digits")
	ErrAlreadyRegistered = errors.New("mobile number already registered")
	ErrNotRegistered     = errors.New("mobile number not registered")
	ErrInvalidOTP        = errors.New("invalid otp")
	ErrOTPExpired        = errors.New("otp expired")
	ErrTooManyAttempts   = errors.New("too many otp attempts")
	ErrUserNotFound      = errors.New("user not found")
)

// Config tunes the OTP flow.
type Config struct {
	OTPTTL      time.Duration
	MaxAttempts int
	CountryCode string
}

// Service runs the OTP challenge/response flow for registration and login.
type Service struct {
	users    *user.Service
	otps     otp.Store
	notifier notification.Notifier
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
	generate func() (string, error)
}

// NewService builds the auth service.
func NewService(users *user.Service, otps otp.Store, notifier notification.Notifier, logger *slog.Logger, cfg Config) *Service {
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = 5 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Service{
		users:    users,
		otps:     otps,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		generate: otp.Generate,
	}
}

// RegistrationInput captures the profile submitted with a registration request.
type RegistrationInput struct {
	FirstName string
	LastName  string
	Mobile    string
}

// RequestRegistration issues a registration OTP for an unregistered mobile.
func (s *Service) RequestRegistration(ctx context.Context, input RegistrationInput) error {
	if !validation.ValidMobile(input.Mobile) {
		return ErrInvalidMobile
	}
	if _, err := s.users.FindByMobile(ctx, input.Mobile); err == nil {
		return ErrAlreadyRegistered
	} else if !errors.Is(err, user.ErrNotFound) {
		return err
	}
	return s.issue(ctx, otp.Challenge{
		Mobile:       input.Mobile,
		Purpose:      otp.PurposeRegister,
		Registration: &otp.Registration{FirstName: input.FirstName, LastName: input.LastName},
	})
}

// VerifyRegistration checks the code and, on success, creates the user.
func (s *Service) VerifyRegistration(ctx context.Context, mobile, code string) (user.User, error) {
	challenge, err := s.verify(ctx, mobile, code, otp.PurposeRegister)
	if err != nil {
		return user.User{}, err
	}
	input := user.CreateInput{Mobile: mobile}
	if challenge.Registration != nil {
		input.FirstName = challenge.Registration.FirstName
		input.LastName = challenge.Registration.LastName
	}
	created, err := s.users.CreateCustomer(ctx, input)
	if err != nil {
		if errors.Is(err, user.ErrMobileTaken) {
			return user.User{}, ErrAlreadyRegistered
		}
		return user.User{}, err
	}
	s.logger.Info("user registered", "user_id", created.ID, "mobile", created.Mobile)
	return created, nil
}

// RequestLogin issues a login OTP for a registered mobile.
func (s *Service) RequestLogin(ctx context.Context, mobile string) error {
	if !validation.ValidMobile(mobile) {
		return ErrInvalidMobile
	}
	existing, err := s.users.FindByMobile(ctx, mobile)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrNotRegistered
		}
		return err
	}
	return s.issue(ctx, otp.Challenge{
		Mobile:  mobile,
		Purpose: otp.PurposeLogin,
		UserID:  existing.ID,
	})
}

// VerifyLogin checks the code and returns the user the challenge was issued for.
func (s *Service) VerifyLogin(ctx context.Context, mobile, code string) (user.User, error) {
	challenge, err := s.verify(ctx, mobile, code, otp.PurposeLogin)
	if err != nil {
		return user.User{}, err
	}
	u, err := s.users.Get(ctx, challenge.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, ErrUserNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (s *Service) issue(ctx context.Context, challenge otp.Challenge) error {
	code, err := s.generate()
	if err != nil {
		return err
	}
	hash, err := otp.Hash(code)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}
	now := s.now()
	challenge.CodeHash = hash
	challenge.CreatedAt = now
	challenge.ExpiresAt = now.Add(s.cfg.OTPTTL)
	if err := s.otps.Put(ctx, challenge); err != nil {
		return err
	}
	s.deliver(ctx, challenge.Mobile, code)
	return nil
}

// deliver sends the code by SMS. Delivery failures are logged with the code
// so an operator can relay it; the request itself still succeeds.
func (s *Service) deliver(ctx context.Context, mobile, code string) {
	dest := notification.E164(mobile, s.cfg.CountryCode)
	err := s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindOTP,
		Destination: dest,
		Body:        "Your AgriHub OTP is " + code,
	})
	if err != nil {
		s.logger.Warn("otp delivery failed, fallback otp logged", "mobile", mobile, "otp", code, "error", err)
		return
	}
	s.logger.Debug("otp delivered", "destination", dest)
}

// verify validates code against the live challenge for mobile and claims it.
// Only one caller can claim a given challenge.
func (s *Service) verify(ctx context.Context, mobile, code string, purpose otp.Purpose) (otp.Challenge, error) {
	challenge, err := s.otps.Get(ctx, mobile)
	if err != nil {
		if errors.Is(err, otp.ErrNotFound) {
			return otp.Challenge{}, ErrInvalidOTP
		}
		return otp.Challenge{}, err
	}
	if challenge.Purpose != purpose {
		return otp.Challenge{}, ErrInvalidOTP
	}
	if challenge.Expired(s.now()) {
		_, _ = s.otps.Delete(ctx, mobile)
		return otp.Challenge{}, ErrOTPExpired
	}
	if challenge.Attempts >= s.cfg.MaxAttempts {
		_, _ = s.otps.Delete(ctx, mobile)
		return otp.Challenge{}, ErrTooManyAttempts
	}

	if !otp.Matches(challenge.CodeHash, code) {
		attempts, err := s.otps.IncrementAttempts(ctx, mobile)
		if err != nil && !errors.Is(err, otp.ErrNotFound) {
			return otp.Challenge{}, err
		}
		if attempts >= s.cfg.MaxAttempts {
			_, _ = s.otps.Delete(ctx, mobile)
			s.logger.Warn("otp attempts exhausted", "mobile", mobile, "purpose", string(purpose))
			return otp.Challenge{}, ErrTooManyAttempts
		}
		return otp.Challenge{}, ErrInvalidOTP
	}

	claimed, err := s.otps.Delete(ctx, mobile)
	if err != nil {
		return otp.Challenge{}, err
	}
	if !claimed {
		return otp.Challenge{}, ErrInvalidOTP
	}
	return challenge, nil
}
