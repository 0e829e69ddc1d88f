package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/agrihub/agrihub/internal/logging"
	"github.com/agrihub/agrihub/internal/notification"
	"github.com/agrihub/agrihub/internal/otp"
	"github.com/agrihub/agrihub/internal/user"
)

type captureNotifier struct {
	mu   sync.Mutex
	sent []notification.Message
	err  error
}

func (n *captureNotifier) Send(_ context.Context, message notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, message)
	return n.err
}

func (n *captureNotifier) lastCode(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		t.Fatalf("expected an otp to be sent")
	}
	body := n.sent[len(n.sent)-1].Body
	return body[len(body)-6:]
}

type fixture struct {
	svc      *Service
	users    *user.Service
	otps     *otp.MemoryStore
	notifier *captureNotifier
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	users := user.NewService(user.NewMemoryRepository())
	otps := otp.NewMemoryStore()
	notifier := &captureNotifier{}
	svc := NewService(users, otps, notifier, logging.Discard(), Config{OTPTTL: time.Minute, MaxAttempts: 3, CountryCode: "+91"})
	return fixture{svc: svc, users: users, otps: otps, notifier: notifier}
}

func wrongCode(code string) string {
	if code == "123456" {
		return "654321"
	}
	return "123456"
}

func TestRegistrationFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.RequestRegistration(ctx, RegistrationInput{FirstName: "Asha", LastName: "Rao", Mobile: "9876543210"}); err != nil {
		t.Fatalf("request registration: %v", err)
	}
	msg := f.notifier.sent[0]
	if msg.Destination != "+919876543210" || !strings.HasPrefix(msg.Body, "Your AgriHub OTP is ") {
		t.Fatalf("unexpected message %+v", msg)
	}

	created, err := f.svc.VerifyRegistration(ctx, "9876543210", f.notifier.lastCode(t))
	if err != nil {
		t.Fatalf("verify registration: %v", err)
	}
	if created.FirstName != "Asha" || created.LastName != "Rao" || created.IsAdmin {
		t.Fatalf("unexpected user %+v", created)
	}
	if f.otps.Len() != 0 {
		t.Fatalf("expected challenge to be consumed")
	}

	if err := f.svc.RequestRegistration(ctx, RegistrationInput{FirstName: "Asha", LastName: "Rao", Mobile: "9876543210"}); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestRequestRejectsMalformedMobile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, mobile := range []string{"", "12345", "98765432100", "98765abcde"} {
		if err := f.svc.RequestRegistration(ctx, RegistrationInput{FirstName: "A", LastName: "B", Mobile: mobile}); !errors.Is(err, ErrInvalidMobile) {
			t.Fatalf("register %q: expected ErrInvalidMobile, got %v", mobile, err)
		}
		if err := f.svc.RequestLogin(ctx, mobile); !errors.Is(err, ErrInvalidMobile) {
			t.Fatalf("login %q: expected ErrInvalidMobile, got %v", mobile, err)
		}
	}
	if len(f.notifier.sent) != 0 {
		t.Fatalf("expected no otp to be sent")
	}
}

func TestOTPIsSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_ = f.svc.RequestRegistration(ctx, RegistrationInput{FirstName: "A", LastName: "B", Mobile: "9876543210"})
	code := f.notifier.lastCode(t)
	if _, err := f.svc.VerifyRegistration(ctx, "9876543210", code); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if _, err := f.svc.VerifyRegistration(ctx, "9876543210", code); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected replay to fail with ErrInvalidOTP, got %v", err)
	}
}

func TestConcurrentVerifyCreatesOneUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_ = f.svc.RequestRegistration(ctx, RegistrationInput{FirstName: "A", LastName: "B", Mobile: "9876543210"})
	code := f.notifier.lastCode(t)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.VerifyRegistration(ctx, "9876543210", code); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if successes != 1 {
		t.Fatalf("expected exactly one successful verification, got %d", successes)
	}
}

func TestReissueReplacesPreviousCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	codes := []string{"111111", "222222"}
	f.svc.generate = func() (string, error) {
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}
	_ = f.svc.RequestRegistration(ctx, RegistrationInput{FirstName: "A", LastName: "B", Mobile: "9876543210"})
	_ = f.svc.RequestRegistration(ctx, RegistrationInput{FirstName: "A", LastName: "B", Mobile: "9876543210"})

	if _, err := f.svc.VerifyRegistration(ctx, "9876543210", "111111"); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected superseded code to fail, got %v", err)
	}
	if _, err := f.svc.VerifyRegistration(ctx, "9876543210", "222222"); err != nil {
		t.Fatalf("expected latest code to verify: %v", err)
	}
}

func TestLoginFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.RequestLogin(ctx, "9876543210"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
	existing, _ := f.users.CreateCustomer(ctx, user.CreateInput{FirstName: "A", LastName: "B", Mobile: "9876543210"})

	if err := f.svc.RequestLogin(ctx, "9876543210"); err != nil {
		t.Fatalf("request login: %v", err)
	}
	u, err := f.svc.VerifyLogin(ctx, "9876543210", f.notifier.lastCode(t))
	if err != nil {
		t.Fatalf("verify login: %v", err)
	}
	if u.ID != existing.ID {
		t.Fatalf("expected user %s, got %s", existing.ID, u.ID)
	}
}

func TestVerifyRejectsWrongPurpose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_ = f.svc.RequestRegistration(ctx, RegistrationInput{FirstName: "A", LastName: "B", Mobile: "9876543210"})
	code := f.notifier.lastCode(t)
	if _, err := f.svc.VerifyLogin(ctx, "9876543210", code); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected ErrInvalidOTP, got %v", err)
	}
	if _, err := f.svc.VerifyRegistration(ctx, "9876543210", code); err != nil {
		t.Fatalf("expected registration challenge to survive: %v", err)
	}
}

func TestVerifyExpiredCode(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	stores := map[string]otp.Store{
		"memory": otp.NewMemoryStore(),
		"redis":  otp.NewRedisStore(cache),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			users := user.NewService(user.NewMemoryRepository())
			notifier := &captureNotifier{}
			svc := NewService(users, store, notifier, logging.Discard(), Config{OTPTTL: 50 * time.Millisecond, MaxAttempts: 3, CountryCode: "+91"})

			if err := svc.RequestRegistration(ctx, RegistrationInput{FirstName: "A", LastName: "B", Mobile: "9876543210"}); err != nil {
				t.Fatalf("request registration: %v", err)
			}
			code := notifier.lastCode(t)
			time.Sleep(120 * time.Millisecond)

			if _, err := svc.VerifyRegistration(ctx, "9876543210", code); !errors.Is(err, ErrOTPExpired) {
				t.Fatalf("expected ErrOTPExpired, got %v", err)
			}
			if _, err := store.Get(ctx, "9876543210"); !errors.Is(err, otp.ErrNotFound) {
				t.Fatalf("expected expired challenge to be removed, got %v", err)
			}
			if _, err := users.FindByMobile(ctx, "9876543210"); !errors.Is(err, user.ErrNotFound) {
				t.Fatalf("expected no user for an expired code, got %v", err)
			}
		})
	}
}

func TestVerifyAttemptLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_ = f.svc.RequestRegistration(ctx, RegistrationInput{FirstName: "A", LastName: "B", Mobile: "9876543210"})
	code := f.notifier.lastCode(t)
	bad := wrongCode(code)

	for i := 0; i < 2; i++ {
		if _, err := f.svc.VerifyRegistration(ctx, "9876543210", bad); !errors.Is(err, ErrInvalidOTP) {
			t.Fatalf("attempt %d: expected ErrInvalidOTP, got %v", i+1, err)
		}
	}
	if _, err := f.svc.VerifyRegistration(ctx, "9876543210", bad); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}
	if _, err := f.svc.VerifyRegistration(ctx, "9876543210", code); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected exhausted challenge to be gone, got %v", err)
	}
	if _, err := f.users.FindByMobile(ctx, "9876543210"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected wrong codes to create no user, got %v", err)
	}
}

func TestDeliveryFailureStillSucceeds(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("provider down")

	if err := f.svc.RequestRegistration(context.Background(), RegistrationInput{FirstName: "A", LastName: "B", Mobile: "9876543210"}); err != nil {
		t.Fatalf("expected request to succeed despite delivery failure, got %v", err)
	}
	if f.otps.Len() != 1 {
		t.Fatalf("expected challenge to be stored")
	}
}
