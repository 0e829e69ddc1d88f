package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/agrihub/agrihub/internal/config"
	"github.com/agrihub/agrihub/internal/logging"
	"github.com/agrihub/agrihub/internal/notification"
	"github.com/agrihub/agrihub/internal/routes"
	"github.com/agrihub/agrihub/internal/user"
)

type inbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (i *inbox) Send(_ context.Context, m notification.Message) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.codes[m.Destination] = m.Body[len(m.Body)-6:]
	return nil
}

func (i *inbox) code(t *testing.T, mobile string) string {
	t.Helper()
	i.mu.Lock()
	defer i.mu.Unlock()
	code, ok := i.codes["+91"+mobile]
	if !ok {
		t.Fatalf("no otp sent to %s", mobile)
	}
	return code
}

type harness struct {
	app   *fiber.App
	inbox *inbox
	users *user.Service
}

func testConfig() config.Config {
	return config.Config{
		AppName:        "AgriHub",
		AppEnv:         "test",
		FrontendURL:    "http://localhost:3000",
		SessionSecret:  "test-secret",
		SessionTTL:     time.Hour,
		OTPTTL:         time.Minute,
		OTPMaxAttempts: 5,
		OTPRateLimit:   "100-M",
		SMSCountryCode: "+91",
	}
}

func newHarness(t *testing.T, cache *redis.Client) harness {
	t.Helper()
	repo := user.NewMemoryRepository()
	box := &inbox{codes: make(map[string]string)}
	srv, err := New(routes.Deps{
		Cfg:      testConfig(),
		Cache:    cache,
		Logger:   logging.Discard(),
		Notifier: box,
		Users:    repo,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return harness{app: srv.App(), inbox: box, users: user.NewService(repo)}
}

func (h harness) do(t *testing.T, method, path string, body any, cookie *http.Cookie) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := h.app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (h harness) login(t *testing.T, mobile string) *http.Cookie {
	t.Helper()
	if resp, body := h.do(t, http.MethodPost, "/api/users/login", map[string]string{"mobile": mobile}, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("login: %d %v", resp.StatusCode, body)
	}
	resp, body := h.do(t, http.MethodPost, "/api/users/verify-login", map[string]string{"mobile": mobile, "otp": h.inbox.code(t, mobile)}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify-login: %d %v", resp.StatusCode, body)
	}
	for _, c := range resp.Cookies() {
		if c.Name == "connect.sid" {
			return c
		}
	}
	t.Fatalf("no session cookie")
	return nil
}

func (h harness) register(t *testing.T, mobile string) string {
	t.Helper()
	h.do(t, http.MethodPost, "/api/users/register", map[string]string{"firstName": "Ravi", "lastName": "Kumar", "mobile": mobile}, nil)
	resp, body := h.do(t, http.MethodPost, "/api/users/verify-register", map[string]string{"mobile": mobile, "otp": h.inbox.code(t, mobile)}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("verify-register: %d %v", resp.StatusCode, body)
	}
	return body["user"].(map[string]any)["_id"].(string)
}

func TestAdminCustomerManagement(t *testing.T) {
	h := newHarness(t, nil)
	admin, err := h.users.EnsureAdmin(context.Background(), user.CreateInput{FirstName: "Root", LastName: "Admin", Mobile: "9000000000"})
	if err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	customerID := h.register(t, "9876543210")

	if resp, body := h.do(t, http.MethodGet, "/api/users/customers", nil, nil); resp.StatusCode != http.StatusForbidden || body["error"] != "Unauthorized: Admin access required" {
		t.Fatalf("anonymous list: %d %v", resp.StatusCode, body)
	}
	customerCookie := h.login(t, "9876543210")
	if resp, _ := h.do(t, http.MethodGet, "/api/users/customers", nil, customerCookie); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("customer list: expected 403, got %d", resp.StatusCode)
	}

	adminCookie := h.login(t, "9000000000")
	resp, body := h.do(t, http.MethodGet, "/api/users/customers", nil, adminCookie)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin list: %d %v", resp.StatusCode, body)
	}
	customers := body["customers"].([]any)
	if len(customers) != 1 || customers[0].(map[string]any)["_id"] != customerID {
		t.Fatalf("unexpected customers %v", customers)
	}

	if resp, body := h.do(t, http.MethodDelete, "/api/users/customers/"+admin.ID, nil, adminCookie); resp.StatusCode != http.StatusForbidden || body["error"] != "Cannot delete admin users" {
		t.Fatalf("delete admin: %d %v", resp.StatusCode, body)
	}
	if resp, _ := h.do(t, http.MethodDelete, "/api/users/customers/"+customerID, nil, adminCookie); resp.StatusCode != http.StatusOK {
		t.Fatalf("delete customer: expected 200, got %d", resp.StatusCode)
	}
	if resp, body := h.do(t, http.MethodDelete, "/api/users/customers/"+customerID, nil, adminCookie); resp.StatusCode != http.StatusNotFound || body["error"] != "Customer not found" {
		t.Fatalf("delete missing: %d %v", resp.StatusCode, body)
	}
}

func TestSessionSurvivesAgainstRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	h := newHarness(t, cache)
	id := h.register(t, "9876543210")
	cookie := h.login(t, "9876543210")

	resp, body := h.do(t, http.MethodGet, "/api/users/profile", nil, cookie)
	if resp.StatusCode != http.StatusOK || body["_id"] != id || body["firstName"] != "Ravi" {
		t.Fatalf("profile: %d %v", resp.StatusCode, body)
	}

	resp, body = h.do(t, http.MethodGet, "/api/check-session", nil, cookie)
	data, ok := body["sessionData"].(map[string]any)
	if resp.StatusCode != http.StatusOK || !ok || data["user"].(map[string]any)["id"] != id {
		t.Fatalf("check-session: %d %v", resp.StatusCode, body)
	}

	mr.FastForward(2 * time.Hour)
	if resp, _ := h.do(t, http.MethodGet, "/api/users/profile", nil, cookie); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected expired session to be rejected, got %d", resp.StatusCode)
	}
}

func TestErrorEnvelope(t *testing.T) {
	h := newHarness(t, nil)

	resp, body := h.do(t, http.MethodPost, "/api/users/login", map[string]string{"mobile": "123"}, nil)
	if resp.StatusCode != http.StatusBadRequest || body["error"] != "Mobile number must be 10 digits" {
		t.Fatalf("bad mobile: %d %v", resp.StatusCode, body)
	}
	resp, body = h.do(t, http.MethodPost, "/api/users/register", map[string]string{"mobile": "123"}, nil)
	if resp.StatusCode != http.StatusBadRequest || body["error"] != "Mobile number must be 10 digits" {
		t.Fatalf("register bad mobile: %d %v", resp.StatusCode, body)
	}
	resp, body = h.do(t, http.MethodGet, "/api/users/profile", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized || body["error"] != "Unauthorized. Please log in." {
		t.Fatalf("anonymous profile: %d %v", resp.StatusCode, body)
	}
	resp, body = h.do(t, http.MethodGet, "/nope", nil, nil)
	if resp.StatusCode != http.StatusNotFound || body["error"] == nil {
		t.Fatalf("unknown route: %d %v", resp.StatusCode, body)
	}
}

func TestHealthAndCheckSession(t *testing.T) {
	h := newHarness(t, nil)

	if resp, _ := h.do(t, http.MethodGet, "/healthz", nil, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", resp.StatusCode)
	}
	resp, body := h.do(t, http.MethodGet, "/api/check-session", nil, nil)
	if resp.StatusCode != http.StatusOK || body["sessionData"] != nil {
		t.Fatalf("check-session: %d %v", resp.StatusCode, body)
	}
}

func TestUnhandledErrorIsMasked(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
	app.Get("/boom", func(c *fiber.Ctx) error { return context.DeadlineExceeded })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var body map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode != http.StatusInternalServerError || body["error"] != "Internal server error" {
		t.Fatalf("expected masked 500, got %d %v", resp.StatusCode, body)
	}
}

func TestHealthHidesBackendErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })
	h := newHarness(t, cache)

	mr.Close()
	resp, body := h.do(t, http.MethodGet, "/healthz", nil, nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	status, _ := body["status"].(map[string]any)
	if status["redis"] != "unavailable" {
		t.Fatalf("expected redis reported as unavailable, got %v", body)
	}
}
