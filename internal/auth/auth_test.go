package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testSecret = []byte("test-secret")

func newTestService(opts ...Option) *Service {
	return NewService(HashPassword("guest-pw"), HashPassword("admin-pw"), testSecret, opts...)
}

func TestLogin_ValidPasswords(t *testing.T) {
	s := newTestService()

	token, expires, err := s.Login("guest-pw", RoleGuest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}
	if !expires.After(time.Now()) {
		t.Fatal("expected expiry in the future")
	}

	role, err := s.Verify(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role != RoleGuest {
		t.Fatalf("expected guest role, got %s", role)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	s := newTestService()

	if _, _, err := s.Login("wrong", RoleGuest); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	// Guest password does not open the admin role.
	if _, _, err := s.Login("guest-pw", RoleAdmin); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_UnknownRole(t *testing.T) {
	s := newTestService()
	if _, _, err := s.Login("guest-pw", Role("superuser")); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestVerify_ExpiredToken(t *testing.T) {
	issued := time.Now()
	s := newTestService(WithClock(func() time.Time { return issued }))

	token, _, err := s.Login("guest-pw", RoleGuest)
	if err != nil {
		t.Fatal(err)
	}

	// Same service a day and an hour later.
	later := newTestService(WithClock(func() time.Time { return issued.Add(25 * time.Hour) }))
	if _, err := later.Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for expired session, got %v", err)
	}
}

func TestVerify_TamperedToken(t *testing.T) {
	s := newTestService()
	token, _, err := s.Login("guest-pw", RoleGuest)
	if err != nil {
		t.Fatal(err)
	}

	other := NewService(HashPassword("guest-pw"), HashPassword("admin-pw"), []byte("other-secret"))
	if _, err := other.Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestAllows(t *testing.T) {
	if !Allows(RoleAdmin, RoleGuest) {
		t.Fatal("admin should satisfy guest")
	}
	if Allows(RoleGuest, RoleAdmin) {
		t.Fatal("guest must not satisfy admin")
	}
	if !Allows(RoleGuest, RoleGuest) {
		t.Fatal("guest should satisfy guest")
	}
}

func setupAuthRouter(s *Service, required Role) *gin.Engine {
	r := gin.New()
	r.GET("/protected", s.Middleware(required), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestMiddleware_MissingToken(t *testing.T) {
	r := setupAuthRouter(newTestService(), RoleGuest)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestMiddleware_GuestTokenOnAdminRoute(t *testing.T) {
	s := newTestService()
	r := setupAuthRouter(s, RoleAdmin)

	token, _, err := s.Login("guest-pw", RoleGuest)
	if err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestMiddleware_AdminTokenOnGuestRoute(t *testing.T) {
	s := newTestService()
	r := setupAuthRouter(s, RoleGuest)

	token, _, err := s.Login("admin-pw", RoleAdmin)
	if err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
