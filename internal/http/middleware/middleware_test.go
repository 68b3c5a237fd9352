package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/medconnect/telehealth-platform/internal/identity"
)

const testSecret = "test-secret"

func testAccount() identity.Account {
	return identity.Account{
		ID:        "pat-1",
		Email:     "pat@example.com",
		FirstName: "Pat",
		LastName:  "Smith",
		Role:      identity.RolePatient,
	}
}

func echoAccount(t *testing.T) (http.Handler, *identity.Account) {
	var captured identity.Account
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acct, ok := identity.AccountFromContext(r.Context())
		if !ok {
			t.Error("account missing from context")
		}
		captured = acct
		w.WriteHeader(http.StatusOK)
	})
	return handler, &captured
}

func TestAuth_ValidToken(t *testing.T) {
	inner, captured := echoAccount(t)
	handler := Auth(testSecret)(inner)

	token, err := IssueToken(testSecret, testAccount(), time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if captured.ID != "pat-1" || captured.Email != "pat@example.com" || captured.Role != identity.RolePatient {
		t.Fatalf("account = %+v", *captured)
	}
}

func TestAuth_Rejections(t *testing.T) {
	goodToken, _ := IssueToken(testSecret, testAccount(), time.Hour)
	wrongSecretToken, _ := IssueToken("other-secret", testAccount(), time.Hour)
	expiredToken, _ := IssueToken(testSecret, testAccount(), -time.Minute)
	noSubject := testAccount()
	noSubject.ID = ""
	noSubjectToken, _ := IssueToken(testSecret, noSubject, time.Hour)

	tests := []struct {
		name   string
		secret string
		header string
	}{
		{"missing header", testSecret, ""},
		{"not bearer", testSecret, "Basic abc"},
		{"wrong secret", testSecret, "Bearer " + wrongSecretToken},
		{"expired", testSecret, "Bearer " + expiredToken},
		{"no subject", testSecret, "Bearer " + noSubjectToken},
		{"auth disabled", "", "Bearer " + goodToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Auth(tt.secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler should not be reached")
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireRole(identity.RoleAdmin)(inner)

	req := httptest.NewRequest(http.MethodGet, "/api/admin", nil)
	req = req.WithContext(identity.WithAccount(req.Context(), testAccount()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("patient hitting admin route: status = %d, want 403", rec.Code)
	}

	admin := testAccount()
	admin.Role = identity.RoleAdmin
	req = httptest.NewRequest(http.MethodGet, "/api/admin", nil)
	req = req.WithContext(identity.WithAccount(req.Context(), admin))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin hitting admin route: status = %d, want 200", rec.Code)
	}
}

func TestCORS_AllowedOrigin(t *testing.T) {
	handler := CORS([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/doctors", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("allow-origin = %q", got)
	}
}

func TestCORS_DisallowedOriginGetsNoHeaders(t *testing.T) {
	handler := CORS([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/doctors", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("allow-origin = %q, want empty", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	handler := CORS([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight should not reach handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/doctors", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	handler := RequestLogger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}
}
