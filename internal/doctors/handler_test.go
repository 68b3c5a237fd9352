package doctors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-chi/chi/v5"

	"github.com/medconnect/telehealth-platform/internal/identity"
	"github.com/medconnect/telehealth-platform/pkg/logging"
)

func newHandlerRouter(mock *mockDynamo) http.Handler {
	h := NewHandler(NewDirectory(mock, "users", logging.Default()), nil, logging.Default())
	r := chi.NewRouter()
	r.Get("/api/doctors", h.ListActive)
	r.Get("/api/doctors/{id}", h.Get)
	r.Put("/api/doctors/{id}", h.Update)
	r.Post("/api/doctors/apply", h.Apply)
	r.Post("/api/doctors/{id}/avatar-upload", h.AvatarUploadURL)
	return r
}

func withAccount(r *http.Request, acct identity.Account) *http.Request {
	return r.WithContext(identity.WithAccount(r.Context(), acct))
}

func TestHandler_ListActiveMarksBookable(t *testing.T) {
	bookable := activeDoctorItem(t, "doc-1")
	unbookable := activeDoctorItem(t, "doc-2")
	delete(unbookable, "calendlyUrl")

	mock := &mockDynamo{scanOutput: &dynamodb.ScanOutput{
		Items: []map[string]types.AttributeValue{bookable, unbookable},
	}}
	router := newHandlerRouter(mock)

	req := httptest.NewRequest(http.MethodGet, "/api/doctors", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Doctors []struct {
			ID       string `json:"id"`
			Bookable bool   `json:"bookable"`
		} `json:"doctors"`
		Count int `json:"count"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("count = %d, want 2", resp.Count)
	}
	for _, d := range resp.Doctors {
		switch d.ID {
		case "doc-1":
			if !d.Bookable {
				t.Error("doc-1 should be bookable")
			}
		case "doc-2":
			if d.Bookable {
				t.Error("doc-2 has no scheduling link and must not be bookable")
			}
		}
	}
}

func TestHandler_GetNotFound(t *testing.T) {
	router := newHandlerRouter(&mockDynamo{})

	req := httptest.NewRequest(http.MethodGet, "/api/doctors/missing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestHandler_UpdateForbiddenForOtherProfiles(t *testing.T) {
	router := newHandlerRouter(&mockDynamo{})

	req := withAccount(
		httptest.NewRequest(http.MethodPut, "/api/doctors/doc-2", strings.NewReader(`{"specialty":"Oncology"}`)),
		identity.Account{ID: "doc-1", Role: identity.RoleDoctor},
	)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}

func TestHandler_UpdateSelf(t *testing.T) {
	mock := &mockDynamo{}
	router := newHandlerRouter(mock)

	req := withAccount(
		httptest.NewRequest(http.MethodPut, "/api/doctors/doc-1", strings.NewReader(`{"calendlyUrl":"https://calendly.com/dr-ada"}`)),
		identity.Account{ID: "doc-1", Role: identity.RoleDoctor},
	)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", rr.Code, rr.Body.String())
	}
	if mock.updateInput == nil {
		t.Fatal("expected UpdateItem to be called")
	}
}

func TestHandler_ApplyUsesCallerAccount(t *testing.T) {
	mock := &mockDynamo{}
	router := newHandlerRouter(mock)

	req := withAccount(
		httptest.NewRequest(http.MethodPost, "/api/doctors/apply", nil),
		identity.Account{ID: "user-9", Role: identity.RolePatient},
	)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rr.Code, rr.Body.String())
	}
	key := mock.updateInput.Key["id"].(*types.AttributeValueMemberS).Value
	if key != "user-9" {
		t.Fatalf("applied for %s, want user-9", key)
	}
}

func TestHandler_AvatarUploadDisabledWithoutStore(t *testing.T) {
	router := newHandlerRouter(&mockDynamo{})

	req := withAccount(
		httptest.NewRequest(http.MethodPost, "/api/doctors/doc-1/avatar-upload", strings.NewReader(`{"contentType":"image/png"}`)),
		identity.Account{ID: "doc-1", Role: identity.RoleDoctor},
	)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}
