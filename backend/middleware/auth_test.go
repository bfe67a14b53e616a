package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/PhilHem/logstore/backend/handlers"
	"github.com/PhilHem/logstore/backend/models"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// RED: Test API routes answer 401 instead of redirecting
func TestRequireLocalAuth_APIUnauthorized(t *testing.T) {
	req := httptest.NewRequest("GET", "/admin/api/logs", nil)
	rec := httptest.NewRecorder()

	RequireLocalAuth(okHandler)(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

// RED: Test pages redirect to login
func TestRequireLocalAuth_PageRedirects(t *testing.T) {
	req := httptest.NewRequest("GET", "/admin/logs", nil)
	rec := httptest.NewRecorder()

	RequireLocalAuth(okHandler)(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("Expected 303, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/admin/login" {
		t.Errorf("Expected redirect to /admin/login, got %s", loc)
	}
}

// RED: Test an authenticated local session passes through
func TestRequireLocalAuth_Allows(t *testing.T) {
	origGetUser := handlers.GetCurrentUser
	handlers.GetCurrentUser = func(r *http.Request) *models.User {
		user := &models.User{Email: "admin@example.com"}
		user.ID = 1
		return user
	}
	defer func() { handlers.GetCurrentUser = origGetUser }()

	// Build a session cookie with auth_method=local
	setReq := httptest.NewRequest("GET", "/", nil)
	setRec := httptest.NewRecorder()
	session, _ := handlers.Store.Get(setReq, "session")
	session.Values["user_id"] = uint(1)
	session.Values["auth_method"] = "local"
	if err := session.Save(setReq, setRec); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/admin/api/logs", nil)
	for _, c := range setRec.Result().Cookies() {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()

	RequireLocalAuth(okHandler)(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

// RED: Test a login waiting for its second factor is not authenticated
func TestRequireLocalAuth_PendingMFA(t *testing.T) {
	origGetUser := handlers.GetCurrentUser
	handlers.GetCurrentUser = func(r *http.Request) *models.User {
		t.Error("GetCurrentUser should not be consulted for a pending MFA session")
		return nil
	}
	defer func() { handlers.GetCurrentUser = origGetUser }()

	setReq := httptest.NewRequest("GET", "/", nil)
	setRec := httptest.NewRecorder()
	session, _ := handlers.Store.Get(setReq, "session")
	session.Values["user_id_pending_mfa"] = uint(1)
	if err := session.Save(setReq, setRec); err != nil {
		t.Fatal(err)
	}

	for path, want := range map[string]int{
		"/admin/api/logs": http.StatusUnauthorized,
		"/admin/logs":     http.StatusSeeOther,
	} {
		req := httptest.NewRequest("GET", path, nil)
		for _, c := range setRec.Result().Cookies() {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()

		RequireLocalAuth(okHandler)(rec, req)

		if rec.Code != want {
			t.Errorf("%s: expected %d, got %d", path, want, rec.Code)
		}
		if want == http.StatusSeeOther && rec.Header().Get("Location") != "/admin/login" {
			t.Errorf("Expected redirect to /admin/login, got %s", rec.Header().Get("Location"))
		}
	}
}
