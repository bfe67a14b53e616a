package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/PhilHem/logstore/backend/config"
	"github.com/PhilHem/logstore/backend/database"
	"github.com/PhilHem/logstore/backend/models"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"
)

const minSecretLength = 32

// Store starts with a random key so nothing is signed with a guessable
// secret before InitSession runs.
var Store = sessions.NewCookieStore(securecookie.GenerateRandomKey(32))

// InitSession configures the session store with secret and timeout from config
func InitSession() error {
	if config.C.Session.Secret == "" {
		return errors.New("session secret is not configured (set SESSION_SECRET)")
	}
	if len(config.C.Session.Secret) < minSecretLength {
		return errors.New("session secret must be at least 32 characters")
	}

	Store = sessions.NewCookieStore([]byte(config.C.Session.Secret))
	Store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(config.C.Session.Timeout.Seconds()),
		HttpOnly: true,
		Secure:   config.C.TLS.Enabled,
		SameSite: http.SameSiteLaxMode,
	}
	return nil
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidatePassword requires 8+ characters with an uppercase letter, a number
// and a special character.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	var upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	if !upper {
		return errors.New("password must contain an uppercase letter")
	}
	if !digit {
		return errors.New("password must contain a number")
	}
	if !special {
		return errors.New("password must contain a special character")
	}
	return nil
}

// IsRegistrationAllowed reports whether the first admin account can still be
// created. Registration closes once any user exists.
func IsRegistrationAllowed() bool {
	var count int64
	if err := database.DB.Model(&models.User{}).Count(&count).Error; err != nil {
		return false
	}
	return count == 0
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func startSession(w http.ResponseWriter, r *http.Request, user *models.User) {
	session, _ := Store.Get(r, "session")
	delete(session.Values, "user_id_pending_mfa")
	session.Values["user_id"] = user.ID
	session.Values["email"] = user.Email
	session.Values["auth_method"] = "local"
	session.Save(r, w)
}

func Login(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	var user models.User
	if err := database.DB.Where("email = ?", email).First(&user).Error; err != nil {
		slog.WarnContext(r.Context(), "login failed: user not found", "source", "auth", "email", email)
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		slog.WarnContext(r.Context(), "login failed: invalid password", "source", "auth", "email", email)
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	if user.MFAEnabled {
		// Password is correct, the session stays unauthenticated until
		// MFAVerify accepts a code.
		session, _ := Store.Get(r, "session")
		session.Values = map[interface{}]interface{}{"user_id_pending_mfa": user.ID}
		session.Save(r, w)
		slog.InfoContext(r.Context(), "login pending MFA", "source", "auth", "user_id", user.ID)
		writeJSON(w, http.StatusOK, map[string]bool{"mfa_required": true})
		return
	}

	startSession(w, r, &user)
	slog.InfoContext(r.Context(), "user logged in", "source", "auth", "user_id", user.ID, "email", email)

	writeJSON(w, http.StatusOK, user)
}

func Register(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	if !IsRegistrationAllowed() {
		slog.WarnContext(r.Context(), "registration failed: closed", "source", "auth", "email", email)
		writeError(w, http.StatusForbidden, "Registration is closed")
		return
	}
	if !ValidateEmail(email) {
		writeError(w, http.StatusBadRequest, "Invalid email address")
		return
	}
	if err := ValidatePassword(password); err != nil {
		slog.WarnContext(r.Context(), "registration failed: weak password", "source", "auth", "email", email)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		slog.ErrorContext(r.Context(), "registration failed: hash error", "source", "auth", "error", err)
		writeError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}

	user := models.User{Email: email, Password: string(hashed)}
	if err := database.DB.Create(&user).Error; err != nil {
		slog.ErrorContext(r.Context(), "registration failed: db error", "source", "auth", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	slog.InfoContext(r.Context(), "user registered", "source", "auth", "user_id", user.ID, "email", email)

	startSession(w, r, &user)
	writeJSON(w, http.StatusCreated, user)
}

func Logout(w http.ResponseWriter, r *http.Request) {
	session, _ := Store.Get(r, "session")
	userID, _ := session.Values["user_id"].(uint)
	slog.InfoContext(r.Context(), "user logged out", "source", "auth", "user_id", userID)

	session.Values = make(map[interface{}]interface{})
	session.Options.MaxAge = -1
	session.Save(r, w)

	w.WriteHeader(http.StatusNoContent)
}

// CurrentUserID returns the ID of the logged-in user, or 0 for anonymous
// requests. It reads only the session cookie.
func CurrentUserID(r *http.Request) uint {
	session, err := Store.Get(r, "session")
	if err != nil {
		return 0
	}
	userID, _ := session.Values["user_id"].(uint)
	return userID
}

// GetCurrentUser is a variable to allow mocking in tests
var GetCurrentUser = func(r *http.Request) *models.User {
	userID := CurrentUserID(r)
	if userID == 0 {
		return nil
	}
	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		return nil
	}
	return &user
}
