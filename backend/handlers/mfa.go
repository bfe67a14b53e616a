package handlers

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"log/slog"
	"net/http"
	"time"

	"github.com/PhilHem/logstore/backend/database"
	"github.com/PhilHem/logstore/backend/models"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const mfaIssuer = "logstore"

// GenerateMFASecret creates a new TOTP key for the given email
func GenerateMFASecret(email string) (*otp.Key, error) {
	return totp.Generate(totp.GenerateOpts{
		Issuer:      mfaIssuer,
		AccountName: email,
	})
}

// ValidateMFACode checks if the provided code is valid for the given secret
func ValidateMFACode(secret, code string) bool {
	if secret == "" {
		return false
	}
	return totp.Validate(code, secret)
}

// generateQRCode creates a base64-encoded PNG QR code for the TOTP key
func generateQRCode(key *otp.Key) (string, error) {
	img, err := key.Image(200, 200)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

type MFASetupResponse struct {
	Secret  string `json:"secret"`
	URL     string `json:"otpauth_url"`
	QRCode  string `json:"qr_code"`
	Enabled bool   `json:"enabled"`
}

// MFASetup starts enrolment: it generates a secret, keeps it in the session
// and returns it with a QR code. MFAEnable only accepts codes for that
// secret.
func MFASetup(w http.ResponseWriter, r *http.Request) {
	user := GetCurrentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	key, err := GenerateMFASecret(user.Email)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to generate MFA secret", "source", "mfa", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate 2FA secret")
		return
	}
	qrCode, err := generateQRCode(key)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to generate QR code", "source", "mfa", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate QR code")
		return
	}

	session, _ := Store.Get(r, "session")
	session.Values["mfa_pending_secret"] = key.Secret()
	session.Save(r, w)

	writeJSON(w, http.StatusOK, MFASetupResponse{
		Secret:  key.Secret(),
		URL:     key.URL(),
		QRCode:  qrCode,
		Enabled: user.MFAEnabled,
	})
}

// MFAEnable enables 2FA for the current user after verifying the code
func MFAEnable(w http.ResponseWriter, r *http.Request) {
	user := GetCurrentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	session, _ := Store.Get(r, "session")
	secret, _ := session.Values["mfa_pending_secret"].(string)
	if secret == "" {
		writeError(w, http.StatusBadRequest, "No 2FA setup in progress")
		return
	}

	if !ValidateMFACode(secret, r.FormValue("code")) {
		slog.WarnContext(r.Context(), "MFA enable failed: invalid code", "source", "mfa", "user_id", user.ID)
		writeError(w, http.StatusBadRequest, "Invalid code. Please try again.")
		return
	}

	user.MFAEnabled = true
	user.MFASecret = secret
	if err := database.DB.Save(user).Error; err != nil {
		slog.ErrorContext(r.Context(), "failed to enable MFA", "source", "mfa", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to enable 2FA")
		return
	}

	delete(session.Values, "mfa_pending_secret")
	session.Save(r, w)

	slog.InfoContext(r.Context(), "MFA enabled", "source", "mfa", "user_id", user.ID)
	writeJSON(w, http.StatusOK, user)
}

// MFADisable disables 2FA for the current user after verifying the code
func MFADisable(w http.ResponseWriter, r *http.Request) {
	user := GetCurrentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if !ValidateMFACode(user.MFASecret, r.FormValue("code")) {
		slog.WarnContext(r.Context(), "MFA disable failed: invalid code", "source", "mfa", "user_id", user.ID)
		writeError(w, http.StatusBadRequest, "Invalid code. Please try again.")
		return
	}

	user.MFAEnabled = false
	user.MFASecret = ""
	if err := database.DB.Save(user).Error; err != nil {
		slog.ErrorContext(r.Context(), "failed to disable MFA", "source", "mfa", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to disable 2FA")
		return
	}

	slog.InfoContext(r.Context(), "MFA disabled", "source", "mfa", "user_id", user.ID)
	writeJSON(w, http.StatusOK, user)
}

// MFAVerify validates the 2FA code and completes login
func MFAVerify(w http.ResponseWriter, r *http.Request) {
	session, _ := Store.Get(r, "session")

	userID, ok := session.Values["user_id_pending_mfa"].(uint)
	if !ok {
		writeError(w, http.StatusUnauthorized, "No login pending")
		return
	}

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		writeError(w, http.StatusUnauthorized, "No login pending")
		return
	}

	if !ValidateMFACode(user.MFASecret, r.FormValue("code")) {
		slog.WarnContext(r.Context(), "MFA verification failed: invalid code", "source", "mfa", "user_id", user.ID)
		writeError(w, http.StatusUnauthorized, "Invalid code. Please try again.")
		return
	}

	session.Values["mfa_verified_at"] = time.Now().Unix()
	startSession(w, r, &user)

	slog.InfoContext(r.Context(), "MFA verification successful", "source", "mfa", "user_id", user.ID)
	writeJSON(w, http.StatusOK, user)
}
