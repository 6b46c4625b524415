package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go-auth-service/internal/middleware"
	"go-auth-service/internal/model"
	"go-auth-service/internal/provider"
	"go-auth-service/pkg/apierror"
)

// DelegatedHandler serves the provider-backed path mounted at /api/auth.
// Credential handling is forwarded verbatim; this backend only validates
// field presence and translates provider answers into the envelope.
type DelegatedHandler struct {
	provider  *provider.Client
	clientURL string
}

func NewDelegatedHandler(client *provider.Client, clientURL string) *DelegatedHandler {
	return &DelegatedHandler{provider: client, clientURL: strings.TrimRight(clientURL, "/")}
}

func (h *DelegatedHandler) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body", ""))
		return
	}
	if payload.Email == "" || payload.Password == "" {
		writeError(w, apierror.BadRequest("please provide both email and password", ""))
		return
	}

	result, err := h.provider.SignInWithPassword(r.Context(), payload.Email, payload.Password)
	if err != nil {
		// A provider rejection on login is an authentication failure,
		// whatever status the provider used.
		var providerErr *provider.Error
		if errors.As(err, &providerErr) {
			writeError(w, &provider.Error{Status: http.StatusUnauthorized, Message: providerErr.Message})
			return
		}
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, result)
}

func (h *DelegatedHandler) Register(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body", ""))
		return
	}
	if payload.Email == "" || payload.Password == "" {
		writeError(w, apierror.BadRequest("please provide email and password", ""))
		return
	}

	result, err := h.provider.SignUp(r.Context(), payload.Email, payload.Password, payload.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	if result.PendingConfirmation() {
		writeMessage(w, http.StatusOK, "Registration successful. Please check your email to confirm your account.")
		return
	}

	writeSuccess(w, http.StatusCreated, result)
}

func (h *DelegatedHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body", ""))
		return
	}
	if payload.Email == "" {
		writeError(w, apierror.BadRequest("please provide an email address", ""))
		return
	}

	redirectTo := ""
	if h.clientURL != "" {
		redirectTo = h.clientURL + "/reset-password"
	}

	if err := h.provider.ResetPasswordForEmail(r.Context(), payload.Email, redirectTo); err != nil {
		writeError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "Password reset instructions sent to your email")
}

func (h *DelegatedHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"user": identity})
}

func (h *DelegatedHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerFromRequest(r)
	if token == "" {
		writeError(w, model.ErrNoToken)
		return
	}

	if err := h.provider.SignOut(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "Successfully logged out")
}

func bearerFromRequest(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
