package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-auth-service/internal/model"
)

func newFakeProvider(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		if payload.Password != "secret123" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error_description": "Invalid login credentials"})
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "provider-token",
			"token_type":   "bearer",
			"expires_in":   3600,
			"user": map[string]any{
				"id":            "uuid-1",
				"email":         payload.Email,
				"user_metadata": map[string]any{"name": "A"},
				"identities":    []map[string]any{{"id": "uuid-1"}},
			},
		})
	})

	mux.HandleFunc("/auth/v1/signup", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			Email string `json:"email"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		if payload.Email == "taken@x.com" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(map[string]string{"msg": "User already registered"})
			return
		}

		// No identities yet: account awaits email confirmation.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":         "uuid-2",
			"email":      payload.Email,
			"identities": []map[string]any{},
		})
	})

	mux.HandleFunc("/auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Authorization") != "Bearer provider-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"msg": "invalid JWT"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "uuid-1",
			"email":         "a@x.com",
			"user_metadata": map[string]any{"name": "A"},
		})
	})

	mux.HandleFunc("/auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/auth/v1/recover", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server, NewClient(server.URL, "service-key")
}

func TestSignInWithPassword(t *testing.T) {
	_, client := newFakeProvider(t)

	result, err := client.SignInWithPassword(context.Background(), "a@x.com", "secret123")
	require.NoError(t, err)
	require.NotNil(t, result.Session)
	assert.Equal(t, "provider-token", result.Session.AccessToken)
	require.NotNil(t, result.User)
	assert.Equal(t, "a@x.com", result.User.Email)
}

func TestSignInRejectionCarriesProviderMessage(t *testing.T) {
	_, client := newFakeProvider(t)

	_, err := client.SignInWithPassword(context.Background(), "a@x.com", "wrong")
	require.Error(t, err)

	var providerErr *Error
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, http.StatusBadRequest, providerErr.Status)
	assert.Equal(t, "Invalid login credentials", providerErr.Message)
}

func TestSignUpPendingConfirmation(t *testing.T) {
	_, client := newFakeProvider(t)

	result, err := client.SignUp(context.Background(), "new@x.com", "secret123", "N")
	require.NoError(t, err)
	assert.True(t, result.PendingConfirmation())
	assert.Nil(t, result.Session)
}

func TestSignUpRejected(t *testing.T) {
	_, client := newFakeProvider(t)

	_, err := client.SignUp(context.Background(), "taken@x.com", "secret123", "N")

	var providerErr *Error
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, "User already registered", providerErr.Message)
}

func TestVerifyResolvesIdentityWithDefaultRole(t *testing.T) {
	_, client := newFakeProvider(t)

	identity, err := client.Verify(context.Background(), "provider-token")
	require.NoError(t, err)
	assert.Equal(t, "uuid-1", identity.ID)
	assert.Equal(t, "a@x.com", identity.Email)
	assert.Equal(t, "A", identity.Name)
	// Metadata carried no role: defaults to the standard one.
	assert.Equal(t, model.RoleUser, identity.Role)
}

func TestVerifyInvalidToken(t *testing.T) {
	_, client := newFakeProvider(t)

	_, err := client.Verify(context.Background(), "expired-token")
	assert.ErrorIs(t, err, model.ErrInvalidToken)
}

func TestSignOut(t *testing.T) {
	_, client := newFakeProvider(t)

	require.NoError(t, client.SignOut(context.Background(), "provider-token"))
}

func TestIdentityRoleFromMetadata(t *testing.T) {
	u := User{
		ID:       "uuid-9",
		Email:    "admin@x.com",
		Metadata: map[string]any{"role": model.RoleAdmin},
	}
	assert.Equal(t, model.RoleAdmin, u.Identity().Role)
}
