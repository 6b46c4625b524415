//go:build integration

package integration

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalAuthEndToEnd(t *testing.T) {
	server, _ := newTestServer(t)

	// Register.
	resp := postJSON(t, server.URL+"/accounts/register", map[string]string{
		"name":     "A",
		"email":    "a@x.com",
		"password": "secret123",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	require.True(t, body.Success)

	// Login and read own profile.
	token := loginLocal(t, server.URL, "a@x.com", "secret123")

	profileResp := doRequest(t, http.MethodGet, server.URL+"/accounts/profile", token)
	require.Equal(t, http.StatusOK, profileResp.StatusCode)

	raw, err := io.ReadAll(profileResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"name":"A"`)
	assert.NotContains(t, string(raw), "password")

	// Wrong password is an undifferentiated 401.
	badResp := postJSON(t, server.URL+"/accounts/login", map[string]string{
		"email":    "a@x.com",
		"password": "wrong",
	}, "")
	require.Equal(t, http.StatusUnauthorized, badResp.StatusCode)
	badBody := decodeBody(t, badResp)
	require.NotNil(t, badBody.Error)
	assert.Equal(t, "Invalid credentials", badBody.Error.Message)

	// Delete requires the admin role.
	delResp := doRequest(t, http.MethodDelete, server.URL+"/accounts/delete/1", token)
	assert.Equal(t, http.StatusForbidden, delResp.StatusCode)
}

func TestRegisterValidationAndConflict(t *testing.T) {
	server, store := newTestServer(t)

	missingResp := postJSON(t, server.URL+"/accounts/register", map[string]string{
		"email": "a@x.com",
	}, "")
	assert.Equal(t, http.StatusBadRequest, missingResp.StatusCode)

	okResp := postJSON(t, server.URL+"/accounts/register", map[string]string{
		"name": "A", "email": "a@x.com", "password": "secret123",
	}, "")
	require.Equal(t, http.StatusCreated, okResp.StatusCode)

	dupResp := postJSON(t, server.URL+"/accounts/register", map[string]string{
		"name": "B", "email": "A@X.com", "password": "other456",
	}, "")
	require.Equal(t, http.StatusBadRequest, dupResp.StatusCode)
	dupBody := decodeBody(t, dupResp)
	require.NotNil(t, dupBody.Error)
	assert.Equal(t, "EMAIL_IN_USE", dupBody.Error.Code)

	// The conflict never created a second record (admin seed + one user).
	users, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestAdminOnlyEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	userResp := postJSON(t, server.URL+"/accounts/register", map[string]string{
		"name": "A", "email": "a@x.com", "password": "secret123",
	}, "")
	require.Equal(t, http.StatusCreated, userResp.StatusCode)

	userToken := loginLocal(t, server.URL, "a@x.com", "secret123")
	adminToken := loginLocal(t, server.URL, "admin@x.com", "admin123")

	// Listing: admin yes, user no, anonymous 401.
	assert.Equal(t, http.StatusForbidden, doRequest(t, http.MethodGet, server.URL+"/accounts/all", userToken).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, doRequest(t, http.MethodGet, server.URL+"/accounts/all", "").StatusCode)

	listResp := doRequest(t, http.MethodGet, server.URL+"/accounts/all", adminToken)
	require.Equal(t, http.StatusOK, listResp.StatusCode)
	raw, err := io.ReadAll(listResp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "password")

	// Deletion: admin deletes the user, missing id is 404.
	assert.Equal(t, http.StatusOK, doRequest(t, http.MethodDelete, server.URL+"/accounts/delete/2", adminToken).StatusCode)
	assert.Equal(t, http.StatusNotFound, doRequest(t, http.MethodDelete, server.URL+"/accounts/delete/99", adminToken).StatusCode)
}

func TestProfileUpdate(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/accounts/register", map[string]string{
		"name": "A", "email": "a@x.com", "password": "secret123",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	token := loginLocal(t, server.URL, "a@x.com", "secret123")

	updateResp := sendJSON(t, http.MethodPut, server.URL+"/accounts/update", map[string]string{"name": "B"}, token)
	require.Equal(t, http.StatusOK, updateResp.StatusCode)

	profileResp := doRequest(t, http.MethodGet, server.URL+"/accounts/profile", token)
	raw, err := io.ReadAll(profileResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"name":"B"`)
}

func TestHealthAndMetrics(t *testing.T) {
	server, _ := newTestServer(t)

	healthResp := doRequest(t, http.MethodGet, server.URL+"/health", "")
	require.Equal(t, http.StatusOK, healthResp.StatusCode)
	raw, err := io.ReadAll(healthResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"status":"ok"`)

	metricsResp := doRequest(t, http.MethodGet, server.URL+"/metrics", "")
	require.Equal(t, http.StatusOK, metricsResp.StatusCode)
	metricsBody, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(metricsBody), "http_requests_total")
}

func TestWebhookSecretGate(t *testing.T) {
	server, _ := newTestServer(t)

	event := map[string]any{"type": "user.created", "user": map[string]string{"id": "uuid-1"}}

	noSecret := postJSON(t, server.URL+"/webhooks/auth", event, "")
	assert.Equal(t, http.StatusUnauthorized, noSecret.StatusCode)

	resp := sendJSONWithHeader(t, http.MethodPost, server.URL+"/webhooks/auth", event, "X-Webhook-Secret", "hook-secret")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
