// Package provider is a thin client for the hosted identity service the
// delegated auth path forwards to. The provider owns credential storage,
// verification and recovery; this backend only relays calls and resolves
// bearer tokens to identities.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go-auth-service/internal/model"
)

type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

func NewClient(baseURL string, serviceKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// User is the provider's view of an account. Role lives in the
// user metadata and may be absent.
type User struct {
	ID         string         `json:"id"`
	Email      string         `json:"email"`
	Metadata   map[string]any `json:"user_metadata"`
	Identities []struct {
		ID string `json:"id"`
	} `json:"identities"`
}

// Identity normalizes the provider user into the request identity,
// defaulting the role when the metadata carries none.
func (u User) Identity() model.Identity {
	identity := model.Identity{
		ID:    u.ID,
		Email: u.Email,
		Role:  model.RoleUser,
	}
	if name, ok := u.Metadata["name"].(string); ok {
		identity.Name = name
	}
	if role, ok := u.Metadata["role"].(string); ok && role != "" {
		identity.Role = role
	}
	return identity
}

type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

type AuthResult struct {
	User    *User    `json:"user"`
	Session *Session `json:"session,omitempty"`
}

// PendingConfirmation reports the sign-up outcome where the account is
// created but inactive until the email is confirmed; the provider
// signals it by returning a user with no linked identities.
func (r AuthResult) PendingConfirmation() bool {
	return r.User != nil && len(r.User.Identities) == 0
}

// Error is a provider rejection. Status carries the provider's HTTP
// status; Message is safe to surface to clients.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider: %s (status %d)", e.Message, e.Status)
}

func (c *Client) SignUp(ctx context.Context, email string, password string, name string) (AuthResult, error) {
	payload := map[string]any{
		"email":    email,
		"password": password,
		"data": map[string]string{
			"name": name,
			"role": model.RoleUser,
		},
	}

	var result struct {
		User
		Session
	}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", "", payload, &result); err != nil {
		return AuthResult{}, err
	}

	out := AuthResult{User: &result.User}
	if result.Session.AccessToken != "" {
		out.Session = &result.Session
	}
	return out, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email string, password string) (AuthResult, error) {
	payload := map[string]string{"email": email, "password": password}

	var result struct {
		Session
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", payload, &result); err != nil {
		return AuthResult{}, err
	}

	return AuthResult{User: &result.User, Session: &result.Session}, nil
}

func (c *Client) ResetPasswordForEmail(ctx context.Context, email string, redirectTo string) error {
	path := "/auth/v1/recover"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	return c.do(ctx, http.MethodPost, path, "", map[string]string{"email": email}, nil)
}

func (c *Client) GetUser(ctx context.Context, accessToken string) (User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &user); err != nil {
		return User{}, err
	}
	if user.ID == "" {
		return User{}, &Error{Status: http.StatusUnauthorized, Message: "invalid token"}
	}
	return user, nil
}

func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil)
}

// Verify resolves a bearer token through the provider. It satisfies the
// middleware's TokenVerifier.
func (c *Client) Verify(ctx context.Context, token string) (*model.Identity, error) {
	user, err := c.GetUser(ctx, token)
	if err != nil {
		return nil, model.ErrInvalidToken
	}

	identity := user.Identity()
	return &identity, nil
}

func (c *Client) do(ctx context.Context, method string, path string, bearer string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode provider request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build provider request: %w", err)
	}

	req.Header.Set("apikey", c.serviceKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return parseError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

func parseError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var parsed struct {
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		ErrorDescription string `json:"error_description"`
	}
	_ = json.Unmarshal(data, &parsed)

	message := parsed.Message
	if message == "" {
		message = parsed.Msg
	}
	if message == "" {
		message = parsed.ErrorDescription
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	return &Error{Status: resp.StatusCode, Message: message}
}
