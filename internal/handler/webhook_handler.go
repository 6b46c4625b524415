package handler

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"go-auth-service/internal/model"
	"go-auth-service/pkg/apierror"
)

// WebhookHandler receives provider auth-event notifications. Events are
// only logged for now; the shared-secret gate applies when configured.
type WebhookHandler struct {
	secret string
}

func NewWebhookHandler(secret string) *WebhookHandler {
	return &WebhookHandler{secret: secret}
}

func (h *WebhookHandler) AuthEvent(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	if h.secret != "" {
		got := r.Header.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			writeError(w, apierror.Unauthorized("invalid webhook secret"))
			return
		}
	}

	var event model.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body", ""))
		return
	}

	switch event.Type {
	case "user.created":
		slog.Info("provider event: user created", "user_id", event.User.ID)
	case "user.deleted":
		slog.Info("provider event: user deleted", "user_id", event.User.ID)
	default:
		slog.Info("provider event received", "type", event.Type)
	}

	writeSuccess(w, http.StatusOK, map[string]any{"received": true})
}
