package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/flagbase/flagbase-go/internal/logger"
)

// SignatureHeader carries the hex HMAC-SHA256 of the webhook body.
const SignatureHeader = "X-Webhook-Signature"

const maxWebhookBody = 1 << 20

// WebhookPayload is a change notification pushed by the flag service.
type WebhookPayload struct {
	Event     string   `json:"event"`
	FlagKeys  []string `json:"flag_keys"`
	Timestamp string   `json:"timestamp"`
}

// WebhookHandler resyncs the cache when the flag service reports a change.
type WebhookHandler struct {
	backend Backend
	secret  string
	log     *logger.Logger
}

func NewWebhookHandler(backend Backend, secret string, log *logger.Logger) *WebhookHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &WebhookHandler{backend: backend, secret: secret, log: log}
}

func (h *WebhookHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(rw, "Failed to read body", http.StatusBadRequest)
		return
	}

	// Verify signature if secret is configured
	if h.secret != "" && !Verify(h.secret, r.Header.Get(SignatureHeader), body) {
		http.Error(rw, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(rw, "Invalid JSON", http.StatusBadRequest)
		return
	}

	refreshed, err := h.handleEvent(r, payload)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(rw, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"refreshed": refreshed,
	})
}

func (h *WebhookHandler) handleEvent(r *http.Request, payload WebhookPayload) (bool, error) {
	switch payload.Event {
	case "flag.updated", "flag.deleted", "flags.published":
		h.log.Info("webhook triggered refresh",
			logger.String(logger.FieldEventKind, payload.Event),
			logger.Int(logger.FieldFlagCount, len(payload.FlagKeys)),
		)
		return true, h.backend.Refresh(r.Context())
	default:
		h.log.Debug("ignoring webhook event", logger.String(logger.FieldEventKind, payload.Event))
		return false, nil
	}
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches body.
func Verify(secret, signature string, body []byte) bool {
	if signature == "" {
		return false
	}
	return hmac.Equal([]byte(signature), []byte(Sign(secret, body)))
}
