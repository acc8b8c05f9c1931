package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/whatsapp-gateway/internal/models"
)

// Publisher enqueues an accepted webhook delivery for asynchronous
// processing.
type Publisher interface {
	PublishEvent(ctx context.Context, event models.WebhookEvent) error
}

// HandlerOption customises the webhook handler.
type HandlerOption func(*Handler)

// WithMaxBodyBytes caps the accepted request body size.
func WithMaxBodyBytes(limit int64) HandlerOption {
	return func(h *Handler) {
		if limit > 0 {
			h.maxBodyBytes = limit
		}
	}
}

// Handler terminates the inbound webhook endpoint. It authenticates the
// request, enqueues the raw payload and acknowledges immediately; all
// normalization happens out of band.
type Handler struct {
	auth         *Authenticator
	events       Publisher
	logger       zerolog.Logger
	now          func() time.Time
	maxBodyBytes int64
}

// NewHandler constructs a webhook Handler.
func NewHandler(auth *Authenticator, events Publisher, logger zerolog.Logger, opts ...HandlerOption) (*Handler, error) {
	if auth == nil {
		return nil, errors.New("webhook: authenticator is required")
	}
	if events == nil {
		return nil, errors.New("webhook: events publisher is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	h := &Handler{
		auth:         auth,
		events:       events,
		logger:       logger,
		now:          time.Now,
		maxBodyBytes: 1 << 20,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Register attaches the handler routes to the supplied mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/whatsapp/{phone_number}", h.ProcessPayload)
}

// ProcessPayload handles one webhook delivery.
func (h *Handler) ProcessPayload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodyBytes))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	var payload map[string]any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			// Structurally unrecoverable: not a JSON object.
			h.logger.Warn().Err(err).Msg("webhook payload is not a JSON object")
			writeJSONError(w, http.StatusBadRequest, "Invalid payload")
			return
		}
	}

	phoneNumber := r.PathValue("phone_number")
	if phoneNumber == "" {
		phoneNumber, _ = payload["phone_number"].(string)
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = payload["token"].(string)
	}

	switch err := h.auth.Authorize(phoneNumber, r.Header, token); {
	case errors.Is(err, ErrInactiveNumber):
		writeJSONError(w, http.StatusUnprocessableEntity, "Inactive WhatsApp number")
		return
	case err != nil:
		writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	event := models.WebhookEvent{
		PhoneNumber: phoneNumber,
		ReceivedAt:  h.now().UTC(),
		Payload:     payload,
	}
	if err := h.events.PublishEvent(r.Context(), event); err != nil {
		h.logger.Error().Err(err).Str("phone_number", phoneNumber).Msg("failed to enqueue webhook event")
		writeJSONError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
