package webhook

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/whatsapp-gateway/internal/channel"
	"github.com/example/whatsapp-gateway/internal/models"
)

// Rejection classifications surfaced by the authenticator.
var (
	// ErrUnauthorized covers every credential failure: unknown channel,
	// missing or mismatched key or token, absent configuration.
	ErrUnauthorized = errors.New("webhook: unauthorized")
	// ErrInactiveNumber marks a phone number on the deny-list. It is
	// checked before any credential and short-circuits authentication.
	ErrInactiveNumber = errors.New("webhook: inactive whatsapp number")
)

// credentialCheck validates the request credential against one provider's
// scheme. Implementations must fail closed when configuration is absent.
type credentialCheck interface {
	authorize(ch models.ChannelConfig, header http.Header, token string) bool
}

// apiKeyCheck authenticates Baileys gateway requests: the key arrives either
// in X-API-Key or as a Bearer value in Authorization.
type apiKeyCheck struct{}

func (apiKeyCheck) authorize(ch models.ChannelConfig, header http.Header, _ string) bool {
	supplied := header.Get("X-API-Key")
	if supplied == "" {
		supplied = strings.TrimPrefix(header.Get("Authorization"), "Bearer ")
		supplied = strings.TrimLeft(supplied, " ")
	}
	if supplied == "" {
		return false
	}
	configured := ch.APIKey()
	if configured == "" {
		return false
	}
	return supplied == configured
}

// verifyTokenCheck authenticates cloud / on-prem providers via the webhook
// verify token.
type verifyTokenCheck struct{}

func (verifyTokenCheck) authorize(ch models.ChannelConfig, _ http.Header, token string) bool {
	configured := ch.VerifyToken()
	if configured == "" {
		return false
	}
	return token == configured
}

func checkFor(provider models.Provider) credentialCheck {
	if provider == models.ProviderBaileys {
		return apiKeyCheck{}
	}
	return verifyTokenCheck{}
}

// Authenticator decides whether an inbound webhook request is authorized for
// a given phone number.
type Authenticator struct {
	store    channel.Store
	inactive map[string]struct{}
	logger   zerolog.Logger
}

// NewAuthenticator constructs an Authenticator. inactiveNumbers is the
// externally configured deny-list of disabled phone numbers.
func NewAuthenticator(store channel.Store, inactiveNumbers []string, logger zerolog.Logger) (*Authenticator, error) {
	if store == nil {
		return nil, errors.New("webhook: channel store is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	inactive := make(map[string]struct{}, len(inactiveNumbers))
	for _, number := range inactiveNumbers {
		number = strings.TrimSpace(number)
		if number != "" {
			inactive[number] = struct{}{}
		}
	}
	return &Authenticator{store: store, inactive: inactive, logger: logger}, nil
}

// Authorize validates the request for phoneNumber. It returns
// ErrInactiveNumber for deny-listed numbers, ErrUnauthorized for credential
// failures, and nil when the request may proceed. Secrets are never logged.
func (a *Authenticator) Authorize(phoneNumber string, header http.Header, token string) error {
	if _, denied := a.inactive[phoneNumber]; denied {
		a.logger.Warn().
			Str("phone_number", phoneNumber).
			Str("reason", "inactive_number").
			Msg("webhook request rejected")
		return ErrInactiveNumber
	}

	ch, ok := a.store.Resolve(phoneNumber)
	if !ok {
		a.logger.Warn().
			Str("phone_number", phoneNumber).
			Str("reason", "unknown_channel").
			Msg("webhook request rejected")
		return ErrUnauthorized
	}

	if !checkFor(ch.Provider).authorize(ch, header, token) {
		a.logger.Warn().
			Str("phone_number", phoneNumber).
			Str("provider", string(ch.Provider)).
			Str("reason", "invalid_credential").
			Msg("webhook request rejected")
		return ErrUnauthorized
	}
	return nil
}
