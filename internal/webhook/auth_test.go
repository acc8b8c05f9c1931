package webhook_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/whatsapp-gateway/internal/channel"
	"github.com/example/whatsapp-gateway/internal/models"
	"github.com/example/whatsapp-gateway/internal/webhook"
)

func newTestAuthenticator(t *testing.T, channels []models.ChannelConfig, inactive []string) *webhook.Authenticator {
	t.Helper()
	registry := channel.NewRegistry(channels, zerolog.Nop())
	auth, err := webhook.NewAuthenticator(registry, inactive, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return auth
}

func baileysChannel(apiKey string) models.ChannelConfig {
	cfg := map[string]string{}
	if apiKey != "" {
		cfg[models.ProviderConfigAPIKey] = apiKey
	}
	return models.ChannelConfig{
		PhoneNumber:    "5511999999999",
		Provider:       models.ProviderBaileys,
		ProviderConfig: cfg,
	}
}

func cloudChannel(verifyToken string) models.ChannelConfig {
	cfg := map[string]string{}
	if verifyToken != "" {
		cfg[models.ProviderConfigVerifyToken] = verifyToken
	}
	return models.ChannelConfig{
		PhoneNumber:    "5511888888888",
		Provider:       models.ProviderWhatsAppCloud,
		ProviderConfig: cfg,
	}
}

func TestAuthorizeDeniesInactiveNumberBeforeCredentials(t *testing.T) {
	auth := newTestAuthenticator(t, []models.ChannelConfig{baileysChannel("secret")}, []string{"5511999999999"})

	header := http.Header{}
	header.Set("X-API-Key", "secret")

	err := auth.Authorize("5511999999999", header, "")
	if !errors.Is(err, webhook.ErrInactiveNumber) {
		t.Fatalf("expected ErrInactiveNumber even with valid key, got %v", err)
	}
}

func TestAuthorizeDeniesUnknownChannel(t *testing.T) {
	auth := newTestAuthenticator(t, nil, nil)

	err := auth.Authorize("5511999999999", http.Header{}, "anything")
	if !errors.Is(err, webhook.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown channel, got %v", err)
	}
}

func TestAuthorizeBaileysAPIKeyHeader(t *testing.T) {
	auth := newTestAuthenticator(t, []models.ChannelConfig{baileysChannel("secret")}, nil)

	header := http.Header{}
	header.Set("X-API-Key", "secret")
	if err := auth.Authorize("5511999999999", header, ""); err != nil {
		t.Fatalf("expected X-API-Key to authorize, got %v", err)
	}

	header = http.Header{}
	header.Set("Authorization", "Bearer secret")
	if err := auth.Authorize("5511999999999", header, ""); err != nil {
		t.Fatalf("expected bearer token to authorize, got %v", err)
	}

	header = http.Header{}
	header.Set("X-API-Key", "wrong")
	if err := auth.Authorize("5511999999999", header, ""); !errors.Is(err, webhook.ErrUnauthorized) {
		t.Fatalf("expected mismatch to deny, got %v", err)
	}

	if err := auth.Authorize("5511999999999", http.Header{}, ""); !errors.Is(err, webhook.ErrUnauthorized) {
		t.Fatalf("expected missing key to deny, got %v", err)
	}
}

func TestAuthorizeBaileysDeniesOnEmptyConfiguredKey(t *testing.T) {
	auth := newTestAuthenticator(t, []models.ChannelConfig{baileysChannel("")}, nil)

	// Even an empty supplied key must not match an absent configuration.
	header := http.Header{}
	header.Set("Authorization", "Bearer ")
	if err := auth.Authorize("5511999999999", header, ""); !errors.Is(err, webhook.ErrUnauthorized) {
		t.Fatalf("expected empty configured key to deny, got %v", err)
	}
}

func TestAuthorizeVerifyToken(t *testing.T) {
	auth := newTestAuthenticator(t, []models.ChannelConfig{cloudChannel("verify-me")}, nil)

	if err := auth.Authorize("5511888888888", http.Header{}, "verify-me"); err != nil {
		t.Fatalf("expected matching verify token to authorize, got %v", err)
	}
	if err := auth.Authorize("5511888888888", http.Header{}, "nope"); !errors.Is(err, webhook.ErrUnauthorized) {
		t.Fatalf("expected token mismatch to deny, got %v", err)
	}
}

func TestAuthorizeVerifyTokenDeniesOnAbsentConfiguration(t *testing.T) {
	auth := newTestAuthenticator(t, []models.ChannelConfig{cloudChannel("")}, nil)

	if err := auth.Authorize("5511888888888", http.Header{}, ""); !errors.Is(err, webhook.ErrUnauthorized) {
		t.Fatalf("expected absent token configuration to deny, got %v", err)
	}
}
