package models

// Provider identifies which backend a WhatsApp channel speaks.
type Provider string

// Supported channel providers.
const (
	ProviderWhatsAppCloud  Provider = "whatsapp_cloud"
	ProviderWhatsAppOnPrem Provider = "whatsapp_onprem"
	ProviderBaileys        Provider = "baileys"
)

// Provider config keys shared with the channel administration flows.
const (
	ProviderConfigAPIKey      = "api_key"
	ProviderConfigVerifyToken = "webhook_verify_token"
)

// ChannelConfig describes a single WhatsApp channel. It is owned by the
// channel registry; this service only reads it.
type ChannelConfig struct {
	PhoneNumber    string            `json:"phone_number"`
	Provider       Provider          `json:"provider"`
	ProviderConfig map[string]string `json:"provider_config,omitempty"`
}

// APIKey returns the gateway API key configured for the channel, if any.
func (c ChannelConfig) APIKey() string {
	return c.ProviderConfig[ProviderConfigAPIKey]
}

// VerifyToken returns the webhook verify token configured for the channel.
func (c ChannelConfig) VerifyToken() string {
	return c.ProviderConfig[ProviderConfigVerifyToken]
}
