package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config captures all runtime configuration for the gateway adapter.
type Config struct {
	App     AppConfig
	Baileys BaileysConfig
	Webhook WebhookConfig
	Kafka   KafkaConfig
	Worker  WorkerConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	Port     int
	LogLevel string
}

// BaileysConfig holds defaults for talking to the Baileys REST gateway.
// Channel specific secrets override the default API key per request.
type BaileysConfig struct {
	BaseURL        string
	ClientName     string
	APIKey         string
	TimeoutSeconds int
}

// WebhookConfig controls the inbound webhook surface.
type WebhookConfig struct {
	// InactiveNumbers is the deny-list of disabled phone numbers. Requests
	// for these are rejected before authentication.
	InactiveNumbers []string
	// ChannelsFile points at the JSON file seeding the channel registry.
	ChannelsFile string
	MaxBodyBytes int64
}

// KafkaConfig defines the broker list and the webhook events topic.
type KafkaConfig struct {
	Brokers       []string
	EventsTopic   string
	ConsumerGroup string
}

// WorkerConfig tunes the events worker.
type WorkerConfig struct {
	Concurrency int
}

// Load reads environment variables, applies defaults, validates required
// values and returns a populated Config instance.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.Port = ldr.getInt("APP_PORT", 8080, false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)

	cfg.Baileys.BaseURL = strings.TrimRight(ldr.getString("BAILEYS_PROVIDER_DEFAULT_URL", "http://baileys-api:3025", false), "/")
	cfg.Baileys.ClientName = ldr.getString("BAILEYS_PROVIDER_DEFAULT_CLIENT_NAME", "default", false)
	cfg.Baileys.APIKey = ldr.getString("BAILEYS_PROVIDER_DEFAULT_API_KEY", "", false)
	cfg.Baileys.TimeoutSeconds = ldr.getInt("PROVIDER_TIMEOUT_SECONDS", 30, false)

	cfg.Webhook.InactiveNumbers = ldr.getStringSlice("INACTIVE_WHATSAPP_NUMBERS", false)
	cfg.Webhook.ChannelsFile = ldr.getString("WHATSAPP_CHANNELS_FILE", "", false)
	cfg.Webhook.MaxBodyBytes = int64(ldr.getInt("WEBHOOK_MAX_BODY_BYTES", 1<<20, false))

	cfg.Kafka.Brokers = ldr.getStringSlice("KAFKA_BROKERS", true)
	cfg.Kafka.EventsTopic = ldr.getString("KAFKA_WHATSAPP_EVENTS_TOPIC", "whatsapp.webhook.events", false)
	cfg.Kafka.ConsumerGroup = ldr.getString("WHATSAPP_EVENTS_CONSUMER_GROUP", "whatsapp-events-worker", false)

	cfg.Worker.Concurrency = ldr.getInt("WORKER_CONCURRENCY", 10, false)

	if err := ldr.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val != "" {
			return val
		}
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	raw := l.getString(key, "", required)
	if raw == "" {
		return def
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		l.addError(fmt.Sprintf("%s must be a valid integer", key))
		return def
	}
	return i
}

func (l *envLoader) getStringSlice(key string, required bool) []string {
	raw := l.getString(key, "", required)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if required && len(out) == 0 {
		l.addError(fmt.Sprintf("%s must contain at least one entry", key))
	}
	return out
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
