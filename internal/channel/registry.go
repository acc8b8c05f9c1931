package channel

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/whatsapp-gateway/internal/models"
)

// Store resolves channel configuration by routing phone number. A missing
// channel is a normal outcome; callers must fail closed on it.
type Store interface {
	Resolve(phoneNumber string) (models.ChannelConfig, bool)
}

// Registry is an in-memory Store seeded from channel administration data.
// Channel writes happen outside this service, so the map is read-mostly; the
// lock only guards reload and the template sync markers.
type Registry struct {
	logger zerolog.Logger

	mu       sync.RWMutex
	channels map[string]models.ChannelConfig
	synced   map[string]time.Time
}

// NewRegistry builds a registry holding the supplied channels.
func NewRegistry(channels []models.ChannelConfig, logger zerolog.Logger) *Registry {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	r := &Registry{
		logger:   logger,
		channels: make(map[string]models.ChannelConfig, len(channels)),
		synced:   make(map[string]time.Time),
	}
	for _, ch := range channels {
		if ch.PhoneNumber == "" {
			logger.Warn().Msg("channel registry: skipping channel without phone number")
			continue
		}
		r.channels[ch.PhoneNumber] = ch
	}
	return r
}

// LoadFile reads channel configurations from a JSON file. An empty path
// yields an empty channel list, which is valid for setups that register
// channels at runtime.
func LoadFile(path string) ([]models.ChannelConfig, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("channel registry: read channels file: %w", err)
	}
	var channels []models.ChannelConfig
	if err := json.Unmarshal(data, &channels); err != nil {
		return nil, fmt.Errorf("channel registry: parse channels file: %w", err)
	}
	return channels, nil
}

// Resolve returns the channel for the supplied phone number.
func (r *Registry) Resolve(phoneNumber string) (models.ChannelConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[phoneNumber]
	return ch, ok
}

// MarkTemplatesSynced records a template sync for the channel. The gateway
// has no template concept, so this only keeps the surrounding system from
// retrying sync forever.
func (r *Registry) MarkTemplatesSynced(phoneNumber string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synced[phoneNumber] = time.Now()
}

// TemplatesSyncedAt reports when the channel's templates were last marked
// synced.
func (r *Registry) TemplatesSyncedAt(phoneNumber string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ts, ok := r.synced[phoneNumber]
	return ts, ok
}
