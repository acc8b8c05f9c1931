package baileys

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/whatsapp-gateway/internal/models"
)

// NormalizerOption customises normalizer behaviour.
type NormalizerOption func(*Normalizer)

// WithClock overrides the clock used for defaulted timestamps.
func WithClock(now func() time.Time) NormalizerOption {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// WithIDGenerator overrides the generator used for fallback message ids.
func WithIDGenerator(newID func() string) NormalizerOption {
	return func(n *Normalizer) {
		if newID != nil {
			n.newID = newID
		}
	}
}

// Normalizer translates raw Baileys webhook payloads into the canonical
// contacts/messages/statuses shape the rest of the pipeline understands.
// Normalization is best effort: missing optional fields are defaulted or
// omitted, never fatal.
type Normalizer struct {
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
}

// NewNormalizer constructs a Normalizer.
func NewNormalizer(logger zerolog.Logger, opts ...NormalizerOption) *Normalizer {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	n := &Normalizer{
		logger: logger,
		now:    time.Now,
		newID:  randomHexID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n
}

// Normalize converts one raw webhook payload into the canonical event shape.
// Payloads that already carry a top-level messages collection are returned
// unchanged, so normalizing twice is a no-op.
func (n *Normalizer) Normalize(raw map[string]any) map[string]any {
	if hasValue(raw, "messages") {
		return raw
	}

	normalized := map[string]any{
		"contacts": []any{},
		"messages": []any{},
	}

	identity := childMap(raw, "key")
	content := childMap(raw, "message")
	if len(identity) > 0 && len(content) > 0 {
		n.normalizeMessage(raw, identity, content, normalized)
	}

	if hasValue(raw, "status") {
		normalized["statuses"] = []any{n.buildStatus(raw)}
	}

	return normalized
}

func (n *Normalizer) normalizeMessage(raw, identity, content, normalized map[string]any) {
	remoteJid := stringField(identity, "remoteJid")
	if remoteJid == "" {
		remoteJid = stringField(identity, "participant")
	}
	sender, _, _ := strings.Cut(remoteJid, "@")
	if sender == "" {
		// Malformed identity node: emit nothing rather than a message
		// with no sender.
		n.logger.Debug().Msg("baileys normalizer: payload has no derivable sender, skipping message")
		return
	}

	name := stringField(raw, "pushName")
	if name == "" {
		name = stringField(raw, "notifyName")
	}
	if name == "" {
		name = sender
	}
	normalized["contacts"] = []any{map[string]any{
		"profile": map[string]any{"name": name},
		"wa_id":   sender,
	}}

	id := stringField(identity, "id")
	if id == "" {
		id = n.newID()
	}
	timestamp := stringify(raw["messageTimestamp"])
	if timestamp == "" {
		timestamp = strconv.FormatInt(n.now().Unix(), 10)
	}

	messageType := classifyMessage(content)
	message := map[string]any{
		"id":        id,
		"from":      sender,
		"timestamp": timestamp,
		"type":      messageType,
	}

	switch messageType {
	case models.MessageTypeText:
		message["text"] = map[string]any{"body": textContent(content)}
	case models.MessageTypeImage, models.MessageTypeVideo, models.MessageTypeAudio, models.MessageTypeDocument:
		message[messageType] = n.mediaPayload(childMap(content, messageType+"Message"))
	case models.MessageTypeLocation:
		message["location"] = locationPayload(childMap(content, "locationMessage"))
	case models.MessageTypeContacts:
		message["contacts"] = contactCards(childMap(content, "contactsMessage"))
	}

	normalized["messages"] = []any{message}
}

func (n *Normalizer) buildStatus(raw map[string]any) map[string]any {
	timestamp := stringify(raw["timestamp"])
	if timestamp == "" {
		timestamp = strconv.FormatInt(n.now().Unix(), 10)
	}
	return map[string]any{
		"id":        stringField(raw, "messageId"),
		"status":    MapStatus(stringField(raw, "status")),
		"timestamp": timestamp,
	}
}

// classifyMessage determines the canonical message type. Order matters:
// conversation and extended text win over every media node.
func classifyMessage(content map[string]any) string {
	switch {
	case hasValue(content, "conversation") || hasValue(content, "extendedTextMessage"):
		return models.MessageTypeText
	case hasValue(content, "imageMessage"):
		return models.MessageTypeImage
	case hasValue(content, "videoMessage"):
		return models.MessageTypeVideo
	case hasValue(content, "audioMessage"):
		return models.MessageTypeAudio
	case hasValue(content, "documentMessage"):
		return models.MessageTypeDocument
	case hasValue(content, "locationMessage"):
		return models.MessageTypeLocation
	case hasValue(content, "contactsMessage"):
		return models.MessageTypeContacts
	default:
		return models.MessageTypeText
	}
}

func textContent(content map[string]any) string {
	if body := stringField(content, "conversation"); body != "" {
		return body
	}
	if hasValue(content, "extendedTextMessage") {
		return stringField(childMap(content, "extendedTextMessage"), "text")
	}
	return ""
}

func (n *Normalizer) mediaPayload(node map[string]any) map[string]any {
	id := stringField(node, "url")
	if id == "" {
		id = n.newID()
	}
	media := map[string]any{"id": id}
	if node != nil {
		if url, ok := node["url"]; ok {
			media["url"] = url
		}
		if caption, ok := node["caption"]; ok {
			media["caption"] = caption
		}
		if mime, ok := node["mimetype"]; ok {
			media["mimetype"] = mime
		}
	}
	return media
}

func locationPayload(node map[string]any) map[string]any {
	location := map[string]any{}
	if node == nil {
		return location
	}
	location["latitude"] = node["degreesLatitude"]
	location["longitude"] = node["degreesLongitude"]
	if name, ok := node["name"]; ok {
		location["name"] = name
	}
	if address, ok := node["address"]; ok {
		location["address"] = address
	}
	if url, ok := node["url"]; ok {
		location["url"] = url
	}
	return location
}

func contactCards(node map[string]any) []any {
	raw, _ := node["contacts"].([]any)
	cards := make([]any, 0, len(raw))
	for _, entry := range raw {
		contact, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		phones := []any{}
		if list, ok := contact["phones"].([]any); ok {
			for _, p := range list {
				if phone, ok := p.(map[string]any); ok {
					phones = append(phones, map[string]any{"phone": phone["phone"]})
				}
			}
		}
		cards = append(cards, map[string]any{
			"phones": phones,
			"name":   map[string]any{"formatted_name": stringField(contact, "displayName")},
		})
	}
	return cards
}

func randomHexID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
