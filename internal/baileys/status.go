package baileys

import (
	"strings"

	"github.com/example/whatsapp-gateway/internal/models"
)

// MapStatus translates the gateway's delivery status vocabulary into the
// canonical one. Unknown values map to sent so unfamiliar gateway versions
// never halt processing.
func MapStatus(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "delivered":
		return models.StatusDelivered
	case "read":
		return models.StatusRead
	case "failed", "error":
		return models.StatusFailed
	default:
		return models.StatusSent
	}
}
