package baileys

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/whatsapp-gateway/internal/config"
	"github.com/example/whatsapp-gateway/internal/models"
)

const maxButtons = 3

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ServiceOption customises the outbound service.
type ServiceOption func(*Service)

// WithHTTPClient overrides the HTTP client used to talk to the gateway.
func WithHTTPClient(client HTTPClient) ServiceOption {
	return func(s *Service) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithBodyLimit adjusts how many bytes are retained from gateway responses.
func WithBodyLimit(limit int64) ServiceOption {
	return func(s *Service) {
		if limit > 0 {
			s.maxBodyBytes = limit
		}
	}
}

// TemplateMarker records a completed template sync for a channel.
type TemplateMarker interface {
	MarkTemplatesSynced(phoneNumber string)
}

// Service dispatches canonical outgoing messages to the Baileys REST
// gateway for one channel. It holds no mutable state; every send is an
// independent blocking call.
type Service struct {
	logger       zerolog.Logger
	channel      models.ChannelConfig
	baseURL      string
	clientName   string
	apiKey       string
	templates    TemplateMarker
	httpClient   HTTPClient
	maxBodyBytes int64
}

// NewService constructs an outbound service for the supplied channel. The
// channel API key takes precedence over the configured default.
func NewService(ch models.ChannelConfig, cfg config.BaileysConfig, templates TemplateMarker, logger zerolog.Logger, opts ...ServiceOption) (*Service, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("baileys service: base URL is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	apiKey := ch.APIKey()
	if apiKey == "" {
		apiKey = cfg.APIKey
	}
	clientName := cfg.ClientName
	if clientName == "" {
		clientName = "default"
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &Service{
		logger:       logger,
		channel:      ch,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientName:   clientName,
		apiKey:       apiKey,
		templates:    templates,
		httpClient:   &http.Client{Timeout: timeout},
		maxBodyBytes: 16 * 1024,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

type textRequest struct {
	Number  string `json:"number"`
	Message string `json:"message"`
	Client  string `json:"client"`
}

type mediaRequest struct {
	Number   string `json:"number"`
	Caption  string `json:"caption"`
	MediaURL string `json:"media_url"`
	Type     string `json:"type"`
	Client   string `json:"client"`
}

type buttonsRequest struct {
	Number  string   `json:"number"`
	Message string   `json:"message"`
	Buttons []button `json:"buttons"`
	Client  string   `json:"client"`
}

type button struct {
	ButtonText string `json:"buttonText"`
	ButtonID   string `json:"buttonId"`
}

// SendMessage selects the request shape for the message and issues it.
// Attachments win over interactive content; anything else goes out as text.
func (s *Service) SendMessage(ctx context.Context, phoneNumber string, msg *models.OutgoingMessage) (*models.DispatchResult, error) {
	if msg == nil {
		return nil, errors.New("baileys service: outgoing message is required")
	}
	switch {
	case len(msg.Attachments) > 0:
		return s.sendAttachmentMessage(ctx, phoneNumber, msg)
	case msg.ContentType == models.ContentTypeInputSelect:
		return s.sendInteractiveMessage(ctx, phoneNumber, msg)
	default:
		return s.sendTextMessage(ctx, phoneNumber, msg.Content)
	}
}

// SendTemplate downgrades a template send to plain text. The gateway has no
// template concept; this is a deliberate capability gap, not a failure.
func (s *Service) SendTemplate(ctx context.Context, phoneNumber string, tpl models.TemplateInfo) (*models.DispatchResult, error) {
	content := tpl.Content
	if content == "" {
		content = tpl.Name
	}
	return s.sendTextMessage(ctx, phoneNumber, content)
}

// SyncTemplates marks templates as freshly synced without calling the
// gateway, so the surrounding system stops retrying sync.
func (s *Service) SyncTemplates(context.Context) error {
	if s.templates != nil {
		s.templates.MarkTemplatesSynced(s.channel.PhoneNumber)
	}
	return nil
}

// ValidateConfig probes the gateway status endpoint. Any transport fault
// means "not validated" rather than an error.
func (s *Service) ValidateConfig(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/status", nil)
	if err != nil {
		return false
	}
	s.setHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn().Err(err).Msg("baileys service: status probe failed")
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, s.maxBodyBytes))
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// MediaURL resolves a gateway media identifier to a retrievable URL.
func (s *Service) MediaURL(mediaID string) string {
	return fmt.Sprintf("%s/media/%s", s.baseURL, mediaID)
}

func (s *Service) sendTextMessage(ctx context.Context, phoneNumber, content string) (*models.DispatchResult, error) {
	return s.post(ctx, "/message/text", textRequest{
		Number:  dialableNumber(phoneNumber),
		Message: content,
		Client:  s.clientName,
	})
}

func (s *Service) sendAttachmentMessage(ctx context.Context, phoneNumber string, msg *models.OutgoingMessage) (*models.DispatchResult, error) {
	attachment := msg.Attachments[0]
	return s.post(ctx, "/message/media", mediaRequest{
		Number:   dialableNumber(phoneNumber),
		Caption:  msg.Content,
		MediaURL: attachment.DownloadURL,
		Type:     attachment.FileType,
		Client:   s.clientName,
	})
}

func (s *Service) sendInteractiveMessage(ctx context.Context, phoneNumber string, msg *models.OutgoingMessage) (*models.DispatchResult, error) {
	items := msg.ContentAttributes.Items
	if len(items) > maxButtons {
		// Gateway hard limit: excess options are dropped, not an error.
		items = items[:maxButtons]
	}
	buttons := make([]button, 0, len(items))
	for _, item := range items {
		buttons = append(buttons, button{ButtonText: item.Title, ButtonID: item.Value})
	}
	return s.post(ctx, "/message/buttons", buttonsRequest{
		Number:  dialableNumber(phoneNumber),
		Message: msg.Content,
		Buttons: buttons,
		Client:  s.clientName,
	})
}

func (s *Service) post(ctx context.Context, path string, body any) (*models.DispatchResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("baileys service: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("baileys service: new request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("baileys service: request failed")
		return &models.DispatchResult{Success: false, Error: err.Error()}, fmt.Errorf("baileys service: http do: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodyBytes))
	if err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("baileys service: read response failed")
		return &models.DispatchResult{Success: false, Error: err.Error()}, fmt.Errorf("baileys service: read body: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &models.DispatchResult{Success: true}, nil
	}

	message := errorMessage(raw)
	s.logger.Warn().
		Int("status_code", resp.StatusCode).
		Str("path", path).
		Str("error", message).
		Msg("baileys service: gateway rejected request")
	return &models.DispatchResult{Success: false, Error: message}, nil
}

func (s *Service) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.apiKey)
}

// errorMessage extracts the gateway error description: the error field wins,
// then message, else empty.
func errorMessage(body []byte) string {
	if len(bytes.TrimSpace(body)) == 0 {
		return ""
	}
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if msg, ok := parsed["error"].(string); ok && msg != "" {
		return msg
	}
	if msg, ok := parsed["message"].(string); ok && msg != "" {
		return msg
	}
	return ""
}

func dialableNumber(phoneNumber string) string {
	return strings.TrimPrefix(strings.TrimSpace(phoneNumber), "+")
}
