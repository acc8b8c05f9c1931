package baileys_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/whatsapp-gateway/internal/baileys"
	"github.com/example/whatsapp-gateway/internal/config"
	"github.com/example/whatsapp-gateway/internal/models"
)

type recordedRequest struct {
	method string
	url    string
	header http.Header
	body   map[string]any
}

type stubHTTPClient struct {
	requests []recordedRequest
	status   int
	body     string
	err      error
}

func (c *stubHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c.err != nil {
		return nil, c.err
	}

	rec := recordedRequest{method: req.Method, url: req.URL.String(), header: req.Header.Clone()}
	if req.Body != nil {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		_ = json.Unmarshal(data, &rec.body)
	}
	c.requests = append(c.requests, rec)

	status := c.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(c.body)),
		Header:     http.Header{},
	}, nil
}

func testChannel() models.ChannelConfig {
	return models.ChannelConfig{
		PhoneNumber: "+5511999999999",
		Provider:    models.ProviderBaileys,
		ProviderConfig: map[string]string{
			models.ProviderConfigAPIKey: "channel-key",
		},
	}
}

func testGatewayConfig() config.BaileysConfig {
	return config.BaileysConfig{
		BaseURL:    "http://baileys-api:3025",
		ClientName: "support",
		APIKey:     "default-key",
	}
}

type stubMarker struct {
	synced []string
}

func (m *stubMarker) MarkTemplatesSynced(phoneNumber string) {
	m.synced = append(m.synced, phoneNumber)
}

func newTestService(t *testing.T, client *stubHTTPClient, marker baileys.TemplateMarker) *baileys.Service {
	t.Helper()
	svc, err := baileys.NewService(testChannel(), testGatewayConfig(), marker, zerolog.Nop(), baileys.WithHTTPClient(client))
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return svc
}

func TestSendTextMessage(t *testing.T) {
	client := &stubHTTPClient{}
	svc := newTestService(t, client, nil)

	result, err := svc.SendMessage(context.Background(), "+5511988887777", &models.OutgoingMessage{Content: "hello"})
	if err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}

	if len(client.requests) != 1 {
		t.Fatalf("expected one request, got %d", len(client.requests))
	}
	req := client.requests[0]
	if req.url != "http://baileys-api:3025/message/text" {
		t.Fatalf("unexpected url %s", req.url)
	}
	if req.header.Get("Content-Type") != "application/json" {
		t.Fatalf("expected json content type, got %s", req.header.Get("Content-Type"))
	}
	if req.header.Get("x-api-key") != "channel-key" {
		t.Fatalf("expected channel api key, got %s", req.header.Get("x-api-key"))
	}
	if req.body["number"] != "5511988887777" {
		t.Fatalf("expected leading + stripped, got %v", req.body["number"])
	}
	if req.body["message"] != "hello" || req.body["client"] != "support" {
		t.Fatalf("unexpected body %v", req.body)
	}
}

func TestSendAttachmentWinsOverInputSelect(t *testing.T) {
	client := &stubHTTPClient{}
	svc := newTestService(t, client, nil)

	msg := &models.OutgoingMessage{
		Content:     "see attached",
		ContentType: models.ContentTypeInputSelect,
		ContentAttributes: models.ContentAttributes{
			Items: []models.SelectItem{{Title: "Yes", Value: "yes"}},
		},
		Attachments: []models.Attachment{
			{DownloadURL: "http://cdn/file.pdf", FileType: "document"},
			{DownloadURL: "http://cdn/other.pdf", FileType: "document"},
		},
	}

	if _, err := svc.SendMessage(context.Background(), "5511988887777", msg); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}

	req := client.requests[0]
	if req.url != "http://baileys-api:3025/message/media" {
		t.Fatalf("expected media endpoint, got %s", req.url)
	}
	if req.body["caption"] != "see attached" {
		t.Fatalf("expected content as caption, got %v", req.body["caption"])
	}
	if req.body["media_url"] != "http://cdn/file.pdf" || req.body["type"] != "document" {
		t.Fatalf("expected first attachment only, got %v", req.body)
	}
}

func TestSendInteractiveTruncatesButtons(t *testing.T) {
	client := &stubHTTPClient{}
	svc := newTestService(t, client, nil)

	msg := &models.OutgoingMessage{
		Content:     "pick one",
		ContentType: models.ContentTypeInputSelect,
		ContentAttributes: models.ContentAttributes{
			Items: []models.SelectItem{
				{Title: "One", Value: "1"},
				{Title: "Two", Value: "2"},
				{Title: "Three", Value: "3"},
				{Title: "Four", Value: "4"},
				{Title: "Five", Value: "5"},
			},
		},
	}

	if _, err := svc.SendMessage(context.Background(), "5511988887777", msg); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}

	req := client.requests[0]
	if req.url != "http://baileys-api:3025/message/buttons" {
		t.Fatalf("expected buttons endpoint, got %s", req.url)
	}
	buttons, _ := req.body["buttons"].([]any)
	if len(buttons) != 3 {
		t.Fatalf("expected exactly 3 buttons, got %d", len(buttons))
	}
	for i, want := range []string{"One", "Two", "Three"} {
		b, _ := buttons[i].(map[string]any)
		if b["buttonText"] != want {
			t.Fatalf("expected button %d text %s, got %v", i, want, b["buttonText"])
		}
	}
	first, _ := buttons[0].(map[string]any)
	if first["buttonId"] != "1" {
		t.Fatalf("expected button id from item value, got %v", first["buttonId"])
	}
}

func TestSendTemplateDowngradesToText(t *testing.T) {
	client := &stubHTTPClient{}
	svc := newTestService(t, client, nil)

	if _, err := svc.SendTemplate(context.Background(), "5511988887777", models.TemplateInfo{Name: "greeting", Content: "hello there"}); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if client.requests[0].url != "http://baileys-api:3025/message/text" {
		t.Fatalf("expected text endpoint, got %s", client.requests[0].url)
	}
	if client.requests[0].body["message"] != "hello there" {
		t.Fatalf("expected template content, got %v", client.requests[0].body["message"])
	}

	if _, err := svc.SendTemplate(context.Background(), "5511988887777", models.TemplateInfo{Name: "greeting"}); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if client.requests[1].body["message"] != "greeting" {
		t.Fatalf("expected template name fallback, got %v", client.requests[1].body["message"])
	}
}

func TestSendExtractsGatewayError(t *testing.T) {
	client := &stubHTTPClient{status: http.StatusBadRequest, body: `{"error":"number not on whatsapp"}`}
	svc := newTestService(t, client, nil)

	result, err := svc.SendMessage(context.Background(), "5511988887777", &models.OutgoingMessage{Content: "hi"})
	if err != nil {
		t.Fatalf("gateway rejection should not be a transport error: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure result")
	}
	if result.Error != "number not on whatsapp" {
		t.Fatalf("expected error field extracted, got %q", result.Error)
	}
}

func TestSendFallsBackToMessageField(t *testing.T) {
	client := &stubHTTPClient{status: http.StatusInternalServerError, body: `{"message":"session closed"}`}
	svc := newTestService(t, client, nil)

	result, _ := svc.SendMessage(context.Background(), "5511988887777", &models.OutgoingMessage{Content: "hi"})
	if result.Error != "session closed" {
		t.Fatalf("expected message field fallback, got %q", result.Error)
	}
}

func TestSendTransportFailure(t *testing.T) {
	client := &stubHTTPClient{err: errors.New("connection refused")}
	svc := newTestService(t, client, nil)

	result, err := svc.SendMessage(context.Background(), "5511988887777", &models.OutgoingMessage{Content: "hi"})
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if result == nil || result.Success {
		t.Fatalf("expected failed dispatch result, got %+v", result)
	}
}

func TestSyncTemplatesMarksChannel(t *testing.T) {
	marker := &stubMarker{}
	svc := newTestService(t, &stubHTTPClient{}, marker)

	if err := svc.SyncTemplates(context.Background()); err != nil {
		t.Fatalf("unexpected sync error: %v", err)
	}
	if len(marker.synced) != 1 || marker.synced[0] != "+5511999999999" {
		t.Fatalf("expected channel marked synced, got %v", marker.synced)
	}
}

func TestValidateConfig(t *testing.T) {
	client := &stubHTTPClient{}
	svc := newTestService(t, client, nil)

	if !svc.ValidateConfig(context.Background()) {
		t.Fatalf("expected reachable gateway to validate")
	}
	req := client.requests[0]
	if req.method != http.MethodGet || req.url != "http://baileys-api:3025/status" {
		t.Fatalf("unexpected probe request %s %s", req.method, req.url)
	}

	down := &stubHTTPClient{err: errors.New("no route to host")}
	svc = newTestService(t, down, nil)
	if svc.ValidateConfig(context.Background()) {
		t.Fatalf("expected transport fault to mean not validated")
	}
}

func TestMediaURL(t *testing.T) {
	svc := newTestService(t, &stubHTTPClient{}, nil)
	if got := svc.MediaURL("abc123"); got != "http://baileys-api:3025/media/abc123" {
		t.Fatalf("unexpected media url %s", got)
	}
}

func TestDefaultAPIKeyUsedWhenChannelHasNone(t *testing.T) {
	client := &stubHTTPClient{}
	ch := testChannel()
	ch.ProviderConfig = nil
	svc, err := baileys.NewService(ch, testGatewayConfig(), nil, zerolog.Nop(), baileys.WithHTTPClient(client))
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	if _, err := svc.SendMessage(context.Background(), "5511988887777", &models.OutgoingMessage{Content: "hi"}); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if client.requests[0].header.Get("x-api-key") != "default-key" {
		t.Fatalf("expected default api key, got %s", client.requests[0].header.Get("x-api-key"))
	}
}
