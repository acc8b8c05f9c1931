package baileys_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/whatsapp-gateway/internal/baileys"
)

func newTestDownloader(client *stubHTTPClient) *baileys.Downloader {
	return baileys.NewDownloader(testGatewayConfig(), zerolog.Nop(), baileys.WithDownloaderHTTPClient(client))
}

func TestDownloadGatewayRelativeURL(t *testing.T) {
	client := &stubHTTPClient{body: "file-bytes"}
	d := newTestDownloader(client)

	data := d.Download(context.Background(), "/media/abc123")
	if string(data) != "file-bytes" {
		t.Fatalf("expected downloaded bytes, got %q", data)
	}

	req := client.requests[0]
	if req.url != "http://baileys-api:3025/media/abc123" {
		t.Fatalf("expected gateway-resolved url, got %s", req.url)
	}
	if req.header.Get("x-api-key") != "default-key" {
		t.Fatalf("expected gateway auth header, got %s", req.header.Get("x-api-key"))
	}
}

func TestDownloadExternalURLWithoutGatewayHeaders(t *testing.T) {
	client := &stubHTTPClient{body: "external"}
	d := newTestDownloader(client)

	data := d.Download(context.Background(), "http://cdn.example.com/img.jpg")
	if string(data) != "external" {
		t.Fatalf("expected downloaded bytes, got %q", data)
	}
	if client.requests[0].header.Get("x-api-key") != "" {
		t.Fatalf("external download must not carry the gateway key")
	}
}

func TestDownloadFailuresYieldNil(t *testing.T) {
	d := newTestDownloader(&stubHTTPClient{err: errors.New("timeout")})
	if data := d.Download(context.Background(), "/media/abc"); data != nil {
		t.Fatalf("expected nil on transport failure, got %q", data)
	}

	d = newTestDownloader(&stubHTTPClient{status: http.StatusNotFound})
	if data := d.Download(context.Background(), "/media/abc"); data != nil {
		t.Fatalf("expected nil on error status, got %q", data)
	}

	d = newTestDownloader(&stubHTTPClient{})
	if data := d.Download(context.Background(), ""); data != nil {
		t.Fatalf("expected nil for empty url, got %q", data)
	}
}
