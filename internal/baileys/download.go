package baileys

import (
	"context"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/whatsapp-gateway/internal/config"
)

// DownloaderOption customises the attachment downloader.
type DownloaderOption func(*Downloader)

// WithDownloaderHTTPClient overrides the HTTP client used for downloads.
func WithDownloaderHTTPClient(client HTTPClient) DownloaderOption {
	return func(d *Downloader) {
		if client != nil {
			d.httpClient = client
		}
	}
}

// WithDownloadLimit caps the number of bytes read from a download.
func WithDownloadLimit(limit int64) DownloaderOption {
	return func(d *Downloader) {
		if limit > 0 {
			d.maxBytes = limit
		}
	}
}

// Downloader fetches message attachments. Gateway-relative URLs are resolved
// against the gateway base URL and authenticated with the gateway API key;
// external URLs are fetched as-is. Failures yield nil, never an error: an
// undownloadable attachment must not block message processing.
type Downloader struct {
	logger     zerolog.Logger
	baseURL    string
	apiKey     string
	httpClient HTTPClient
	maxBytes   int64
}

// NewDownloader constructs a Downloader from the gateway configuration.
func NewDownloader(cfg config.BaileysConfig, logger zerolog.Logger, opts ...DownloaderOption) *Downloader {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	d := &Downloader{
		logger:     logger,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   32 << 20,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Download fetches the attachment at rawURL and returns its bytes, or nil if
// the URL is empty or the fetch fails.
func (d *Downloader) Download(ctx context.Context, rawURL string) []byte {
	if strings.TrimSpace(rawURL) == "" {
		return nil
	}

	fullURL := rawURL
	gatewayLocal := strings.HasPrefix(rawURL, "/") || strings.Contains(rawURL, "baileys-api")
	if strings.HasPrefix(rawURL, "/") {
		fullURL = d.baseURL + rawURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		d.logger.Error().Err(err).Msg("baileys downloader: build request failed")
		return nil
	}
	if gatewayLocal {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", d.apiKey)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Error().Err(err).Str("url", fullURL).Msg("baileys downloader: download failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.logger.Error().Int("status_code", resp.StatusCode).Str("url", fullURL).Msg("baileys downloader: unexpected status")
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes))
	if err != nil {
		d.logger.Error().Err(err).Str("url", fullURL).Msg("baileys downloader: read failed")
		return nil
	}
	return data
}
