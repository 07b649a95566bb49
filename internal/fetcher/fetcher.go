package fetcher

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aleister1102/driftwatch/internal/common"
	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/rs/zerolog"
)

// errorBodyPreview bounds how much of a non-2xx body is kept for the failure notes.
const errorBodyPreview = 1024

const reasonInvalidRequest = "invalid request"

// Fetcher reads the current snapshot of a monitored content source over HTTP.
type Fetcher struct {
	httpClient *http.Client
	retry      retryPolicy
	logger     zerolog.Logger
	cfg        config.FetchConfig
}

// New creates a Fetcher with its own transport built from cfg.
func New(cfg config.FetchConfig, logger zerolog.Logger) *Fetcher {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		DialContext: (&net.Dialer{
			Timeout: cfg.Timeout(),
		}).DialContext,
		TLSHandshakeTimeout: cfg.Timeout(),
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in via fetch_config
		},
	}

	return NewWithClient(&http.Client{Transport: transport, Timeout: cfg.Timeout()}, cfg, logger)
}

// NewWithClient creates a Fetcher around an existing client.
func NewWithClient(client *http.Client, cfg config.FetchConfig, logger zerolog.Logger) *Fetcher {
	if cfg.MaxContentSize <= 0 {
		cfg.MaxContentSize = config.DefaultFetchMaxContentSize
	}
	logger = logger.With().Str("component", "Fetcher").Logger()
	return &Fetcher{
		httpClient: client,
		retry:      newRetryPolicy(cfg, logger),
		logger:     logger,
		cfg:        cfg,
	}
}

// FetchSnapshot returns the bytes the monitor compares against its stored snapshot.
// When the monitor has a selector only the matching fragments are returned.
// Every failure is a *common.FetchError.
func (f *Fetcher) FetchSnapshot(ctx context.Context, m *models.ContentMonitor) ([]byte, error) {
	body, err := f.retry.do(ctx, m.SourceURL, func() ([]byte, int, error) {
		return f.fetch(ctx, m.SourceURL)
	})
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(m.Selector) == "" {
		return body, nil
	}
	return f.extract(m.SourceURL, m.Selector, body)
}

// fetch performs one GET. The status code is 0 when no response arrived.
func (f *Fetcher) fetch(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, common.NewFetchError(common.FetchUnreachable, url, reasonInvalidRequest, err)
	}

	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	for k, v := range f.cfg.CustomHeaders {
		req.Header.Set(k, v)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		f.logger.Debug().Err(err).Str("url", url).Msg("HTTP request failed")
		return nil, 0, common.NewFetchError(common.FetchUnreachable, url, "HTTP request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyPreview))
		f.logger.Debug().Str("url", url).Int("status_code", resp.StatusCode).Msg("Received non-2xx HTTP status")
		reason := fmt.Sprintf("status %d", resp.StatusCode)
		if len(bytes.TrimSpace(preview)) > 0 {
			reason += ": " + strings.TrimSpace(string(preview))
		}
		return nil, resp.StatusCode, common.NewFetchError(common.FetchHTTPStatus, url, reason, nil)
	}

	limit := int64(f.cfg.MaxContentSize)
	if resp.ContentLength > limit {
		return nil, resp.StatusCode, common.NewFetchError(common.FetchTooLarge, url,
			fmt.Sprintf("content too large: %d bytes (max: %d bytes)", resp.ContentLength, limit), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, resp.StatusCode, common.NewFetchError(common.FetchUnreachable, url, "failed to read response body", err)
	}
	if int64(len(body)) > limit {
		return nil, resp.StatusCode, common.NewFetchError(common.FetchTooLarge, url,
			fmt.Sprintf("content too large: more than %d bytes", limit), nil)
	}

	f.logger.Debug().Str("url", url).Int("size", len(body)).Msg("Content fetched")
	return body, resp.StatusCode, nil
}

// extract keeps the outer HTML of every node matching selector, one per line.
func (f *Fetcher) extract(url, selector string, body []byte) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, common.NewFetchError(common.FetchMalformed, url, "failed to parse HTML", err)
	}

	var parts []string
	var renderErr error
	doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		if renderErr != nil {
			return
		}
		html, err := goquery.OuterHtml(s)
		if err != nil {
			renderErr = err
			return
		}
		parts = append(parts, strings.TrimSpace(html))
	})

	if renderErr != nil {
		return nil, common.NewFetchError(common.FetchMalformed, url, "failed to render selection", renderErr)
	}
	if len(parts) == 0 {
		return nil, common.NewFetchError(common.FetchMalformed, url,
			fmt.Sprintf("selector %q matched nothing", selector), nil)
	}

	return []byte(strings.Join(parts, "\n")), nil
}
