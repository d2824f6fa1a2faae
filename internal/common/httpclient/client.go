// Package httpclient is the plain HTTP client shared by the discovery sources
// and the logo downloader.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/amankumarsingh77/directory_pipeline/config"
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad response status from %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Temporary marks rate limiting and server errors as worth retrying.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// RandomUserAgent returns one of a small pool of current desktop browser agents.
func RandomUserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}

type HttpClient struct {
	client  *http.Client
	headers http.Header
}

func NewHttpClient(cfg *config.HTTPConfig) (*HttpClient, error) {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
	}
	if cfg.ProxyEnabled {
		proxyUrl, err := url.Parse(cfg.ProxyUrl)
		if err != nil {
			return nil, fmt.Errorf("failed to load the proxy %s: %w", cfg.ProxyUrl, err)
		}
		transport.Proxy = http.ProxyURL(proxyUrl)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	headers := http.Header{
		"Accept-Language": []string{"en-US,en;q=0.5"},
	}
	return &HttpClient{
		client:  &http.Client{Transport: transport, Timeout: timeout},
		headers: headers,
	}, nil
}

// Get performs a GET with a randomized user agent. The caller closes the body.
func (h *HttpClient) Get(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, vals := range h.headers {
		for _, val := range vals {
			req.Header.Add(key, val)
		}
	}
	for key, vals := range header {
		req.Header.Del(key)
		for _, val := range vals {
			req.Header.Add(key, val)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", RandomUserAgent())
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}
	return resp, nil
}

func (h *HttpClient) GetJSON(ctx context.Context, rawURL string, header http.Header, out any) error {
	if header == nil {
		header = http.Header{}
	}
	if header.Get("Accept") == "" {
		header.Set("Accept", "application/json")
	}
	resp, err := h.Get(ctx, rawURL, header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", rawURL, err)
	}
	return nil
}

// GetBytes reads at most limit bytes of the body and returns them with the content type.
func (h *HttpClient) GetBytes(ctx context.Context, rawURL string, limit int64) ([]byte, string, error) {
	resp, err := h.Get(ctx, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read body from %s: %w", rawURL, err)
	}
	if int64(len(data)) > limit {
		return nil, "", fmt.Errorf("body from %s exceeds %d bytes", rawURL, limit)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
