package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	gateway "github.com/ryuka-api/ryuka/internal"
)

const (
	// DefaultTimeout bounds a single provider call.
	DefaultTimeout = 15 * time.Second
	// DefaultUserAgent is sent to providers that reject non-browser clients.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	// maxResponseBody caps how much of a provider body is buffered.
	maxResponseBody = 16 << 20
)

var _ gateway.Provider = (*Endpoint)(nil)

// EndpointConfig describes one upstream provider endpoint.
type EndpointConfig struct {
	Name      string
	BaseURL   string        // the URL-encoded target is appended verbatim
	Timeout   time.Duration // zero means DefaultTimeout
	UserAgent string        // empty means DefaultUserAgent
	// SuccessPath is an optional gjson path into a JSON body. When the path
	// resolves to false the response counts as an upstream failure, for
	// providers that answer 200 with {"status": false}.
	SuccessPath string
}

// Endpoint is a provider reached with a single GET of <base><encoded target>.
type Endpoint struct {
	name        string
	baseURL     string
	http        *http.Client
	timeout     time.Duration
	userAgent   string
	successPath string
}

// NewEndpoint creates an Endpoint. A nil client falls back to a client on a
// default tuned transport.
func NewEndpoint(cfg EndpointConfig, client *http.Client) *Endpoint {
	if client == nil {
		client = &http.Client{Transport: NewTransport(nil)}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	name := cfg.Name
	if name == "" {
		name = hostOf(cfg.BaseURL)
	}
	return &Endpoint{
		name:        name,
		baseURL:     cfg.BaseURL,
		http:        client,
		timeout:     cfg.Timeout,
		userAgent:   cfg.UserAgent,
		successPath: cfg.SuccessPath,
	}
}

// Name returns the instance identifier.
func (e *Endpoint) Name() string { return e.name }

// URL builds the request URL for target.
func (e *Endpoint) URL(target string) string {
	return e.baseURL + EncodeTarget(target)
}

// Fetch issues the bounded-time GET for target and returns the response body.
func (e *Endpoint) Fetch(ctx context.Context, target string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.URL(target), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", e.name, err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "application/json, */*;q=0.8")

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: do request: %w", e.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, ParseAPIError(e.name, resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", e.name, err)
	}
	if EmptyPayload(body) {
		return nil, fmt.Errorf("%s: empty response body: %w", e.name, gateway.ErrProviderError)
	}

	if isJSON(resp.Header.Get("Content-Type")) && !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%s: malformed JSON body: %w", e.name, gateway.ErrProviderError)
	}
	if e.successPath != "" && gjson.ValidBytes(body) {
		if r := gjson.GetBytes(body, e.successPath); r.Exists() && r.Type == gjson.False {
			return nil, fmt.Errorf("%s: provider reported failure at %q: %w", e.name, e.successPath, gateway.ErrProviderError)
		}
	}
	return body, nil
}

// EmptyPayload reports whether body carries nothing worth returning: blank
// text or a falsy JSON scalar (null, false, 0, "").
func EmptyPayload(body []byte) bool {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return true
	}
	if !gjson.ValidBytes(body) {
		return false
	}
	r := gjson.ParseBytes(body)
	switch r.Type {
	case gjson.Null, gjson.False:
		return true
	case gjson.String:
		return r.Str == ""
	case gjson.Number:
		return r.Num == 0
	}
	return false
}

// EncodeTarget escapes target the way browsers' encodeURIComponent does for
// the characters that matter in a query value: spaces become %20, not '+'.
func EncodeTarget(target string) string {
	return strings.ReplaceAll(url.QueryEscape(target), "+", "%20")
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
