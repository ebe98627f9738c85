// Package media talks to the hosted media provider: delivery URL
// construction, eager rendering of derived assets, and asset search.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// ClientTimeout is the total request timeout.
	ClientTimeout = 30 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 10 * time.Second
	// ResponseHeaderTimeout is time to wait for response headers.
	ResponseHeaderTimeout = 15 * time.Second

	// searchMaxResults caps the public IDs returned per search.
	searchMaxResults = 100
)

var (
	// ErrUpstream indicates the media provider returned a failure.
	ErrUpstream = errors.New("media provider error")
)

// Config holds media provider connection settings.
type Config struct {
	CloudName   string
	APIKey      string
	APISecret   string
	Folder      string // all app assets live under this folder
	DeliveryURL string // override for tests; default derived from CloudName
	APIURL      string // override for tests; default derived from CloudName
}

// Client performs media provider operations.
type Client struct {
	cfg         Config
	httpClient  *http.Client
	deliveryURL string
	apiURL      string
}

// NewClient creates a media provider client.
func NewClient(cfg Config) *Client {
	deliveryURL := cfg.DeliveryURL
	if deliveryURL == "" {
		deliveryURL = fmt.Sprintf("https://res.cloudinary.com/%s", cfg.CloudName)
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = fmt.Sprintf("https://api.cloudinary.com/v1_1/%s", cfg.CloudName)
	}

	return &Client{
		cfg:         cfg,
		httpClient:  newHTTPClient(),
		deliveryURL: strings.TrimRight(deliveryURL, "/"),
		apiURL:      strings.TrimRight(apiURL, "/"),
	}
}

// newHTTPClient creates an HTTP client configured for provider calls.
// It has appropriate timeouts and does not follow redirects.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: ClientTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// searchRequest is the provider search API request body.
type searchRequest struct {
	Expression string `json:"expression"`
	MaxResults int    `json:"max_results"`
}

// searchResponse is the subset of the search API response we consume.
type searchResponse struct {
	Resources []struct {
		PublicID string `json:"public_id"`
	} `json:"resources"`
}

// Search resolves a free-text query to the public IDs of matching assets.
// The expression is scoped to the configured folder so results never leave
// the application's namespace.
func (c *Client) Search(ctx context.Context, query string) ([]string, error) {
	expression := fmt.Sprintf("folder=%s AND %s", c.cfg.Folder, query)

	body, err := json.Marshal(searchRequest{
		Expression: expression,
		MaxResults: searchMaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/resources/search", strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.APIKey, c.cfg.APISecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: search request failed: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: search returned status %d", ErrUpstream, resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %v", ErrUpstream, err)
	}

	publicIDs := make([]string, 0, len(parsed.Resources))
	for _, r := range parsed.Resources {
		publicIDs = append(publicIDs, r.PublicID)
	}

	return publicIDs, nil
}
