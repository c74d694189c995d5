package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	distribution "rewardpool/internal/distribution/domain"
)

const (
	defaultStatePath = "/v1/network"
	defaultTimeout   = 5 * time.Second
)

// ErrUnavailable is returned when the feed answers without a usable price.
var ErrUnavailable = errors.New("network feed: unavailable")

// Client reads the reference price and network capacity from an HTTP feed.
type Client struct {
	baseURL string
	path    string
	token   string
	client  *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithPath overrides the state endpoint path.
func WithPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.path = "/" + strings.TrimLeft(path, "/")
		}
	}
}

// WithToken sets a bearer token for the feed.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// NewClient constructs a feed client.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("network feed: empty base url")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    defaultStatePath,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type stateResponse struct {
	ReferencePrice  float64 `json:"reference_price"`
	NetworkCapacity float64 `json:"network_capacity"`
}

// Current fetches the network state.
func (c *Client) Current(ctx context.Context) (distribution.NetworkState, error) {
	var resp stateResponse
	if err := c.doJSON(ctx, http.MethodGet, c.path, &resp); err != nil {
		return distribution.NetworkState{}, err
	}
	if resp.ReferencePrice <= 0 {
		return distribution.NetworkState{}, ErrUnavailable
	}
	return distribution.NetworkState{
		ReferencePrice:  resp.ReferencePrice,
		NetworkCapacity: resp.NetworkCapacity,
		Source:          distribution.PriceSourceFeed,
	}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("network feed: http %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Fixed returns a constant state. It stands in for the feed when none is
// configured and is reported as a fallback source.
type Fixed struct {
	ReferencePrice  float64
	NetworkCapacity float64
}

// Current returns the configured values.
func (f Fixed) Current(ctx context.Context) (distribution.NetworkState, error) {
	_ = ctx
	return distribution.NetworkState{
		ReferencePrice:  f.ReferencePrice,
		NetworkCapacity: f.NetworkCapacity,
		Source:          distribution.PriceSourceFallback,
	}, nil
}
