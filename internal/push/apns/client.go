package apns

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/loyaltywallet/walletsync/internal/provider/resilience"
	"github.com/loyaltywallet/walletsync/internal/push"
)

// Gateways.
const (
	ProductionURL = "https://api.push.apple.com"
	SandboxURL    = "https://api.sandbox.push.apple.com"
)

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds APNs client settings.
type Config struct {
	KeyID      string
	TeamID     string
	Key        string
	Production bool

	// BaseURL overrides the gateway chosen by Production.
	BaseURL string

	// Timeout bounds each HTTP attempt. Default: 10 seconds
	Timeout time.Duration

	// HTTPClient replaces the built-in HTTP/2 resilient client.
	HTTPClient HTTPDoer
}

// Client sends pushes to APNs. Create it once at startup and Close it on
// shutdown.
type Client struct {
	baseURL string
	tokens  *TokenSource
	http    HTTPDoer
	breaker *resilience.Client
}

// New validates credentials and creates a Client. It fails when any
// credential is missing or the key does not parse.
func New(cfg Config) (*Client, error) {
	tokens, err := NewTokenSource(cfg.KeyID, cfg.TeamID, cfg.Key)
	if err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = SandboxURL
		if cfg.Production {
			baseURL = ProductionURL
		}
	}

	c := &Client{baseURL: strings.TrimRight(baseURL, "/"), tokens: tokens, http: cfg.HTTPClient}
	if c.http == nil {
		rc := resilience.DefaultClientConfig("apns")
		rc.MaxRetries = 1
		if cfg.Timeout > 0 {
			rc.Timeout = cfg.Timeout
		}
		rc.Transport = &http2.Transport{
			ReadIdleTimeout: 30 * time.Second,
			PingTimeout:     10 * time.Second,
		}
		c.breaker = resilience.NewClient(rc)
		c.http = c.breaker
	}
	return c, nil
}

// Resilient returns the built-in resilient client, or nil when an
// HTTPClient was injected.
func (c *Client) Resilient() *resilience.Client {
	return c.breaker
}

type errorBody struct {
	Reason string `json:"reason"`
}

// Send delivers one job. Rejections are returned as *push.DeliveryError.
func (c *Client) Send(ctx context.Context, job push.Job) error {
	token, err := c.tokens.Token()
	if err != nil {
		return err
	}

	payload := job.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/3/device/"+job.PushToken, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apns-topic", job.Topic)
	req.Header.Set("apns-push-type", "background")
	req.Header.Set("apns-priority", "5")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("apns request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var body errorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	if body.Reason == "ExpiredProviderToken" {
		c.tokens.Invalidate()
	}
	return &push.DeliveryError{StatusCode: resp.StatusCode, Reason: body.Reason}
}

// Close releases pooled connections.
func (c *Client) Close() {
	if c.breaker != nil {
		c.breaker.CloseIdleConnections()
	}
}

var _ push.Sender = (*Client)(nil)
