// Package capi is a thin client for the remote advertising conversion
// endpoint. It performs one bounded-timeout POST per call; retries,
// backoff, and durable queueing are deliberately absent.
package capi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jdgallegos/beaconshop-backend/pkg/config"
	"github.com/jdgallegos/beaconshop-backend/pkg/logger"
)

const maxResponseBody = 2000

// Credentials identifies the destination pixel. Empty credentials put the
// sender into dry-run mode. GraphVersion, when set, overrides the client's
// configured API version for this send.
type Credentials struct {
	PixelID       string
	AccessToken   string
	TestEventCode string
	GraphVersion  string
}

// Configured reports whether a real network call can be attempted.
func (c Credentials) Configured() bool {
	return strings.TrimSpace(c.PixelID) != "" && strings.TrimSpace(c.AccessToken) != ""
}

// UserData is the best-effort browser/user context attached to an event.
type UserData struct {
	ClientIPAddress string `json:"client_ip_address,omitempty"`
	ClientUserAgent string `json:"client_user_agent,omitempty"`
	FBP             string `json:"fbp,omitempty"`
	FBC             string `json:"fbc,omitempty"`
	Email           string `json:"em,omitempty"`
	Phone           string `json:"ph,omitempty"`
}

// Event is one entry of the payload's data array. CustomData is loosely
// typed because chaos testing deliberately injects malformed values.
type Event struct {
	EventName      string         `json:"event_name"`
	EventTime      int64          `json:"event_time"`
	EventID        string         `json:"event_id"`
	ActionSource   string         `json:"action_source"`
	EventSourceURL string         `json:"event_source_url,omitempty"`
	UserData       UserData       `json:"user_data"`
	CustomData     map[string]any `json:"custom_data"`
}

// Payload is the request body for the events endpoint.
type Payload struct {
	Data          []Event `json:"data"`
	TestEventCode string  `json:"test_event_code,omitempty"`
}

// Validate surfaces structural problems before the payload leaves the
// process.
func (p Payload) Validate() error {
	if len(p.Data) == 0 {
		return errors.New("data must be a non-empty list")
	}
	ev := p.Data[0]
	if ev.EventName == "" {
		return errors.New("missing event_name")
	}
	if ev.EventTime == 0 {
		return errors.New("missing event_time")
	}
	if ev.ActionSource == "" {
		return errors.New("missing action_source")
	}
	return nil
}

// Client posts event payloads to the graph-style events endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	version    string
	logg       *logger.Logger
}

// NewClient validates the transport configuration and builds a client.
func NewClient(cfg config.CAPIConfig, logg *logger.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.GraphBaseURL), "/")
	if base == "" {
		return nil, errors.New("graph base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parsing graph base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    base,
		version:    normalizeVersion(cfg.GraphVersion),
		logg:       logg,
	}, nil
}

// EventsURL builds the destination URL for the given pixel id. The access
// token travels as a query parameter, matching the remote contract.
func (c *Client) EventsURL(creds Credentials) string {
	version := c.version
	if strings.TrimSpace(creds.GraphVersion) != "" {
		version = normalizeVersion(creds.GraphVersion)
	}
	u := fmt.Sprintf("%s/%s/%s/events", c.baseURL, version, url.PathEscape(creds.PixelID))
	q := url.Values{}
	q.Set("access_token", creds.AccessToken)
	return u + "?" + q.Encode()
}

// PostEvents performs the single network attempt. The returned status is the
// remote HTTP code; body is truncated for log storage. A non-nil error means
// the transport failed before a status was available.
func (c *Client) PostEvents(ctx context.Context, creds Credentials, payload Payload) (int, string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, "", fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.EventsURL(creds), bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(respBody), nil
}

func normalizeVersion(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" {
		v = "v20.0"
	}
	return "v" + strings.TrimPrefix(v, "v")
}
