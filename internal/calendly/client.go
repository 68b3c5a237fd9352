package calendly

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/medconnect/telehealth-platform/pkg/logging"
)

const (
	defaultBaseURL = "https://api.calendly.com"
	defaultTimeout = 15 * time.Second

	// tokenPlaceholder is the sample value from the onboarding docs; treat it
	// the same as no token at all.
	tokenPlaceholder = "your_calendly_access_token_here"
)

// ErrNotConfigured is returned when no usable access token is configured.
// Operators must set CALENDLY_ACCESS_TOKEN; callers are expected to fall back
// to placeholder booking data.
var ErrNotConfigured = errors.New("calendly: access token not configured")

// APIError is a non-success response from the Calendly API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300]
	}
	return fmt.Sprintf("calendly: api error: status %d: %s", e.StatusCode, body)
}

// Client is a Calendly REST API client.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	logger      *logging.Logger
}

// NewClient creates a Calendly client. An empty baseURL selects the public
// API endpoint.
func NewClient(baseURL, accessToken string, logger *logging.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: strings.TrimSpace(accessToken),
		httpClient:  &http.Client{Timeout: defaultTimeout},
		logger:      logger,
	}
}

// Configured reports whether a usable access token is present.
func (c *Client) Configured() bool {
	return c.accessToken != "" && c.accessToken != tokenPlaceholder
}

// GetScheduledEvent fetches the event resource behind an event URI.
func (c *Client) GetScheduledEvent(ctx context.Context, eventURI string) (*Event, error) {
	var out resourceEnvelope
	if err := c.get(ctx, eventURI, &out); err != nil {
		return nil, err
	}
	return &out.Resource, nil
}

// GetEventInvitees fetches the invitees booked onto an event.
func (c *Client) GetEventInvitees(ctx context.Context, eventURI string) ([]Invitee, error) {
	var out collectionEnvelope
	if err := c.get(ctx, strings.TrimRight(eventURI, "/")+"/invitees", &out); err != nil {
		return nil, err
	}
	return out.Collection, nil
}

// GetInvitee fetches a single invitee resource, for payloads that only carry
// the invitee URI.
func (c *Client) GetInvitee(ctx context.Context, inviteeURI string) (*Invitee, error) {
	var out inviteeEnvelope
	if err := c.get(ctx, inviteeURI, &out); err != nil {
		return nil, err
	}
	return &out.Resource, nil
}

// get performs an authenticated GET. uri may be a full provider URI (the
// webhook payload carries those) or a path; either way the request goes to
// the configured base URL. No retries: a failed call propagates immediately.
func (c *Client) get(ctx context.Context, uri string, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	path := uri
	if idx := strings.Index(uri, "://"); idx >= 0 {
		rest := uri[idx+len("://"):]
		if slash := strings.Index(rest, "/"); slash >= 0 {
			path = rest[slash:]
		} else {
			path = "/"
		}
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("calendly: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calendly: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("calendly: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("calendly api returned error",
			"status", resp.StatusCode,
			"path", path,
		)
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("calendly: unmarshal response: %w", err)
	}
	return nil
}
