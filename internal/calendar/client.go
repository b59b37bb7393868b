package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// EventsAPI is what the mirror needs from a calendar provider: create an
// event, update an event. Nothing else.
type EventsAPI interface {
	CreateEvent(ctx context.Context, creds Credentials, ev Event) (string, error)
	UpdateEvent(ctx context.Context, creds Credentials, eventID string, ev Event) error
}

// Client talks to the external calendar's REST API. Access tokens are
// obtained from the refresh token on demand and cached per client id
// until shortly before expiry.
type Client struct {
	baseURL  string
	tokenURL string
	http     *http.Client

	mu     sync.Mutex
	tokens map[string]cachedToken // keyed by client id
}

type cachedToken struct {
	accessToken string
	expiresAt   time.Time
}

type ClientConfig struct {
	BaseURL  string
	TokenURL string
	Timeout  time.Duration
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		tokenURL: cfg.TokenURL,
		http:     &http.Client{Timeout: cfg.Timeout},
		tokens:   map[string]cachedToken{},
	}
}

type eventPayload struct {
	Summary     string          `json:"summary,omitempty"`
	Description string          `json:"description,omitempty"`
	Start       *eventTimestamp `json:"start,omitempty"`
	End         *eventTimestamp `json:"end,omitempty"`
	ColorID     string          `json:"colorId,omitempty"`
	Attendees   []attendee      `json:"attendees,omitempty"`
}

type eventTimestamp struct {
	DateTime string `json:"dateTime"`
}

type attendee struct {
	Email string `json:"email"`
}

func (c *Client) CreateEvent(ctx context.Context, creds Credentials, ev Event) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, creds, http.MethodPost, "/events", buildPayload(ev), &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("calendar: create event returned no id")
	}
	return out.ID, nil
}

func (c *Client) UpdateEvent(ctx context.Context, creds Credentials, eventID string, ev Event) error {
	return c.do(ctx, creds, http.MethodPatch, "/events/"+url.PathEscape(eventID), buildPayload(ev), nil)
}

func buildPayload(ev Event) eventPayload {
	p := eventPayload{
		Summary:     ev.Summary,
		Description: ev.Description,
		ColorID:     ev.ColorID,
	}
	// A patch with zero times must not clobber the event's schedule.
	if !ev.Start.IsZero() {
		p.Start = &eventTimestamp{DateTime: ev.Start.Format(time.RFC3339)}
	}
	if !ev.End.IsZero() {
		p.End = &eventTimestamp{DateTime: ev.End.Format(time.RFC3339)}
	}
	for _, a := range ev.Attendees {
		if strings.TrimSpace(a) == "" {
			continue
		}
		p.Attendees = append(p.Attendees, attendee{Email: a})
	}
	return p
}

func (c *Client) do(ctx context.Context, creds Credentials, method, path string, payload any, out any) error {
	token, err := c.accessToken(ctx, creds)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("calendar: %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) accessToken(ctx context.Context, creds Credentials) (string, error) {
	c.mu.Lock()
	cached, ok := c.tokens[creds.ClientID]
	c.mu.Unlock()
	if ok && time.Now().Before(cached.expiresAt) {
		return cached.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", creds.ClientID)
	form.Set("client_secret", creds.ClientSecret)
	form.Set("refresh_token", creds.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("calendar: token endpoint returned %d", resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("calendar: token endpoint returned empty token")
	}

	ttl := time.Duration(tok.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	c.mu.Lock()
	c.tokens[creds.ClientID] = cachedToken{
		accessToken: tok.AccessToken,
		// Refresh a minute early so in-flight calls don't race expiry.
		expiresAt: time.Now().Add(ttl - time.Minute),
	}
	c.mu.Unlock()
	return tok.AccessToken, nil
}
