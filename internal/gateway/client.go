package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/mucbot/mucbot/internal/bus"
)

const redialPause = 2 * time.Second

// Client talks to the session gateway daemon. It implements both
// Transport and Cipher.
type Client struct {
	baseURL    string
	token      string
	bus        *bus.Bus
	httpClient *http.Client
}

// NewClient creates a gateway client for the given HTTP base URL.
func NewClient(baseURL, token string, b *bus.Bus) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		bus:     b,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Run consumes the gateway event stream until the context is
// cancelled, publishing events to the bus in arrival order. A dropped
// stream is surfaced as a disconnect event and redialed.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.stream(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("Gateway event stream dropped", "error", err)
		c.bus.Publish(bus.Event{Kind: bus.EventDisconnected})

		select {
		case <-time.After(redialPause):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) stream(ctx context.Context) error {
	eventsURL, err := c.eventsURL()
	if err != nil {
		return err
	}

	headers := http.Header{}
	if c.token != "" {
		headers.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := websocket.Dial(ctx, eventsURL, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return fmt.Errorf("dial gateway events: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "shutting down")

	slog.Info("Gateway event stream connected", "url", eventsURL)
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read gateway event: %w", err)
		}
		if typ != websocket.MessageText {
			continue
		}
		var ev bus.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			slog.Warn("Malformed gateway event", "error", err)
			continue
		}
		c.bus.Publish(ev)
	}
}

// eventsURL converts the HTTP base URL into the websocket stream URL.
func (c *Client) eventsURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse gateway url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/events"
	return u.String(), nil
}

// StartSession hands the XMPP identity to the gateway and asks it to
// bring the session online. A sessionStart event follows on the stream
// once the room is joined.
func (c *Client) StartSession(ctx context.Context, s Session) error {
	if err := c.post(ctx, "/session", s, nil); err != nil {
		return &TransportError{Op: "session", Err: err}
	}
	return nil
}

// SendRaw sends one stanza through the gateway.
func (c *Client) SendRaw(ctx context.Context, msg RawMessage) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/send", msg, &out); err != nil {
		return "", &TransportError{Op: "send", Err: err}
	}
	return out.ID, nil
}

// Roster returns the current occupants of the room.
func (c *Client) Roster(ctx context.Context, room string) ([]Occupant, error) {
	var out []Occupant
	if err := c.get(ctx, "/roster?room="+url.QueryEscape(room), &out); err != nil {
		return nil, &TransportError{Op: "roster", Err: err}
	}
	return out, nil
}

// SendChatState publishes a chat-state notification to the room.
func (c *Client) SendChatState(ctx context.Context, room, state string) error {
	in := map[string]string{"room": room, "state": state}
	if err := c.post(ctx, "/chatstate", in, nil); err != nil {
		return &TransportError{Op: "chatstate", Err: err}
	}
	return nil
}

// Reconnect asks the gateway to re-establish the XMPP session.
func (c *Client) Reconnect(ctx context.Context) error {
	if err := c.post(ctx, "/reconnect", struct{}{}, nil); err != nil {
		return &TransportError{Op: "reconnect", Err: err}
	}
	return nil
}

// Decrypt recovers the plaintext body of an encrypted envelope.
func (c *Client) Decrypt(ctx context.Context, env bus.Envelope) (string, error) {
	var out struct {
		Body string `json:"body"`
	}
	if err := c.post(ctx, "/decrypt", env, &out); err != nil {
		return "", &EncryptionError{Op: "decrypt", Err: err}
	}
	return out.Body, nil
}

// EncryptForRecipients produces ciphertext units for each recipient device.
func (c *Client) EncryptForRecipients(ctx context.Context, body string, recipients []string) ([]CipherUnit, error) {
	in := struct {
		Body       string   `json:"body"`
		Recipients []string `json:"recipients"`
	}{Body: body, Recipients: recipients}

	var out struct {
		Units []CipherUnit `json:"units"`
	}
	if err := c.post(ctx, "/encrypt", in, &out); err != nil {
		return nil, &EncryptionError{Op: "encrypt", Err: err}
	}
	return out.Units, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	// Request ids let the gateway log correlate with ours.
	req.Header.Set("X-Request-Id", uuid.NewString())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}
