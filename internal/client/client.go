// Package client implements the conversational state machine in front of
// the evaluation service: the ordered message log, the send lifecycle, and
// the one-in-flight invariant that serializes all network activity.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"voicebot-evaluator/internal/domain"
)

// Send-cycle statuses surfaced to whatever front-end drives the client.
const (
	StatusSending = "Sending…"
	StatusDone    = "Done"
	StatusError   = "Error"
)

var (
	// ErrEmptyInput is returned when the trimmed input is empty. The log
	// is untouched and no network call is made.
	ErrEmptyInput = errors.New("nothing to send")

	// ErrSendInFlight is returned when a send is already outstanding.
	// The new attempt is a no-op; at most one request is in flight.
	ErrSendInFlight = errors.New("a send is already in flight")

	// ErrNothingToCopy is returned when no settled assistant message
	// exists yet.
	ErrNothingToCopy = errors.New("no assistant message to copy")
)

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithEvaluateTarget overrides the participant sent as evaluate_target.
func WithEvaluateTarget(target string) Option {
	return func(c *Client) {
		c.target = target
	}
}

// Client owns the append-only message log and the send lifecycle. It is
// safe for concurrent use; ordering needs no further machinery because the
// in-flight lock admits one send cycle at a time, so assistant messages
// settle in the order their requests were issued.
type Client struct {
	endpoint   string
	target     string
	httpClient *http.Client
	renderer   *Renderer

	mu       sync.Mutex
	messages []domain.Message
	input    string
	sending  bool
	status   string
}

// New creates a client that talks to the evaluate endpoint at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		endpoint:   strings.TrimSuffix(baseURL, "/") + "/api/voicebot-evaluator",
		target:     domain.DefaultEvaluateTarget,
		httpClient: http.DefaultClient,
		renderer:   NewRenderer(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send runs one full send cycle: Idle -> Sending -> (Settled | Failed) ->
// Idle. Empty input and an in-flight send are rejected up front with
// nothing appended and no network call. Every accepted cycle terminates
// with the pending placeholder replaced by exactly one settled assistant
// message, success or failure alike, and the in-flight lock released.
func (c *Client) Send(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyInput
	}

	now := time.Now()

	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		return ErrSendInFlight
	}
	c.sending = true
	c.status = StatusSending
	c.input = ""

	c.messages = append(c.messages, domain.Message{
		ID:           uuid.New().String(),
		Role:         domain.RoleUser,
		Phase:        domain.PhaseSettled,
		RawText:      trimmed,
		RenderedHTML: c.renderer.RenderText(trimmed),
		Timestamp:    domain.FormatTimestamp(now),
	})

	pendingID := uuid.New().String()
	c.messages = append(c.messages, domain.Message{
		ID:        pendingID,
		Role:      domain.RoleAssistant,
		Phase:     domain.PhasePending,
		Timestamp: domain.FormatTimestamp(now),
	})
	c.mu.Unlock()

	// The lock release below is unconditional: whatever happens to the
	// request, the next send must be possible and the pending indicator
	// must not outlive the cycle.
	md, sendErr := c.performRequest(ctx, trimmed)

	c.mu.Lock()
	defer c.mu.Unlock()

	var settled domain.Message
	if sendErr != nil {
		errText := fmt.Sprintf("An error occurred: %s", sendErr.Error())
		settled = domain.Message{
			ID:           uuid.New().String(),
			Role:         domain.RoleAssistant,
			Phase:        domain.PhaseSettled,
			RawText:      errText,
			RenderedHTML: c.renderer.RenderError(errText),
			Timestamp:    domain.FormatTimestamp(time.Now()),
		}
		c.status = StatusError
	} else {
		settled = domain.Message{
			ID:           uuid.New().String(),
			Role:         domain.RoleAssistant,
			Phase:        domain.PhaseSettled,
			RawText:      md,
			RenderedHTML: c.renderer.Render(md),
			Timestamp:    domain.FormatTimestamp(time.Now()),
		}
		c.status = StatusDone
	}

	c.replacePending(pendingID, settled)
	c.sending = false
	return nil
}

// replacePending removes the pending entry and appends exactly one settled
// entry. Must be called with c.mu held.
func (c *Client) replacePending(pendingID string, settled domain.Message) {
	kept := c.messages[:0]
	for _, m := range c.messages {
		if m.ID != pendingID {
			kept = append(kept, m)
		}
	}
	c.messages = append(kept, settled)
}

// performRequest issues the single network call for one cycle and
// normalizes whatever comes back into markdown.
func (c *Client) performRequest(ctx context.Context, inputText string) (string, error) {
	payload, err := json.Marshal(domain.EvaluateRequest{
		InputText:      inputText,
		EvaluateTarget: c.target,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// The service envelope carries the message; fall back to the
		// raw body when the envelope shape is absent.
		var env domain.EvaluateResponse
		if jsonErr := json.Unmarshal(body, &env); jsonErr == nil && env.Error != "" {
			return "", errors.New(env.Error)
		}
		return "", fmt.Errorf("server error: %d: %s", resp.StatusCode, string(body))
	}

	return ExtractMarkdown(body), nil
}

// Messages returns a snapshot of the log in order.
func (c *Client) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Status returns the most recent send-cycle status.
func (c *Client) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SetInput stores the draft input text.
func (c *Client) SetInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = text
}

// Input returns the draft input text.
func (c *Client) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// Clear empties the log and the draft input. Idempotent, no network effect.
func (c *Client) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
	c.input = ""
	c.status = ""
}

// CopyLast returns the raw text of the most recent settled assistant
// message, unaffected by sanitization.
func (c *Client) CopyLast() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.messages) - 1; i >= 0; i-- {
		m := c.messages[i]
		if m.Role == domain.RoleAssistant && m.Phase == domain.PhaseSettled {
			return m.RawText, nil
		}
	}
	return "", ErrNothingToCopy
}

// CopyMessage returns the raw text of the message with the given ID.
func (c *Client) CopyMessage(id string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.messages {
		if m.ID == id {
			return m.RawText, nil
		}
	}
	return "", fmt.Errorf("no message with id %s", id)
}
