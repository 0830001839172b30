package a2a

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"sync"

	a2ago "github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient"
	"github.com/a2aproject/a2a-go/a2aclient/agentcard"

	"github.com/hupe1980/legalmesh/logging"
)

// ClientOptions configure a Client.
type ClientOptions struct {
	HTTPClient *http.Client
	Logger     logging.Logger
}

// Client calls a remote A2A server over JSON-RPC. The agent card and the
// transport are resolved once and cached for the lifetime of the client.
type Client struct {
	baseURL string
	opts    ClientOptions

	mu        sync.Mutex
	card      *a2ago.AgentCard
	transport *a2aclient.Client
}

// NewClient creates a client for the server at baseURL. A full card URL
// ending in WellKnownCardPath or LegacyCardPath is accepted too.
func NewClient(baseURL string, optFns ...func(o *ClientOptions)) *Client {
	opts := ClientOptions{
		HTTPClient: http.DefaultClient,
		Logger:     logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	base := strings.TrimSuffix(baseURL, WellKnownCardPath)
	base = strings.TrimSuffix(base, LegacyCardPath)
	base = strings.TrimRight(base, "/")

	return &Client{baseURL: base, opts: opts}
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string { return c.baseURL }

// Card resolves the agent card.
func (c *Client) Card(ctx context.Context) (*a2ago.AgentCard, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.card != nil {
		return c.card, nil
	}

	card, err := agentcard.DefaultResolver.Resolve(ctx, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("a2a: resolve agent card: %w", err)
	}

	c.opts.Logger.Info("a2a.card.resolved", "name", card.Name, "url", c.baseURL)
	c.card = card

	return c.card, nil
}

func (c *Client) client(ctx context.Context) (*a2aclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transport != nil {
		return c.transport, nil
	}

	endpoints := []a2ago.AgentInterface{{URL: c.baseURL + "/", Transport: a2ago.TransportProtocolJSONRPC}}

	t, err := a2aclient.NewFromEndpoints(ctx, endpoints, a2aclient.WithJSONRPCTransport(c.opts.HTTPClient))
	if err != nil {
		return nil, fmt.Errorf("a2a: create client: %w", err)
	}

	c.transport = t

	return t, nil
}

// SendMessage sends params via message/send and returns the resulting task
// or message.
func (c *Client) SendMessage(ctx context.Context, params *a2ago.MessageSendParams) (a2ago.SendMessageResult, error) {
	t, err := c.client(ctx)
	if err != nil {
		return nil, err
	}

	return t.SendMessage(ctx, params)
}

// SendMessageStream sends params via message/stream and yields the events
// in order. A stream cannot be resumed; send a new request instead.
func (c *Client) SendMessageStream(ctx context.Context, params *a2ago.MessageSendParams) iter.Seq2[a2ago.Event, error] {
	return func(yield func(a2ago.Event, error) bool) {
		t, err := c.client(ctx)
		if err != nil {
			yield(nil, err)
			return
		}

		for ev, err := range t.SendStreamingMessage(ctx, params) {
			if !yield(ev, err) || err != nil {
				return
			}
		}
	}
}

// GetTask fetches a task via tasks/get.
func (c *Client) GetTask(ctx context.Context, taskID a2ago.TaskID) (*a2ago.Task, error) {
	t, err := c.client(ctx)
	if err != nil {
		return nil, err
	}

	return t.GetTask(ctx, &a2ago.TaskQueryParams{ID: taskID})
}

// CancelTask requests cancellation via tasks/cancel.
func (c *Client) CancelTask(ctx context.Context, taskID a2ago.TaskID) (*a2ago.Task, error) {
	t, err := c.client(ctx)
	if err != nil {
		return nil, err
	}

	return t.CancelTask(ctx, &a2ago.TaskIDParams{ID: taskID})
}

// Close releases the transport.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transport == nil {
		return nil
	}

	err := c.transport.Destroy()
	c.transport = nil

	return err
}

// NewUserMessage creates a user message with one text part.
func NewUserMessage(text string) *a2ago.Message {
	return a2ago.NewMessage(a2ago.MessageRoleUser, a2ago.TextPart{Text: text})
}
