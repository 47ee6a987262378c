package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/mixptrack/idgen"
	"github.com/hazyhaar/mixptrack/mixptrack/directive"
)

// DefaultMixpanelEndpoint is Mixpanel's ingestion API.
const DefaultMixpanelEndpoint = "https://api.mixpanel.com"

// Mixpanel sends events and profile updates to the HTTP ingestion API.
// It serves static pages, where no browser runs the JavaScript library.
// Link and form registrations cannot be honoured server side: they are
// accepted and logged so the binding is still recorded once.
type Mixpanel struct {
	endpoint   string
	token      string
	client     *http.Client
	maxRetries int
	backoff    time.Duration
	newID      idgen.Generator
	logger     *slog.Logger

	mu       sync.Mutex
	distinct map[string]string // page ID → identified distinct_id
}

// MixpanelOption configures a Mixpanel sink.
type MixpanelOption func(*Mixpanel)

// WithMixpanelEndpoint overrides DefaultMixpanelEndpoint.
func WithMixpanelEndpoint(u string) MixpanelOption {
	return func(m *Mixpanel) { m.endpoint = strings.TrimRight(u, "/") }
}

// WithMixpanelClient sets a custom HTTP client.
func WithMixpanelClient(c *http.Client) MixpanelOption {
	return func(m *Mixpanel) { m.client = c }
}

// WithMixpanelRetries sets the maximum number of retries. Default: 3.
func WithMixpanelRetries(n int) MixpanelOption {
	return func(m *Mixpanel) { m.maxRetries = n }
}

// WithMixpanelLogger sets a custom logger.
func WithMixpanelLogger(l *slog.Logger) MixpanelOption {
	return func(m *Mixpanel) { m.logger = l }
}

// NewMixpanel creates an ingestion sink for the project token.
func NewMixpanel(token string, opts ...MixpanelOption) *Mixpanel {
	m := &Mixpanel{
		endpoint:   DefaultMixpanelEndpoint,
		token:      token,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		backoff:    time.Second,
		newID:      idgen.NanoID(16),
		logger:     slog.Default(),
		distinct:   make(map[string]string),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Available is false without a project token.
func (m *Mixpanel) Available(context.Context) bool {
	return m.token != ""
}

// Identify remembers the distinct_id for the page session in ctx.
func (m *Mixpanel) Identify(ctx context.Context, id string) error {
	m.mu.Lock()
	m.distinct[directive.PageID(ctx)] = id
	m.mu.Unlock()
	return nil
}

// SetProfile posts a $set profile update for the identified visitor.
func (m *Mixpanel) SetProfile(ctx context.Context, attrs directive.Payload) error {
	id := m.distinctID(ctx)
	if id == "" {
		return fmt.Errorf("mixpanel: set profile: visitor not identified")
	}
	update := map[string]any{
		"$token":       m.token,
		"$distinct_id": id,
		"$set":         attrs,
	}
	return m.post(ctx, "/engage", []any{update})
}

// TrackEvent posts one event.
func (m *Mixpanel) TrackEvent(ctx context.Context, name string, attrs directive.Payload) error {
	props := attrs.Clone()
	props["token"] = m.token
	props["time"] = time.Now().Unix()
	props["$insert_id"] = m.newID()
	if id := m.distinctID(ctx); id != "" {
		props["distinct_id"] = id
	}
	return m.post(ctx, "/track", []any{map[string]any{
		"event":      name,
		"properties": props,
	}})
}

func (m *Mixpanel) RegisterLinkTracking(ctx context.Context, selector, name string, _ directive.Payload) error {
	m.logger.Debug("mixpanel: link rule accepted, no client library to attach it",
		"page", directive.PageID(ctx), "selector", selector, "name", name)
	return nil
}

func (m *Mixpanel) RegisterFormTracking(ctx context.Context, selector, name string, _ directive.Payload) error {
	m.logger.Debug("mixpanel: form rule accepted, no client library to attach it",
		"page", directive.PageID(ctx), "selector", selector, "name", name)
	return nil
}

func (m *Mixpanel) Close() error { return nil }

func (m *Mixpanel) distinctID(ctx context.Context) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.distinct[directive.PageID(ctx)]
}

func (m *Mixpanel) post(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("mixpanel: marshal: %w", err)
	}
	if err := postWithRetry(ctx, m.client, m.endpoint+path, data, m.maxRetries, m.backoff, m.logger); err != nil {
		return fmt.Errorf("mixpanel: %s: %w", path, err)
	}
	return nil
}
