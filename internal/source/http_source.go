package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"tickerpulse/internal/domain"
)

// Default configuration values.
const (
	DefaultFetchTimeout = 30 * time.Second
)

// HTTPSource fetches message history from the relay's REST export
// endpoint: GET {base}/messages?source=...&limit=...
type HTTPSource struct {
	baseURL string
	client  *http.Client
	logger  *log.Logger
}

// HTTPOption configures HTTPSource.
type HTTPOption func(*HTTPSource)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		s.client = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) HTTPOption {
	return func(s *HTTPSource) {
		s.logger = logger
	}
}

// NewHTTPSource creates a message source backed by the relay REST API.
func NewHTTPSource(baseURL string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultFetchTimeout},
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compile-time interface check.
var _ MessageSource = (*HTTPSource)(nil)

// wireMessage is the relay's wire shape for one message.
type wireMessage struct {
	Timestamp time.Time `json:"timestamp"`
	SenderID  *int64    `json:"sender_id"`
	Text      string    `json:"text"`
}

// FetchMessages fetches up to limit messages. Transport and decode
// failures are logged and collapsed into ErrSourceUnavailable.
func (s *HTTPSource) FetchMessages(ctx context.Context, sourceID string, limit int) ([]domain.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/messages?source=%s&limit=%d", s.baseURL, url.QueryEscape(sourceID), limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, ErrSourceUnavailable
	}
	req.Header.Set("accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Printf("fetch messages for %s: %v", sourceID, err)
		return nil, ErrSourceUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Printf("fetch messages for %s: status %d", sourceID, resp.StatusCode)
		return nil, ErrSourceUnavailable
	}

	var wire []wireMessage
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		s.logger.Printf("decode messages for %s: %v", sourceID, err)
		return nil, ErrSourceUnavailable
	}

	messages := make([]domain.RawMessage, 0, len(wire))
	for _, m := range wire {
		messages = append(messages, domain.RawMessage{
			Timestamp: m.Timestamp,
			SenderID:  m.SenderID,
			Text:      m.Text,
		})
	}
	return messages, nil
}
