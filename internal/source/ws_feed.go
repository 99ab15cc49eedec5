package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"tickerpulse/internal/domain"
)

// WSFeedConfig configures the live message feed.
type WSFeedConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the backoff between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout is the per-message read deadline.
	ReadTimeout time.Duration
	// Buffer is the delivery channel capacity.
	Buffer int
}

// DefaultWSFeedConfig returns default feed configuration.
func DefaultWSFeedConfig() WSFeedConfig {
	return WSFeedConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       90 * time.Second,
		Buffer:            256,
	}
}

// WSFeed subscribes to the relay's live message stream and delivers raw
// messages on a channel. The connection is re-established with backoff
// after any read failure until Close is called.
type WSFeed struct {
	endpoint string
	sourceID string
	config   WSFeedConfig
	logger   *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool
	out    chan domain.RawMessage
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewWSFeed connects to the relay stream for one source and starts the
// read loop. Received messages are available via Messages.
func NewWSFeed(ctx context.Context, endpoint, sourceID string, config *WSFeedConfig, logger *log.Logger) (*WSFeed, error) {
	cfg := DefaultWSFeedConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}

	f := &WSFeed{
		endpoint: endpoint,
		sourceID: sourceID,
		config:   cfg,
		logger:   logger,
		out:      make(chan domain.RawMessage, cfg.Buffer),
		done:     make(chan struct{}),
	}

	if err := f.connect(ctx); err != nil {
		return nil, err
	}

	f.wg.Add(1)
	go f.readLoop()

	return f, nil
}

// Messages returns the delivery channel. It is closed after Close.
func (f *WSFeed) Messages() <-chan domain.RawMessage {
	return f.out
}

// Close shuts the feed down and closes the delivery channel.
func (f *WSFeed) Close() {
	if !f.closed.CompareAndSwap(false, true) {
		return
	}
	close(f.done)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.connMu.Unlock()

	f.wg.Wait()
	close(f.out)
}

func (f *WSFeed) connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, fmt.Sprintf("%s/stream?source=%s", f.endpoint, f.sourceID), nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	f.conn = conn
	return nil
}

func (f *WSFeed) readLoop() {
	defer f.wg.Done()

	delay := f.config.ReconnectDelay
	for {
		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		if conn != nil {
			if f.config.ReadTimeout > 0 {
				conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))
			}
			_, data, err := conn.ReadMessage()
			if err == nil {
				delay = f.config.ReconnectDelay
				f.deliver(data)
				continue
			}
			if f.closed.Load() {
				return
			}
			f.logger.Printf("feed read for %s failed, reconnecting: %v", f.sourceID, err)
		}

		select {
		case <-f.done:
			return
		case <-time.After(delay):
		}
		if delay *= 2; delay > f.config.MaxReconnectDelay {
			delay = f.config.MaxReconnectDelay
		}

		if err := f.connect(context.Background()); err != nil {
			f.logger.Printf("feed reconnect for %s failed: %v", f.sourceID, err)
			f.connMu.Lock()
			f.conn = nil
			f.connMu.Unlock()
		}
	}
}

// deliver decodes one frame and pushes it out. Malformed frames and a
// full buffer both drop the message; the feed never blocks the reader.
func (f *WSFeed) deliver(data []byte) {
	var m wireMessage
	if err := json.Unmarshal(data, &m); err != nil {
		f.logger.Printf("feed frame for %s malformed: %v", f.sourceID, err)
		return
	}

	msg := domain.RawMessage{
		Timestamp: m.Timestamp,
		SenderID:  m.SenderID,
		Text:      m.Text,
	}

	select {
	case f.out <- msg:
	default:
		f.logger.Printf("feed buffer for %s full, dropping message", f.sourceID)
	}
}
