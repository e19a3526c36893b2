package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// LogsFilter selects which program logs to subscribe to.
type LogsFilter struct {
	// Mentions limits notifications to transactions mentioning these addresses.
	Mentions []string
}

// LogNotification is one logsSubscribe notification.
type LogNotification struct {
	Signature string
	Err       interface{}
	Logs      []string
	Slot      uint64
}

// WSConfig configures WebSocket client behavior.
type WSConfig struct {
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	PingInterval      time.Duration
	WriteTimeout      time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// WSClient is a minimal logsSubscribe client with automatic reconnect and
// resubscription. Each subscription feeds one channel; notifications are
// dropped if the consumer falls behind, never blocked on.
type WSClient struct {
	endpoint string
	config   WSConfig

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	subs   map[int64]chan LogNotification
	subsMu sync.RWMutex

	// filters for resubscription after reconnect
	filters   map[int64]LogsFilter
	filtersMu sync.Mutex

	pendingSubs   map[uint64]chan int64
	pendingSubsMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWSClient connects to the endpoint and starts the read and ping loops.
func NewWSClient(ctx context.Context, endpoint string, config *WSConfig) (*WSClient, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	c := &WSClient{
		endpoint:    endpoint,
		config:      cfg,
		subs:        make(map[int64]chan LogNotification),
		filters:     make(map[int64]LogsFilter),
		pendingSubs: make(map[uint64]chan int64),
		done:        make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

func (c *WSClient) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	c.conn = conn
	return nil
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// SubscribeLogs subscribes to logs mentioning the filter addresses.
func (c *WSClient) SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("client closed")
	}

	reqID := c.requestID.Add(1)

	mentions := map[string]interface{}{"all": nil}
	if len(filter.Mentions) > 0 {
		mentions = map[string]interface{}{"mentions": filter.Mentions}
	}

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params: []interface{}{
			mentions,
			map[string]string{"commitment": "confirmed"},
		},
	}

	confirmCh := make(chan int64, 1)
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = confirmCh
	c.pendingSubsMu.Unlock()

	if err := c.writeJSON(req); err != nil {
		c.pendingSubsMu.Lock()
		delete(c.pendingSubs, reqID)
		c.pendingSubsMu.Unlock()
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, fmt.Errorf("client closed")
	case subID := <-confirmCh:
		ch := make(chan LogNotification, 256)
		c.subsMu.Lock()
		c.subs[subID] = ch
		c.subsMu.Unlock()
		c.filtersMu.Lock()
		c.filters[subID] = filter
		c.filtersMu.Unlock()
		return ch, nil
	}
}

func (c *WSClient) writeJSON(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(v)
}

// readLoop dispatches incoming frames to subscribers, reconnecting on error.
func (c *WSClient) readLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			if !c.reconnect() {
				return
			}
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			if !c.reconnect() {
				return
			}
			continue
		}

		c.dispatch(data)
	}
}

type wsFrame struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Method string          `json:"method"`
	Params *struct {
		Subscription int64 `json:"subscription"`
		Result       struct {
			Context struct {
				Slot uint64 `json:"slot"`
			} `json:"context"`
			Value struct {
				Signature string      `json:"signature"`
				Err       interface{} `json:"err"`
				Logs      []string    `json:"logs"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

func (c *WSClient) dispatch(data []byte) {
	var frame wsFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}

	// Subscription confirmation
	if frame.ID != 0 && frame.Result != nil {
		var subID int64
		if err := json.Unmarshal(frame.Result, &subID); err == nil {
			c.pendingSubsMu.Lock()
			if ch, ok := c.pendingSubs[frame.ID]; ok {
				ch <- subID
				delete(c.pendingSubs, frame.ID)
			}
			c.pendingSubsMu.Unlock()
		}
		return
	}

	if frame.Method != "logsNotification" || frame.Params == nil {
		return
	}

	c.subsMu.RLock()
	ch, ok := c.subs[frame.Params.Subscription]
	c.subsMu.RUnlock()
	if !ok {
		return
	}

	note := LogNotification{
		Signature: frame.Params.Result.Value.Signature,
		Err:       frame.Params.Result.Value.Err,
		Logs:      frame.Params.Result.Value.Logs,
		Slot:      frame.Params.Result.Context.Slot,
	}

	select {
	case ch <- note:
	default:
		// consumer behind, drop
	}
}

// reconnect re-dials with backoff and resubscribes active filters.
// Returns false when the client is closed.
func (c *WSClient) reconnect() bool {
	delay := c.config.ReconnectDelay

	for {
		select {
		case <-c.done:
			return false
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := c.connect(ctx)
		cancel()
		if err == nil {
			c.resubscribe()
			return true
		}

		delay *= 2
		if delay > c.config.MaxReconnectDelay {
			delay = c.config.MaxReconnectDelay
		}
	}
}

// resubscribe replays active filters on the fresh connection, rebinding the
// existing notification channels to the new subscription IDs.
func (c *WSClient) resubscribe() {
	c.filtersMu.Lock()
	old := c.filters
	c.filters = make(map[int64]LogsFilter)
	c.filtersMu.Unlock()

	for oldID, filter := range old {
		c.subsMu.Lock()
		ch := c.subs[oldID]
		delete(c.subs, oldID)
		c.subsMu.Unlock()
		if ch == nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		newCh, err := c.SubscribeLogs(ctx, filter)
		cancel()
		if err != nil {
			continue
		}

		// bridge the fresh subscription into the original channel
		c.wg.Add(1)
		go func(src <-chan LogNotification, dst chan LogNotification) {
			defer c.wg.Done()
			for {
				select {
				case <-c.done:
					return
				case n, ok := <-src:
					if !ok {
						return
					}
					select {
					case dst <- n:
					default:
					}
				}
			}
		}(newCh, ch)
	}
}

func (c *WSClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}

// Close shuts down the client and all subscriptions.
func (c *WSClient) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()

	c.subsMu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	return nil
}
