package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WSConfig configures the wallet log stream.
type WSConfig struct {
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	PingInterval      time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	// EventBuffer sizes the shared notification channel. Sends block once
	// it fills; events are never dropped.
	EventBuffer int
}

// DefaultWSConfig returns the default stream configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		EventBuffer:       10000,
	}
}

// WalletStream implements LogStream over a logsSubscribe connection with
// one subscription per watched wallet. Dropped connections are redialed
// and every wallet resubscribed.
type WalletStream struct {
	endpoint string
	config   WSConfig
	log      *logrus.Logger

	conn   *websocket.Conn
	connMu sync.Mutex

	closed    atomic.Bool
	requestID atomic.Uint64

	mu      sync.Mutex
	wallets map[string]struct{} // watched set, survives reconnects
	subs    map[int64]string    // live subscription id -> wallet
	pending map[uint64]string   // request id -> wallet awaiting confirmation

	events chan LogEvent
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewWalletStream dials the endpoint and starts the read and ping loops.
func NewWalletStream(ctx context.Context, endpoint string, config *WSConfig, log *logrus.Logger) (*WalletStream, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if log == nil {
		log = logrus.New()
	}

	s := &WalletStream{
		endpoint: endpoint,
		config:   cfg,
		log:      log,
		wallets:  make(map[string]struct{}),
		subs:     make(map[int64]string),
		pending:  make(map[uint64]string),
		events:   make(chan LogEvent, cfg.EventBuffer),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.pingLoop()

	return s, nil
}

func (s *WalletStream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	return nil
}

// Subscribe starts watching a wallet. The subscription is re-established
// automatically after reconnects.
func (s *WalletStream) Subscribe(ctx context.Context, wallet string) error {
	if s.closed.Load() {
		return fmt.Errorf("stream closed")
	}

	s.mu.Lock()
	if _, already := s.wallets[wallet]; already {
		s.mu.Unlock()
		return nil
	}
	s.wallets[wallet] = struct{}{}
	s.mu.Unlock()

	if err := s.sendSubscribe(wallet); err != nil {
		return err
	}

	s.log.WithField("wallet", wallet).Info("wallet subscription requested")
	return nil
}

// sendSubscribe issues a logsSubscribe mentioning the wallet. Confirmation
// is matched up asynchronously in the read loop.
func (s *WalletStream) sendSubscribe(wallet string) error {
	reqID := s.requestID.Add(1)

	s.mu.Lock()
	s.pending[reqID] = wallet
	s.mu.Unlock()

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params: []interface{}{
			map[string]interface{}{"mentions": []string{wallet}},
			map[string]string{"commitment": "confirmed"},
		},
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteJSON(req); err != nil {
		s.mu.Lock()
		delete(s.pending, reqID)
		s.mu.Unlock()
		return fmt.Errorf("write subscribe: %w", err)
	}
	return nil
}

// Events returns the shared notification channel.
func (s *WalletStream) Events() <-chan LogEvent {
	return s.events
}

// Close tears down the connection and closes the events channel.
func (s *WalletStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.events)
	return nil
}

// readLoop reads messages and redials with exponential backoff on failure.
func (s *WalletStream) readLoop() {
	defer s.wg.Done()

	delay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			if !s.redial(&delay) {
				return
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			s.log.WithError(err).Warn("websocket read failed, reconnecting")
			s.connMu.Lock()
			s.conn.Close()
			s.conn = nil
			s.connMu.Unlock()
			continue
		}

		delay = s.config.ReconnectDelay
		s.handleMessage(message)
	}
}

// redial waits out the backoff, reconnects, and resubscribes every
// watched wallet. Returns false when the stream is shutting down.
func (s *WalletStream) redial(delay *time.Duration) bool {
	select {
	case <-s.done:
		return false
	case <-time.After(*delay):
	}

	*delay *= 2
	if *delay > s.config.MaxReconnectDelay {
		*delay = s.config.MaxReconnectDelay
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err := s.connect(ctx)
	cancel()
	if err != nil {
		s.log.WithError(err).Warn("websocket redial failed")
		return true
	}

	// Stale subscription ids from the previous connection are dropped;
	// each wallet gets a fresh one.
	s.mu.Lock()
	s.subs = make(map[int64]string)
	wallets := make([]string, 0, len(s.wallets))
	for w := range s.wallets {
		wallets = append(wallets, w)
	}
	s.mu.Unlock()

	for _, wallet := range wallets {
		if err := s.sendSubscribe(wallet); err != nil {
			s.log.WithError(err).WithField("wallet", wallet).Warn("resubscribe failed")
		}
	}

	s.log.WithField("wallets", len(wallets)).Info("websocket reconnected")
	return true
}

func (s *WalletStream) handleMessage(message []byte) {
	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.Result > 0 && resp.ID > 0 {
		s.mu.Lock()
		if wallet, ok := s.pending[resp.ID]; ok {
			delete(s.pending, resp.ID)
			s.subs[resp.Result] = wallet
		}
		s.mu.Unlock()
		return
	}

	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err == nil && notif.Method == "logsNotification" && notif.Params != nil {
		s.dispatch(&notif)
		return
	}

	var errResp struct {
		ID    uint64    `json:"id"`
		Error *rpcError `json:"error"`
	}
	if err := json.Unmarshal(message, &errResp); err == nil && errResp.Error != nil {
		s.mu.Lock()
		wallet := s.pending[errResp.ID]
		delete(s.pending, errResp.ID)
		s.mu.Unlock()
		s.log.WithFields(logrus.Fields{
			"wallet": wallet,
			"code":   errResp.Error.Code,
			"msg":    errResp.Error.Message,
		}).Error("subscription rejected")
	}
}

// dispatch forwards a notification to the events channel. The send blocks
// rather than dropping wallet activity.
func (s *WalletStream) dispatch(notif *wsNotification) {
	s.mu.Lock()
	wallet, ok := s.subs[notif.Params.Subscription]
	s.mu.Unlock()
	if !ok {
		return
	}

	value := notif.Params.Result.Value
	ev := LogEvent{
		Wallet:    wallet,
		Signature: value.Signature,
		Logs:      value.Logs,
		Failed:    value.Err != nil,
	}
	if notif.Params.Result.Context != nil {
		ev.Slot = notif.Params.Result.Context.Slot
	}

	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// pingLoop keeps the connection alive.
func (s *WalletStream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				// Failed pings surface as read errors, which trigger the redial.
				s.conn.WriteMessage(websocket.PingMessage, nil)
			}
			s.connMu.Unlock()
		}
	}
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"`
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext  `json:"context"`
	Value   wsLogsValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsLogsValue struct {
	Signature string      `json:"signature"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err"`
}
