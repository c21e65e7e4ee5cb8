// Package binance provides a concrete exchange.WsClient backed by the
// Binance USD-M futures user-data stream: a listen-key-scoped websocket that
// pushes ACCOUNT_UPDATE and ORDER_TRADE_UPDATE events, eliminating the need
// to poll REST for fills. The REST side of the Binance surface is injected
// as an exchange.RestClient rather than implemented here.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/klingon-exchange/ledger-core/internal/config"
	"github.com/klingon-exchange/ledger-core/internal/exchange"
	"github.com/klingon-exchange/ledger-core/internal/statemachine"
	"github.com/klingon-exchange/ledger-core/pkg/logging"
)

// keepAliveInterval is how often the listen key is extended; Binance
// invalidates a listen key after 60 minutes without an extend call.
const keepAliveInterval = 30 * time.Minute

// UserDataStream is a reconnecting websocket client over a Binance futures
// listen key. It satisfies exchange.WsClient.
type UserDataStream struct {
	mu sync.RWMutex

	rest    exchange.RestClient
	baseURL string
	dialer  *websocket.Dialer
	backoff config.BackoffConfig
	machine *statemachine.WebSocketMachine
	log     *logging.Logger

	conn      *websocket.Conn
	listenKey string
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}

	onMessage func(map[string]any)
	onState   func(statemachine.WebSocketState)
}

// NewUserDataStream constructs a stream that dials baseURL+listenKey, e.g.
// "wss://fstream.binance.com/ws/" in production or a ws:// test server URL.
func NewUserDataStream(rest exchange.RestClient, baseURL string) *UserDataStream {
	return &UserDataStream{
		rest:    rest,
		baseURL: baseURL,
		dialer:  websocket.DefaultDialer,
		backoff: config.DefaultWebSocketBackoff(),
		machine: statemachine.NewWebSocketMachine(),
		log:     logging.GetDefault().Component("binance-userstream"),
	}
}

// State reports the current connection lifecycle state.
func (s *UserDataStream) State() statemachine.WebSocketState {
	return s.machine.Current()
}

// OnMessage registers the callback invoked with each decoded JSON payload
// from the stream's read loop. Replaces any previously registered callback.
func (s *UserDataStream) OnMessage(fn func(map[string]any)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMessage = fn
}

// OnStateChange registers the callback invoked on every lifecycle
// transition. Replaces any previously registered callback.
func (s *UserDataStream) OnStateChange(fn func(statemachine.WebSocketState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = fn
}

// Start obtains a listen key and begins the connect/read/keepalive loops in
// the background. Returns once the listen key has been obtained; connection
// itself proceeds asynchronously with its own reconnect backoff.
func (s *UserDataStream) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}

	key, err := s.rest.CreateListenKey(ctx)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("create listen key: %w", err)
	}

	s.listenKey = key
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.connectLoop()
	go s.keepAliveLoop(ctx)

	s.log.Info("user data stream started")
	return nil
}

// Stop closes the active connection and halts the connect/keepalive loops.
func (s *UserDataStream) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}

	<-s.doneCh
	_ = s.rest.DeleteListenKey(ctx)
	s.setState(statemachine.WSDisconnected)
	s.log.Info("user data stream stopped")
	return nil
}

func (s *UserDataStream) connectLoop() {
	defer close(s.doneCh)

	delay := s.backoff.Initial
	for {
		if !s.isRunning() {
			return
		}

		// RECONNECTING dials directly; only a fresh DISCONNECTED start
		// passes through CONNECTING, matching the machine's transition table.
		if s.State() == statemachine.WSDisconnected {
			s.setState(statemachine.WSConnecting)
		}
		url := s.baseURL + s.listenKey

		conn, _, err := s.dialer.Dial(url, nil)
		if err != nil {
			s.log.Warn("dial failed", "err", err, "retry_in", delay)
			s.setState(statemachine.WSDisconnected)
			if !s.sleepOrStop(delay) {
				return
			}
			delay = nextBackoff(delay, s.backoff)
			continue
		}

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()
		delay = s.backoff.Initial
		s.setState(statemachine.WSConnected)

		s.readLoop(conn)

		if !s.isRunning() {
			return
		}
		s.setState(statemachine.WSReconnecting)
	}
}

func (s *UserDataStream) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			s.log.Debug("read loop ended", "err", err)
			return
		}

		var payload map[string]any
		if err := json.Unmarshal(message, &payload); err != nil {
			s.log.Warn("failed to decode stream message", "err", err)
			continue
		}

		s.mu.RLock()
		cb := s.onMessage
		s.mu.RUnlock()
		if cb != nil {
			cb(payload)
		}
	}
}

func (s *UserDataStream) keepAliveLoop(ctx context.Context) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.rest.ExtendListenKey(ctx); err != nil {
				s.log.Error("extend listen key failed", "err", err)
			}
		}
	}
}

func (s *UserDataStream) sleepOrStop(d time.Duration) bool {
	select {
	case <-s.stopCh:
		return false
	case <-time.After(d):
		return true
	}
}

func (s *UserDataStream) isRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *UserDataStream) setState(state statemachine.WebSocketState) {
	if err := s.machine.Transition(state); err != nil {
		s.log.Debug("state transition rejected", "to", state, "err", err)
		return
	}
	s.mu.RLock()
	cb := s.onState
	s.mu.RUnlock()
	if cb != nil {
		cb(state)
	}
}

func nextBackoff(cur time.Duration, b config.BackoffConfig) time.Duration {
	next := time.Duration(float64(cur) * b.Factor)
	if next > b.Max {
		return b.Max
	}
	return next
}
