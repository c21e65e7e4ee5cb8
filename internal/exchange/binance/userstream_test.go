package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/klingon-exchange/ledger-core/internal/exchange"
	"github.com/klingon-exchange/ledger-core/internal/statemachine"
)

// fakeListenKeyRest implements only the listen-key lifecycle of
// exchange.RestClient; the demo's scriptedExchange already exercises the
// REST surface, so this fake stays minimal.
type fakeListenKeyRest struct {
	extendCalls int
}

func (f *fakeListenKeyRest) CreateListenKey(ctx context.Context) (string, error) {
	return "fake-listen-key", nil
}
func (f *fakeListenKeyRest) ExtendListenKey(ctx context.Context) error {
	f.extendCalls++
	return nil
}
func (f *fakeListenKeyRest) DeleteListenKey(ctx context.Context) error { return nil }

func (f *fakeListenKeyRest) GetBalances(ctx context.Context) ([]exchange.Balance, error) {
	return nil, nil
}
func (f *fakeListenKeyRest) GetPosition(ctx context.Context, symbol string) (*exchange.Position, error) {
	return nil, nil
}
func (f *fakeListenKeyRest) GetOpenOrders(ctx context.Context, symbol string) ([]exchange.Order, error) {
	return nil, nil
}
func (f *fakeListenKeyRest) GetTrades(ctx context.Context, symbol string, limit int, startTimeMs int64) ([]exchange.Trade, error) {
	return nil, nil
}
func (f *fakeListenKeyRest) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.Order, error) {
	return nil, nil
}
func (f *fakeListenKeyRest) CancelOrder(ctx context.Context, symbol, orderID, clientOrderID string) (*exchange.Order, error) {
	return nil, nil
}
func (f *fakeListenKeyRest) CancelAllOrders(ctx context.Context, symbol string) (int, error) {
	return 0, nil
}
func (f *fakeListenKeyRest) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return nil
}

var upgrader = websocket.Upgrader{}

// newFakeStreamServer serves one websocket connection, writing each message
// in sequence as soon as the client connects, then blocking until the test
// closes the server.
func newFakeStreamServer(t *testing.T, messages ...string) (*httptest.Server, chan *websocket.Conn) {
	t.Helper()
	connCh := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		for _, m := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		connCh <- conn
	}))
	return srv, connCh
}

func TestUserDataStream_ConnectsAndDeliversMessages(t *testing.T) {
	srv, connCh := newFakeStreamServer(t, `{"e":"ACCOUNT_UPDATE","E":1700000000000}`)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/"
	rest := &fakeListenKeyRest{}
	stream := NewUserDataStream(rest, wsURL)

	received := make(chan map[string]any, 1)
	stream.OnMessage(func(msg map[string]any) {
		received <- msg
	})

	states := make(chan statemachine.WebSocketState, 8)
	stream.OnStateChange(func(s statemachine.WebSocketState) {
		select {
		case states <- s:
		default:
		}
	})

	ctx := context.Background()
	if err := stream.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer stream.Stop(ctx)

	select {
	case msg := <-received:
		if msg["e"] != "ACCOUNT_UPDATE" {
			t.Errorf("expected ACCOUNT_UPDATE, got %v", msg["e"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-states:
			if s == statemachine.WSConnected {
				goto connected
			}
		case <-deadline:
			t.Fatal("timed out waiting for CONNECTED state")
		}
	}
connected:

	select {
	case <-connCh:
	case <-time.After(time.Second):
	}

	if got := stream.State(); got != statemachine.WSConnected {
		t.Errorf("expected CONNECTED, got %s", got)
	}
}

func TestUserDataStream_StopTransitionsToDisconnected(t *testing.T) {
	srv, _ := newFakeStreamServer(t)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/"
	rest := &fakeListenKeyRest{}
	stream := NewUserDataStream(rest, wsURL)

	ctx := context.Background()
	if err := stream.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := stream.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := stream.State(); got != statemachine.WSDisconnected {
		t.Errorf("expected DISCONNECTED after stop, got %s", got)
	}
}

func TestUserDataStream_StartIsIdempotent(t *testing.T) {
	srv, _ := newFakeStreamServer(t)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/"
	rest := &fakeListenKeyRest{}
	stream := NewUserDataStream(rest, wsURL)

	ctx := context.Background()
	if err := stream.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := stream.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	stream.Stop(ctx)
}
