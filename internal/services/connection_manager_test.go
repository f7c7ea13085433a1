package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baristaq/baristaq/internal/domain/order"
)

func newHubServer(t *testing.T, m *ConnectionManager) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		m.Register(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) order.Snapshot {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var snap order.Snapshot
	require.NoError(t, json.Unmarshal(payload, &snap))
	return snap
}

func TestConnectionManagerBroadcast(t *testing.T) {
	m := NewConnectionManager(nil)
	defer m.Close()
	srv := newHubServer(t, m)

	first := dialHub(t, srv)
	second := dialHub(t, srv)
	waitForClients(t, m, 2)

	o := newTestOrder(1, espresso())
	o.Normalize()
	m.Broadcast(order.Snapshot{
		Items:       []*order.Item{order.OrderItem(o)},
		TotalOrders: 1,
		TotalDrinks: 1,
	})

	for _, conn := range []*websocket.Conn{first, second} {
		snap := readSnapshot(t, conn)
		assert.Equal(t, 1, snap.TotalOrders)
		require.Len(t, snap.Items, 1)
		assert.Equal(t, order.KindOrder, snap.Items[0].Kind)
	}
}

func TestConnectionManagerSendsLatestOnRegister(t *testing.T) {
	m := NewConnectionManager(nil)
	defer m.Close()
	srv := newHubServer(t, m)

	m.Broadcast(order.Snapshot{TotalOrders: 3, TotalDrinks: 7})

	conn := dialHub(t, srv)
	snap := readSnapshot(t, conn)
	assert.Equal(t, 3, snap.TotalOrders)
	assert.Equal(t, 7, snap.TotalDrinks)
}

func TestConnectionManagerClose(t *testing.T) {
	m := NewConnectionManager(nil)
	srv := newHubServer(t, m)

	conn := dialHub(t, srv)
	waitForClients(t, m, 1)

	m.Close()
	assert.Equal(t, 0, m.ClientCount())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "server should have closed the connection")
}

func waitForClients(t *testing.T, m *ConnectionManager, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.ClientCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d clients, have %d", want, m.ClientCount())
}
