package ingress

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cfoust/kart/pkg/config"
	"github.com/cfoust/kart/pkg/protocol"

	"github.com/mileusna/useragent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

type fakeCoordinator struct {
	id       protocol.ClientID
	outbound chan protocol.ServerMessage
	added    chan string
	received chan protocol.ClientMessage
	removed  chan protocol.ClientID
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{
		id:       protocol.NewClientID(),
		outbound: make(chan protocol.ServerMessage, 16),
		added:    make(chan string, 4),
		received: make(chan protocol.ClientMessage, 16),
		removed:  make(chan protocol.ClientID, 4),
	}
}

func (f *fakeCoordinator) AddClient(ctx context.Context, name string) (protocol.ClientID, <-chan protocol.ServerMessage, error) {
	f.added <- name
	return f.id, f.outbound, nil
}

func (f *fakeCoordinator) RemoveClient(ctx context.Context, id protocol.ClientID) error {
	f.removed <- id
	return nil
}

func (f *fakeCoordinator) HandleMessage(ctx context.Context, id protocol.ClientID, message protocol.ClientMessage) error {
	f.received <- message
	return nil
}

func receive[T any](t *testing.T, channel <-chan T) T {
	t.Helper()
	select {
	case value := <-channel:
		return value
	case <-time.After(2 * time.Second):
		var zero T
		require.FailNowf(t, "timed out", "waiting for %T", zero)
		return zero
	}
}

func dial(t *testing.T, settings config.IngressSettings) (*fakeCoordinator, *WSIngress, *websocket.Conn) {
	t.Helper()

	fake := newFakeCoordinator()
	ingress := NewWSIngress(fake, settings)
	server := httptest.NewServer(ingress)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/"
	conn, _, err := websocket.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close(websocket.StatusNormalClosure, "")
	})
	return fake, ingress, conn
}

func write(t *testing.T, conn *websocket.Conn, message protocol.Message) {
	t.Helper()
	data, err := protocol.Encode(message)
	require.NoError(t, err)
	require.NoError(t, conn.Write(context.Background(), websocket.MessageBinary, data))
}

func TestSession(t *testing.T) {
	fake, ingress, conn := dial(t, config.IngressSettings{MessagesPerSecond: 100, Burst: 100})

	write(t, conn, protocol.Register{Name: "bob"})
	assert.Equal(t, "bob", receive(t, fake.added))

	fake.outbound <- protocol.PlayerCountChanged{Count: 1}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageBinary, typ)

	message, err := protocol.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, protocol.PlayerCountChanged{Count: 1}, message)

	write(t, conn, protocol.LoadedMap{})
	assert.Equal(t, protocol.LoadedMap{}, receive(t, fake.received))
	assert.Equal(t, 1, ingress.NumClients())

	conn.Close(websocket.StatusNormalClosure, "bye")
	assert.Equal(t, fake.id, receive(t, fake.removed))
}

func TestRegisterFirst(t *testing.T) {
	fake, _, conn := dial(t, config.IngressSettings{})

	write(t, conn, protocol.LoadedMap{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
	assert.Empty(t, fake.added)
}

func TestRemovedByCoordinator(t *testing.T) {
	fake, _, conn := dial(t, config.IngressSettings{})

	write(t, conn, protocol.Register{Name: "alice"})
	receive(t, fake.added)
	close(fake.outbound)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
	receive(t, fake.removed)
}

func TestRateLimit(t *testing.T) {
	fake, _, conn := dial(t, config.IngressSettings{MessagesPerSecond: 0.001, Burst: 2})

	write(t, conn, protocol.Register{Name: "spammer"})
	receive(t, fake.added)

	for i := 0; i < 5; i++ {
		write(t, conn, protocol.LoadedMap{})
	}

	receive(t, fake.received)
	receive(t, fake.received)
	select {
	case <-fake.received:
		require.FailNow(t, "rate limit not applied")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDeviceType(t *testing.T) {
	desktop := useragent.Parse("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	assert.Equal(t, "desktop", deviceType(desktop))
	assert.Equal(t, "unknown", deviceType(useragent.UserAgent{}))
}
