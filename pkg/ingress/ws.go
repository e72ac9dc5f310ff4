package ingress

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cfoust/kart/pkg/config"
	"github.com/cfoust/kart/pkg/coordinator"
	"github.com/cfoust/kart/pkg/protocol"

	"github.com/mileusna/useragent"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
)

const (
	registerTimeout = 10 * time.Second
	writeTimeout    = 5 * time.Second
)

var ErrNotRegistered = errors.New("first message was not a registration")

// Coordinator is the part of coordinator.Handle a connection talks to.
type Coordinator interface {
	AddClient(ctx context.Context, name string) (protocol.ClientID, <-chan protocol.ServerMessage, error)
	RemoveClient(ctx context.Context, id protocol.ClientID) error
	HandleMessage(ctx context.Context, id protocol.ClientID, message protocol.ClientMessage) error
}

type WSClient struct {
	id     protocol.ClientID
	host   string
	device string
}

func (c *WSClient) ID() protocol.ClientID {
	return c.id
}

func (c *WSClient) Host() string {
	return c.host
}

// DeviceType is a rough description of the browser the client connected
// from, e.g. "desktop".
func (c *WSClient) DeviceType() string {
	return c.device
}

type WSIngress struct {
	coordinator Coordinator
	settings    config.IngressSettings
	clients     map[*WSClient]struct{}
	mutex       deadlock.Mutex
	httpServer  *http.Server
}

func NewWSIngress(handle Coordinator, settings config.IngressSettings) *WSIngress {
	return &WSIngress{
		coordinator: handle,
		settings:    settings,
		clients:     make(map[*WSClient]struct{}),
	}
}

func (server *WSIngress) NumClients() int {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	return len(server.clients)
}

func (server *WSIngress) addClient(client *WSClient) {
	server.mutex.Lock()
	server.clients[client] = struct{}{}
	server.mutex.Unlock()
}

func (server *WSIngress) removeClient(client *WSClient) {
	server.mutex.Lock()
	delete(server.clients, client)
	server.mutex.Unlock()
}

func (server *WSIngress) limiter() *rate.Limiter {
	if server.settings.MessagesPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := server.settings.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(server.settings.MessagesPerSecond), burst)
}

func WriteTimeout(ctx context.Context, timeout time.Duration, c *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Write(ctx, websocket.MessageBinary, msg)
}

func readRegister(ctx context.Context, c *websocket.Conn) (protocol.Register, error) {
	ctx, cancel := context.WithTimeout(ctx, registerTimeout)
	defer cancel()

	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			return protocol.Register{}, err
		}
		if typ != websocket.MessageBinary {
			continue
		}

		message, err := protocol.DecodeClient(data)
		if err != nil {
			return protocol.Register{}, err
		}

		register, ok := message.(protocol.Register)
		if !ok {
			return protocol.Register{}, fmt.Errorf("%w: got %s", ErrNotRegistered, message.Type())
		}
		return register, nil
	}
}

// HandleClient runs a connection until either side hangs up.
func (server *WSIngress) HandleClient(ctx context.Context, c *websocket.Conn, host string, device string) error {
	register, err := readRegister(ctx, c)
	if err != nil {
		c.Close(websocket.StatusPolicyViolation, "expected registration")
		return err
	}

	id, outbound, err := server.coordinator.AddClient(ctx, register.Name)
	if err != nil {
		return err
	}

	client := &WSClient{
		id:     id,
		host:   host,
		device: device,
	}
	server.addClient(client)
	defer server.removeClient(client)

	logger := log.With().
		Str("client", id.Short()).
		Str("host", host).
		Str("device", device).
		Logger()
	logger.Info().Str("name", register.Name).Msg("client connected")

	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := server.coordinator.RemoveClient(removeCtx, id); err != nil {
			logger.Warn().Err(err).Msg("could not remove client")
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go server.writeLoop(ctx, cancel, c, outbound, logger)

	limiter := server.limiter()
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			logger.Info().Msg("client left")
			return err
		}
		if typ != websocket.MessageBinary {
			continue
		}

		if !limiter.Allow() {
			logger.Debug().Msg("client exceeded message rate, dropping message")
			continue
		}

		message, err := protocol.DecodeClient(data)
		if err != nil {
			logger.Debug().Err(err).Msg("could not decode message")
			continue
		}

		// messages the coordinator rejects are dropped, the connection
		// survives them
		err = server.coordinator.HandleMessage(ctx, id, message)
		if errors.Is(err, coordinator.ErrStopped) || ctx.Err() != nil {
			return err
		}
	}
}

func (server *WSIngress) writeLoop(
	ctx context.Context,
	cancel context.CancelFunc,
	c *websocket.Conn,
	outbound <-chan protocol.ServerMessage,
	logger zerolog.Logger,
) {
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-outbound:
			if !ok {
				c.Close(websocket.StatusNormalClosure, "removed from session")
				return
			}

			data, err := protocol.Encode(message)
			if err != nil {
				logger.Error().Err(err).Msg("could not encode message")
				continue
			}

			if err := WriteTimeout(ctx, writeTimeout, c, data); err != nil {
				logger.Error().Msg("client missed write timeout; disconnecting")
				return
			}
		}
	}
}

func deviceType(agent useragent.UserAgent) string {
	switch {
	case agent.Bot:
		return "bot"
	case agent.Tablet:
		return "tablet"
	case agent.Mobile:
		return "mobile"
	case agent.Desktop:
		return "desktop"
	}
	return "unknown"
}

func (server *WSIngress) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Error().Err(err).Msg("error accepting client connection")
		return
	}

	defer c.Close(websocket.StatusInternalError, "operational fault during relay")

	hostname := r.RemoteAddr
	if original, ok := r.Header["X-Forwarded-For"]; ok {
		hostname = original[0]
	}

	device := deviceType(useragent.Parse(r.UserAgent()))

	err = server.HandleClient(r.Context(), c, hostname, device)
	if errors.Is(err, context.Canceled) {
		return
	}
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
		websocket.CloseStatus(err) == websocket.StatusGoingAway {
		return
	}
	if err != nil {
		log.Debug().Err(err).Str("host", hostname).Msg("client connection ended")
	}
}

func (server *WSIngress) Serve(ctx context.Context, port int) error {
	listen, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		log.Error().Err(err).Msg("failed to bind WebSocket port")
		return err
	}

	log.Info().Msgf("listening on http://%v", listen.Addr())

	mux := http.NewServeMux()
	mux.Handle("/ws/", server)

	server.httpServer = &http.Server{
		Handler: mux,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	return server.httpServer.Serve(listen)
}

func (server *WSIngress) Shutdown(ctx context.Context) error {
	if server.httpServer == nil {
		return nil
	}
	return server.httpServer.Shutdown(ctx)
}
