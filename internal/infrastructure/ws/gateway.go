// Package ws delivers the same per-user event feed as the SSE stream over a
// websocket, for clients behind proxies that buffer event-stream responses.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hansol-oss/intrachat/internal/domain"
	"github.com/hansol-oss/intrachat/internal/infrastructure/bus"
	"github.com/hansol-oss/intrachat/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// connWrapper serializes writes: the ping timer and the event loop share the
// connection.
type connWrapper struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newConnWrapper(c *websocket.Conn) *connWrapper {
	return &connWrapper{conn: c}
}

func (w *connWrapper) WriteJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(v)
}

func (w *connWrapper) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.Close()
}

type Gateway struct {
	upgrader     websocket.Upgrader
	bus          *bus.Bus
	logger       *zap.SugaredLogger
	metrics      *metrics.Metrics
	pingInterval time.Duration
}

func NewGateway(b *bus.Bus, logger *zap.SugaredLogger, m *metrics.Metrics, pingInterval time.Duration) *Gateway {
	if pingInterval <= 0 {
		pingInterval = 25 * time.Second
	}
	return &Gateway{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true }, // CORS is enforced upstream
		},
		bus:          b,
		logger:       logger,
		metrics:      m,
		pingInterval: pingInterval,
	}
}

// ServeUser upgrades the connection and forwards the user's bus events until
// the peer goes away. Registration and timer cleanup run on every exit path.
func (g *Gateway) ServeUser(w http.ResponseWriter, r *http.Request, userID int64) error {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	wrapped := newConnWrapper(conn)
	defer wrapped.Close()

	events, off := g.bus.SubscribeChan(userID)
	defer off()

	g.metrics.ActiveStreams.WithLabelValues("websocket").Inc()
	defer g.metrics.ActiveStreams.WithLabelValues("websocket").Dec()

	// the read pump only exists to notice the peer closing
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := wrapped.WriteJSON(domain.NewConnectedEvent()); err != nil {
		return err
	}

	ping := time.NewTicker(g.pingInterval)
	defer ping.Stop()

	g.logger.Infow("websocket stream opened", "user_id", userID)
	defer g.logger.Infow("websocket stream closed", "user_id", userID)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-closed:
			return nil
		case now := <-ping.C:
			if err := wrapped.WriteJSON(domain.NewPingEvent(now)); err != nil {
				return err
			}
		case ev := <-events:
			if err := wrapped.WriteJSON(ev); err != nil {
				return err
			}
		}
	}
}
