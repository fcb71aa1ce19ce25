package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/callstate/internal/app"
	"github.com/dkeye/callstate/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("viewer too slow")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// stateConn is one websocket viewer. Snapshots are queued on send and
// written by writePump; a full queue drops the viewer.
type stateConn struct {
	conn   *websocket.Conn
	send   chan []byte
	mu     sync.RWMutex
	closed bool
}

func (c *stateConn) TrySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *stateConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	_ = c.conn.Close()
}

// snapshotPusher queues snapshots for one viewer. Snapshots arrive from
// the subscription and from the initial read; only strictly newer
// versions are sent.
type snapshotPusher struct {
	conn   *stateConn
	viewer string
	drop   func()

	mu   sync.Mutex
	sent bool
	last uint64
}

func (p *snapshotPusher) push(st *domain.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sent && st.Version <= p.last {
		return
	}
	p.sent, p.last = true, st.Version
	b, err := json.Marshal(st)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("marshal state")
		return
	}
	if err := p.conn.TrySend(b); errors.Is(err, ErrBackpressure) {
		log.Warn().Str("module", "adapters.http").Str("viewer", p.viewer).Msg("dropping slow viewer")
		p.drop()
	}
}

// follow subscribes before reading the current snapshot so that no commit
// falls between the two.
func follow(src StateSource, push app.Observer) app.Subscription {
	sub := src.Subscribe(push)
	push(src.State())
	return sub
}

// ServeState upgrades the request and pushes the current snapshot
// followed by every committed one until the viewer leaves.
func ServeState(ctx context.Context, c *gin.Context, src StateSource, viewer string) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("ws upgrade")
		return
	}
	conn := &stateConn{conn: ws, send: make(chan []byte, 32)}
	ctx, cancel := context.WithCancel(ctx)

	p := &snapshotPusher{conn: conn, viewer: viewer, drop: cancel}
	sub := follow(src, p.push)

	go writePump(ctx, conn, viewer)
	go func() {
		readPump(ctx, conn, viewer)
		cancel()
	}()
	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
		conn.Close()
	}()
}

func writePump(ctx context.Context, c *stateConn, viewer string) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Str("viewer", viewer).Msg("writePump write error")
				return
			}
		}
	}
}

// readPump only watches for the viewer closing the socket; inbound
// messages are ignored.
func readPump(ctx context.Context, c *stateConn, viewer string) {
	defer log.Info().Str("module", "adapters.http").Str("viewer", viewer).Msg("viewer left")
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if _, _, err := c.conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}
