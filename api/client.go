package api

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"syncstream.pro/pkg/metrics"
	"syncstream.pro/pkg/security"
)

const sendBufferSize = 256

// forwardingHeaders mark a request that reached us through a local proxy or tunnel.
var forwardingHeaders = []string{"X-Forwarded-For", "X-Real-Ip", "Forwarded", "Cf-Connecting-Ip"}

// client is one websocket connection. roomID is owned by the read loop.
type client struct {
	id     string
	ip     string
	local  bool
	roomID string
	ctx    context.Context
	cancel context.CancelFunc
	out    chan []byte
}

func (api *API) newClient(ip string, local bool) *client {
	ctx, cancel := context.WithCancel(api.ctx)
	return &client{
		id:     uuid.NewString(),
		ip:     ip,
		local:  local,
		ctx:    ctx,
		cancel: cancel,
		out:    make(chan []byte, sendBufferSize),
	}
}

// Send queues p for the writer. A client that cannot keep up is disconnected
// rather than allowed to stall the room.
func (c *client) Send(p []byte) {
	select {
	case c.out <- p:
	case <-c.ctx.Done():
	default:
		log.Warnf("client %s send buffer full, disconnecting", c.id)
		c.cancel()
	}
}

// conn serialises frame writes. Control replies written while reading go
// through Write; messages from the writer hold the lock for the whole frame.
type conn struct {
	net.Conn
	mu sync.Mutex
}

func (c *conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.Write(p)
}

func (c *conn) writeText(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return wsutil.WriteServerText(c.Conn, p)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return wsutil.WriteServerMessage(c.Conn, ws.OpPing, []byte("ping"))
}

// Serves client websocket connection
func (api *API) serveClient(nc net.Conn, cl *client) {
	wc := &conn{Conn: nc}
	api.connections.Add(1)
	metrics.Connections.Inc()
	log.Infof("client %s connected from %s", cl.id, cl.ip)

	go api.writeLoop(wc, cl)

	for {
		b, err := wsutil.ReadClientText(wc)
		if err != nil {
			break
		}
		api.dispatch(cl, b)
	}

	cl.cancel()
	_ = wc.Close()
	api.leave(cl)
	api.connections.Add(-1)
	metrics.Connections.Dec()
	log.Infof("client %s disconnected", cl.id)
}

func (api *API) writeLoop(wc *conn, cl *client) {
	interval := api.config.PingInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-cl.ctx.Done():
			// unblocks the read loop
			_ = wc.Close()
			return
		case p := <-cl.out:
			if err := wc.writeText(p); err != nil {
				log.Warnf("write to client %s: %v", cl.id, err)
				cl.cancel()
			}
		case <-ticker.C:
			if err := wc.ping(); err != nil {
				log.Warnf("ping client %s: %v", cl.id, err)
				cl.cancel()
			}
		}
	}
}

// isLocalRequest reports whether r was made on this machine and not relayed
// by a tunnel running on it.
func isLocalRequest(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !security.IsLoopback(host) {
		return false
	}
	for _, h := range forwardingHeaders {
		if r.Header.Get(h) != "" {
			return false
		}
	}
	return true
}
