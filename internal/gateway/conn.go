package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/campus-quiz-core/internal/obslog"
	"github.com/park285/campus-quiz-core/pkg/quizdto"
)

var (
	ErrConnClosed   = errors.New("connection closed")
	ErrSlowConsumer = errors.New("outbound queue full")
)

const outboundBuffer = 64

// conn is one websocket client. A single writer goroutine drains out, so each
// client sees events in the order they were queued.
type conn struct {
	id     string
	userID string
	ws     *websocket.Conn

	out       chan quizdto.Event
	done      chan struct{}
	closeOnce sync.Once

	writeTimeout time.Duration
	pingInterval time.Duration
}

func newConn(ws *websocket.Conn, userID string, writeTimeout, pingInterval time.Duration) *conn {
	return &conn{
		id:           uuid.NewString(),
		userID:       userID,
		ws:           ws,
		out:          make(chan quizdto.Event, outboundBuffer),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
	}
}

func (c *conn) ID() string            { return c.id }
func (c *conn) UserID() string        { return c.userID }
func (c *conn) Done() <-chan struct{} { return c.done }

// Send queues ev without blocking on the network. A client that cannot keep up
// is disconnected.
func (c *conn) Send(ctx context.Context, ev quizdto.Event) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.out <- ev:
		return nil
	case <-c.done:
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
		obslog.L().Warn("ws_slow_consumer", zap.String("channel_id", c.id), zap.String("user_id", c.userID))
		c.close(websocket.StatusPolicyViolation, "slow consumer")
		return ErrSlowConsumer
	}
}

func (c *conn) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close(code, reason)
	})
}

func (c *conn) writeLoop(ctx context.Context) {
	t := time.NewTicker(c.pingInterval)
	defer t.Stop()
	consecutivePingFailures := 0
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case ev := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
			err := wsjson.Write(wctx, c.ws, ev)
			cancel()
			if err != nil {
				obslog.L().Debug("ws_write_error", zap.String("channel_id", c.id), zap.String("type", ev.Type), zap.Error(err))
				c.close(websocket.StatusGoingAway, "write failure")
				return
			}
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
			err := c.ws.Ping(pctx)
			cancel()
			if err != nil {
				consecutivePingFailures++
				if consecutivePingFailures >= 2 {
					c.close(websocket.StatusGoingAway, "ping failure")
					return
				}
				continue
			}
			consecutivePingFailures = 0
		}
	}
}
