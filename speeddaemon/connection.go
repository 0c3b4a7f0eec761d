package speeddaemon

import (
	"encoding"
	"log/slog"
	"net"
	"sync"
	"time"
)

// outboundQueueSize bounds the frames buffered for one client. A client that
// stops reading stalls only itself: ticket delivery treats a full queue as
// "not ready" and leaves the ticket on the road's pending queue.
const outboundQueueSize = 512

const Decisecond = 100 * time.Millisecond

// A Conn wraps one accepted client connection. All outbound frames funnel
// through a single writer goroutine so frames from the session, the
// heartbeat schedule, and ticket delivery never interleave on the wire.
type Conn struct {
	net.Conn
	ID uint64

	// Heartbeat is non-nil once the client has sent WantHeartbeat, even if
	// the requested interval was 0. Only the session goroutine touches it.
	Heartbeat *Heartbeat

	outbound  chan encoding.BinaryMarshaler
	closed    chan struct{}
	closeOnce sync.Once
}

func newConn(conn net.Conn, id uint64) *Conn {
	c := &Conn{
		Conn:     conn,
		ID:       id,
		outbound: make(chan encoding.BinaryMarshaler, outboundQueueSize),
		closed:   make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// Send queues m for delivery, waiting for queue space if it must. It reports
// false once the connection is closed.
func (c *Conn) Send(m encoding.BinaryMarshaler) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case <-c.closed:
		return false
	case c.outbound <- m:
		return true
	}
}

// SendTicket queues t without waiting. A closed connection or a full queue
// refuses the ticket, so the caller can hold on to it for another dispatcher
// instead of losing it.
func (c *Conn) SendTicket(t *TicketMessage) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.outbound <- t:
		return true
	default:
		return false
	}
}

// Close releases the connection. The writer flushes frames queued before the
// call, so an Error frame sent just before Close still reaches the client,
// and then closes the socket. Close never blocks and may be called from any
// goroutine, repeatedly.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	return nil
}

func (c *Conn) writeLoop() {
	defer closeOrLog(c.Conn)
	for {
		select {
		case <-c.closed:
			c.flushOutbound()
			return
		case m := <-c.outbound:
			if err := c.writeMessage(m); err != nil {
				c.Close()
				return
			}
		}
	}
}

// flushOutbound drains frames that were queued before the close signal,
// stopping at the first transport error. Frames queued after it returns are
// discarded.
func (c *Conn) flushOutbound() {
	for {
		select {
		case m := <-c.outbound:
			if err := c.writeMessage(m); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) writeMessage(m encoding.BinaryMarshaler) error {
	data, err := m.MarshalBinary()
	if err != nil {
		slog.Error("error marshalling outbound message", "connection", c.ID, "err", err)
		return nil
	}
	if _, err := c.Conn.Write(data); err != nil {
		slog.Error("error writing to client", "connection", c.ID, "err", err)
		return err
	}
	return nil
}

// A Heartbeat records a client's single WantHeartbeat request.
type Heartbeat struct {
	// Interval between beats, in deciseconds. 0 means the client asked for
	// no heartbeats at all.
	Interval uint32
}

// startHeartbeat begins the heartbeat schedule m requests. An interval of 0
// starts nothing but still counts as the connection's one WantHeartbeat.
func (c *Conn) startHeartbeat(m *WantHeartbeatMessage) {
	c.Heartbeat = &Heartbeat{Interval: m.Interval}
	if m.Interval == 0 {
		return
	}
	go c.heartbeat(time.Duration(m.Interval) * Decisecond)
}

// heartbeat emits one Heartbeat message per interval until the connection
// closes. The first beat fires one full interval after the request.
func (c *Conn) heartbeat(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case t := <-ticker.C:
			slog.Debug("heartbeat", "time", t, "connection", c.ID)
			if !c.Send(&HeartbeatMessage{}) {
				return
			}
		}
	}
}
