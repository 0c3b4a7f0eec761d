package speeddaemon

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
)

// SpeedLimitEnforcementServer coordinates enforcement of average speed limits on the Freedom Island road network.
//
// Two types of clients are supported: cameras and ticket dispatchers.
// Clients connect over TCP and speak a protocol using a binary format.
//
// When the client does something that this protocol specification declares "an error", the server must send the
// client an appropriate Error message and immediately disconnect that client.
type SpeedLimitEnforcementServer struct {
	ConnectionID atomic.Uint64
	Registry     *Registry
}

// NewServer returns a server with an empty registry. marginCentiMPH is the
// enforcement allowance in hundredths of a mile per hour; 0 is zero
// tolerance.
func NewServer(marginCentiMPH uint16) *SpeedLimitEnforcementServer {
	registry := NewRegistry()
	registry.MarginCentiMPH = marginCentiMPH
	return &SpeedLimitEnforcementServer{Registry: registry}
}

var MultipleWantHeartbeatMessagesError = &ErrorMessage{Msg: "multiple WantHeartbeat messages"}

var AlreadyIdentifiedError = &ErrorMessage{Msg: "client has already identified itself"}

var NotACameraError = &ErrorMessage{Msg: "client is not a camera"}

// Handle handles a client connection from first byte to disconnect. It
// returns nil for a clean exit, including protocol violations answered with
// an Error frame, and an error only for failures worth logging.
func (s *SpeedLimitEnforcementServer) Handle(conn net.Conn) error {
	client := newConn(conn, s.ConnectionID.Add(1))
	slog.Info("client connected", "connection", client.ID, "remote_addr", conn.RemoteAddr())
	defer closeOrLog(client)

	reader := bufio.NewReader(client)
	for {
		m, err := ReadClientMessage(reader)
		if err != nil {
			return readFailure(client, err)
		}
		switch m := m.(type) {
		case *IAmCameraMessage:
			return s.serveCamera(client, reader, m)
		case *IAmDispatcherMessage:
			return s.serveDispatcher(client, reader, m)
		case *WantHeartbeatMessage:
			// It is an error for a client to send multiple WantHeartbeat messages on a single connection.
			if client.Heartbeat != nil {
				return sendError(client, MultipleWantHeartbeatMessagesError)
			}
			client.startHeartbeat(m)
		case *PlateMessage:
			return sendError(client, NotACameraError)
		}
	}
}

// serveCamera runs the rest of the session for a client identified as a
// camera. Every Plate report becomes a sighting in the registry, which
// issues tickets as offenses are proven.
func (s *SpeedLimitEnforcementServer) serveCamera(client *Conn, reader *bufio.Reader, identity *IAmCameraMessage) error {
	camera := Camera{Road: identity.Road, Mile: identity.Mile, Limit: identity.Limit}
	s.Registry.BindCamera(camera)
	slog.Info("camera connected", "connection", client.ID, "road", camera.Road, "mile", camera.Mile, "limit", camera.Limit)

	for {
		m, err := ReadClientMessage(reader)
		if err != nil {
			return readFailure(client, err)
		}
		switch m := m.(type) {
		case *PlateMessage:
			slog.Debug("received plate message", "connection", client.ID,
				"road", camera.Road, "mile", camera.Mile, "plate", m.Plate, "timestamp", m.Timestamp)
			s.Registry.RecordSighting(Sighting{
				Plate:     m.Plate,
				Road:      camera.Road,
				Mile:      camera.Mile,
				Timestamp: m.Timestamp,
				Limit:     camera.Limit,
			})
		case *WantHeartbeatMessage:
			// It is an error for a client to send multiple WantHeartbeat messages on a single connection.
			if client.Heartbeat != nil {
				return sendError(client, MultipleWantHeartbeatMessagesError)
			}
			client.startHeartbeat(m)
		case *IAmCameraMessage, *IAmDispatcherMessage:
			return sendError(client, AlreadyIdentifiedError)
		}
	}
}

// serveDispatcher registers the client for its roads, which hands it any
// tickets already queued for them, and then holds the line open. The
// registration lasts until the connection ends.
func (s *SpeedLimitEnforcementServer) serveDispatcher(client *Conn, reader *bufio.Reader, identity *IAmDispatcherMessage) error {
	d := TicketDispatcher{Roads: identity.Roads}
	s.Registry.BindDispatcher(d.Roads, client)
	defer s.Registry.Unbind(d.Roads, client)
	slog.Info("dispatcher connected", "connection", client.ID, "roads", d.Roads)

	for {
		m, err := ReadClientMessage(reader)
		if err != nil {
			return readFailure(client, err)
		}
		switch m := m.(type) {
		case *PlateMessage:
			return sendError(client, NotACameraError)
		case *WantHeartbeatMessage:
			// It is an error for a client to send multiple WantHeartbeat messages on a single connection.
			if client.Heartbeat != nil {
				return sendError(client, MultipleWantHeartbeatMessagesError)
			}
			client.startHeartbeat(m)
		case *IAmCameraMessage, *IAmDispatcherMessage:
			return sendError(client, AlreadyIdentifiedError)
		}
	}
}

// readFailure resolves a failed read. A clean end of stream ends the session
// quietly, an unrecognized type byte earns the client one Error frame, and a
// frame truncated mid-body just closes the connection.
func readFailure(client *Conn, err error) error {
	var malformed *MalformedFrameError
	if errors.As(err, &malformed) {
		if errors.Is(err, ErrUnknownMessageType) {
			slog.Error("unexpected message type", "connection", client.ID, "type", malformed.Type)
			return sendError(client, illegalMessage(malformed.Type))
		}
		slog.Debug("malformed frame", "connection", client.ID, "err", err)
		return nil
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("read error: %w", err)
}

// sendError queues an ErrorMessage for the client and disconnects it. This
// is the uniform response to every protocol violation.
func sendError(client *Conn, m *ErrorMessage) error {
	slog.Debug("protocol violation", "connection", client.ID, "msg", m.Msg)
	client.Send(m)
	return client.Close()
}

// TODO: Move to utility package reusable for other problems.
func closeOrLog(conn net.Conn) {
	if err := conn.Close(); err != nil {
		slog.Error("error closing connection", "err", err, "remote_addr", conn.RemoteAddr())
	}
}

func illegalMessage(t uint8) *ErrorMessage {
	return &ErrorMessage{Msg: fmt.Sprintf("illegal message: %02X", t)}
}
