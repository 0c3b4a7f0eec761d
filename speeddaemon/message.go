package speeddaemon

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Message types for the Speed Daemon protocol.
//
// Each message consists of a single u8 specifying the message type, followed by the message contents.
// Field types are u8, u16, and u32, all unsigned big-endian integers, and str, a length-prefixed ASCII string.
const (
	ErrorMessageType         uint8 = 0x10
	PlateMessageType         uint8 = 0x20
	TicketMessageType        uint8 = 0x21
	WantHeartbeatMessageType uint8 = 0x40
	HeartbeatMessageType     uint8 = 0x41
	IAmCameraMessageType     uint8 = 0x80
	IAmDispatcherMessageType uint8 = 0x81
)

// MaxStringLength is the longest str the wire format can carry: the length prefix is a single byte.
const MaxStringLength = 255

// ErrStringTooLong is returned when marshalling a message whose plate or error text exceeds MaxStringLength.
// It indicates a programming error on our side, never a wire condition.
var ErrStringTooLong = errors.New("string exceeds 255 bytes")

// ErrUnknownMessageType is returned (wrapped in a MalformedFrameError) for a type byte the protocol does not define.
var ErrUnknownMessageType = errors.New("unknown message type")

// A MalformedFrameError reports bytes that cannot form a complete client message:
// an unrecognized type byte, or a stream that ended partway through a frame.
// It is always fatal to the connection that produced it.
type MalformedFrameError struct {
	// Type is the message type byte that introduced the frame.
	Type uint8
	Err  error
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("malformed frame (type %#02x): %v", e.Type, e.Err)
}

func (e *MalformedFrameError) Unwrap() error { return e.Err }

// A ClientMessage is one of the four messages a client may send:
// PlateMessage, WantHeartbeatMessage, IAmCameraMessage, or IAmDispatcherMessage.
type ClientMessage interface {
	clientMessage()
}

func (*PlateMessage) clientMessage()         {}
func (*WantHeartbeatMessage) clientMessage() {}
func (*IAmCameraMessage) clientMessage()     {}
func (*IAmDispatcherMessage) clientMessage() {}

// ReadClientMessage reads exactly one client message from r.
//
// io.EOF before the type byte is a clean close and is returned untouched.
// Everything else that prevents a complete frame yields a *MalformedFrameError:
// an undefined type byte wraps ErrUnknownMessageType, and a stream cut mid-frame
// wraps the underlying read error (EOF inside a frame is an error, not a close).
func ReadClientMessage(r io.Reader) (ClientMessage, error) {
	var t uint8
	if err := binary.Read(r, binary.BigEndian, &t); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("error reading message type: %w", err)
	}

	var (
		m   ClientMessage
		err error
	)
	switch t {
	case PlateMessageType:
		m, err = readPlateMessage(r)
	case WantHeartbeatMessageType:
		m, err = readWantHeartbeatMessage(r)
	case IAmCameraMessageType:
		m, err = readIAmCameraMessage(r)
	case IAmDispatcherMessageType:
		m, err = readIAmDispatcherMessage(r)
	default:
		return nil, &MalformedFrameError{Type: t, Err: ErrUnknownMessageType}
	}
	if err != nil {
		return nil, &MalformedFrameError{Type: t, Err: err}
	}
	return m, nil
}

// An ErrorMessage is sent to a client when it does something the protocol declares an error.
// The client is disconnected immediately afterwards.
type ErrorMessage struct {
	Msg string
}

func (m *ErrorMessage) MarshalBinary() ([]byte, error) {
	return appendString([]byte{ErrorMessageType}, m.Msg)
}

// A PlateMessage reports that a camera observed number plate Plate at Timestamp.
//
// Timestamps are exactly the same as Unix timestamps (counting seconds since 1st of January 1970), except unsigned.
type PlateMessage struct {
	Plate     string
	Timestamp uint32
}

func readPlateMessage(r io.Reader) (*PlateMessage, error) {
	plate, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("error reading plate: %w", err)
	}
	var timestamp uint32
	if err := binary.Read(r, binary.BigEndian, &timestamp); err != nil {
		return nil, fmt.Errorf("error reading timestamp: %w", err)
	}
	return &PlateMessage{Plate: plate, Timestamp: timestamp}, nil
}

// A TicketMessage instructs a dispatcher to perform the necessary legal rituals for a speeding car.
//
// Mile1 and Timestamp1 always refer to the earlier of the two observations.
// Speed is in hundredths of a mile per hour.
type TicketMessage struct {
	Plate      string
	Road       uint16
	Mile1      uint16
	Timestamp1 uint32
	Mile2      uint16
	Timestamp2 uint32
	Speed      uint16
}

func (m *TicketMessage) MarshalBinary() ([]byte, error) {
	data, err := appendString([]byte{TicketMessageType}, m.Plate)
	if err != nil {
		return nil, err
	}
	data = binary.BigEndian.AppendUint16(data, m.Road)
	data = binary.BigEndian.AppendUint16(data, m.Mile1)
	data = binary.BigEndian.AppendUint32(data, m.Timestamp1)
	data = binary.BigEndian.AppendUint16(data, m.Mile2)
	data = binary.BigEndian.AppendUint32(data, m.Timestamp2)
	data = binary.BigEndian.AppendUint16(data, m.Speed)
	return data, nil
}

// A WantHeartbeatMessage requests heartbeats at the given interval, specified in deciseconds.
// An interval of 0 means the client does not want to receive heartbeats.
type WantHeartbeatMessage struct {
	Interval uint32
}

func readWantHeartbeatMessage(r io.Reader) (*WantHeartbeatMessage, error) {
	var interval uint32
	if err := binary.Read(r, binary.BigEndian, &interval); err != nil {
		return nil, fmt.Errorf("error reading interval: %w", err)
	}
	return &WantHeartbeatMessage{Interval: interval}, nil
}

// A HeartbeatMessage assures the client that the server is still functioning,
// even in the absence of any other communication.
type HeartbeatMessage struct{}

func (m *HeartbeatMessage) MarshalBinary() ([]byte, error) {
	return []byte{HeartbeatMessageType}, nil
}

// An IAmCameraMessage identifies the client as a camera at mile marker Mile on road Road,
// where the speed limit is Limit miles per hour.
type IAmCameraMessage struct {
	Road  uint16
	Mile  uint16
	Limit uint16
}

func readIAmCameraMessage(r io.Reader) (*IAmCameraMessage, error) {
	var m IAmCameraMessage
	if err := binary.Read(r, binary.BigEndian, &m); err != nil {
		return nil, fmt.Errorf("error reading camera identity: %w", err)
	}
	return &m, nil
}

// An IAmDispatcherMessage identifies the client as a ticket dispatcher responsible for Roads.
type IAmDispatcherMessage struct {
	Roads []uint16
}

func readIAmDispatcherMessage(r io.Reader) (*IAmDispatcherMessage, error) {
	var numroads uint8
	if err := binary.Read(r, binary.BigEndian, &numroads); err != nil {
		return nil, fmt.Errorf("error reading numroads: %w", err)
	}
	roads := make([]uint16, numroads)
	for i := range roads {
		if err := binary.Read(r, binary.BigEndian, &roads[i]); err != nil {
			return nil, fmt.Errorf("error reading road %d: %w", i, err)
		}
	}
	return &IAmDispatcherMessage{Roads: roads}, nil
}

// readString reads a length-prefixed str: a u8 length followed by that many bytes of ASCII.
func readString(r io.Reader) (string, error) {
	var length uint8
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// appendString appends a length-prefixed str to data.
func appendString(data []byte, s string) ([]byte, error) {
	if len(s) > MaxStringLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrStringTooLong, len(s))
	}
	data = append(data, uint8(len(s)))
	return append(data, s...), nil
}
