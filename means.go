package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
)

// priceMessageSize is one fixed-width frame: a type byte and two big-endian
// int32 fields.
const priceMessageSize = 9

// trackPrices serves one client's asset price history. Each connection gets
// its own isolated store; inserts from one client are never visible to
// another.
//
// 'I' frames insert a price at a timestamp, 'Q' frames ask for the mean
// price over an inclusive timestamp range. Anything else ends the session.
func trackPrices(conn net.Conn) error {
	defer CloseOrLog(conn)

	prices := make(map[int32]int32)
	buf := make([]byte, priceMessageSize)
	for {
		if _, err := io.ReadFull(conn, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("means: read: %w", err)
		}

		kind := buf[0]
		first := int32(binary.BigEndian.Uint32(buf[1:5]))
		second := int32(binary.BigEndian.Uint32(buf[5:9]))

		switch kind {
		case 'I':
			// Inserting the same timestamp twice is undefined behavior in
			// the protocol; the last write wins here.
			prices[first] = second
		case 'Q':
			mean := meanPrice(prices, first, second)
			var out [4]byte
			binary.BigEndian.PutUint32(out[:], uint32(mean))
			if _, err := conn.Write(out[:]); err != nil {
				return fmt.Errorf("means: write: %w", err)
			}
		default:
			slog.Debug("unknown price message type", "type", kind, "remote_addr", conn.RemoteAddr())
			return nil
		}
	}
}

// meanPrice averages the prices whose timestamps fall in [mintime, maxtime],
// truncating toward zero. An empty or inverted range has mean 0.
func meanPrice(prices map[int32]int32, mintime, maxtime int32) int32 {
	var sum, count int64
	for ts, price := range prices {
		if ts < mintime || ts > maxtime {
			continue
		}
		sum += int64(price)
		count++
	}
	if count == 0 {
		return 0
	}
	return int32(sum / count)
}
