package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
)

const insertRequestDelimiter = "="

// The version key is reserved: retrieving it reports the store build, and
// inserts to it are ignored.
const (
	versionKey   = "version"
	versionValue = "Ken's Key-Value Store 1.0"
)

// A KeyValueStore is a tiny datagram key/value database. Each request is a
// single datagram: "key=value" inserts (the first equals sign splits, later
// ones belong to the value) and a bare "key" retrieves "key=value". All
// requests and responses fit in a datagram shorter than 1000 bytes.
type KeyValueStore struct {
	mu   sync.Mutex
	data map[string]string
}

func NewKeyValueStore() *KeyValueStore {
	return &KeyValueStore{data: make(map[string]string)}
}

// ListenAndServe answers datagrams on addr until ctx is cancelled.
func (p *KeyValueStore) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return fmt.Errorf("kvstore: listen on %s: %w", addr, err)
	}
	slog.Info("listening", "service", "kvstore", "addr", conn.LocalAddr())
	return p.listen(ctx, conn)
}

func (p *KeyValueStore) listen(ctx context.Context, conn net.PacketConn) error {
	stop := context.AfterFunc(ctx, func() {
		if err := conn.Close(); err != nil {
			slog.Error("error closing kvstore socket", "err", err)
		}
	})
	defer stop()

	buf := make([]byte, 1024)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kvstore: read: %w", err)
		}
		p.handleRequest(conn, addr, buf[:n])
	}
}

func (p *KeyValueStore) handleRequest(conn net.PacketConn, addr net.Addr, request []byte) {
	key, value, isInsert := strings.Cut(string(request), insertRequestDelimiter)
	if isInsert {
		if key == versionKey {
			return
		}
		slog.Debug("insert", "key", key, "value", value)
		p.mu.Lock()
		p.data[key] = value
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	v := p.data[key]
	p.mu.Unlock()
	if key == versionKey {
		v = versionValue
	}
	slog.Debug("retrieve", "key", key, "value", v)

	// The response goes back to wherever the request came from. A key that
	// was never inserted reads as the empty value.
	if _, err := conn.WriteTo([]byte(key+insertRequestDelimiter+v), addr); err != nil {
		LogWriteError(err)
	}
}
