package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
)

// serve accepts TCP connections on addr until ctx is cancelled, running
// handle in its own goroutine for each one. Handler errors are logged and
// never stop the accept loop.
func serve(ctx context.Context, service, addr string, handle func(net.Conn) error) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%s: listen on %s: %w", service, addr, err)
	}
	return serveListener(ctx, service, listener, handle)
}

func serveListener(ctx context.Context, service string, listener net.Listener, handle func(net.Conn) error) error {
	slog.Info("listening", "service", service, "addr", listener.Addr())

	// Closing the listener is what unblocks Accept on shutdown.
	stop := context.AfterFunc(ctx, func() {
		if err := listener.Close(); err != nil {
			slog.Error("error closing listener", "service", service, "err", err)
		}
	})
	defer stop()

	var active atomic.Int64
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Error("accept error", "service", service, "err", err)
			continue
		}

		slog.Info("connection accepted",
			"service", service, "remote_addr", conn.RemoteAddr(), "active", active.Add(1))
		go func() {
			defer func() {
				slog.Info("connection done", "service", service, "active", active.Add(-1))
			}()
			if err := handle(conn); err != nil {
				slog.Error("error handling connection", "service", service, "err", err)
			}
		}()
	}
}
