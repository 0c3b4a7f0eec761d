package main

import (
	"fmt"
	"io"
	"log/slog"
	"net"
)

// echo copies every byte a client sends straight back to it, until the
// client hangs up.
func echo(conn net.Conn) error {
	defer CloseOrLog(conn)

	n, err := io.Copy(conn, conn)
	if err != nil {
		return fmt.Errorf("echo: %w", err)
	}
	slog.Debug("echoed", "bytes", n, "remote_addr", conn.RemoteAddr())
	return nil
}
