package main

import (
	"fmt"
	"log/slog"
	"net"
	"strings"
)

func CloseOrLog(conn net.Conn) {
	if err := conn.Close(); err != nil {
		slog.Error("error closing connection", "err", err, "remote_addr", conn.RemoteAddr())
	}
}

func LogReadError(err error) {
	if err != nil {
		slog.Error("read error", "err", err)
	}
}

func LogWriteError(err error) {
	if err != nil {
		slog.Error("write error", "err", err)
	}
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}
