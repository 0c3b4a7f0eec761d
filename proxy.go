package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
)

const (
	UpstreamServerAddress = "chat.protohackers.com:16963"
	TonyBoguscoinAddress  = "7YWHMfk9JZe0LM0g1ZauHuiSxhI"
)

// A BoguscoinRewriteProxy sits between chat clients and the real chat
// server, passing complete lines through unchanged except that every
// Boguscoin address is rewritten to its own.
type BoguscoinRewriteProxy struct {
	Upstream string
	Rewrite  string
}

// Handle proxies one client. Each client gets its own upstream connection;
// when either side hangs up, both sides are closed.
func (p *BoguscoinRewriteProxy) Handle(conn net.Conn) error {
	upstream, err := net.Dial("tcp", p.Upstream)
	if err != nil {
		CloseOrLog(conn)
		return fmt.Errorf("proxy: dial upstream %s: %w", p.Upstream, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	relay := func(src, dst net.Conn) {
		defer wg.Done()
		defer cancel()
		if err := p.relayLines(src, dst); err != nil {
			slog.Debug("proxy relay ended", "err", err)
		}
	}
	wg.Add(2)
	go relay(conn, upstream)
	go relay(upstream, conn)

	<-ctx.Done()
	CloseOrLog(conn)
	CloseOrLog(upstream)
	wg.Wait()
	return nil
}

// relayLines forwards complete lines from src to dst, rewriting addresses as
// they pass. A trailing partial line with no newline is dropped.
func (p *BoguscoinRewriteProxy) relayLines(src, dst net.Conn) error {
	reader := bufio.NewReader(src)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		msg := p.rewriteBoguscoinAddresses(line)
		if _, err := dst.Write([]byte(msg)); err != nil {
			return err
		}
	}
}

// rewriteBoguscoinAddresses replaces every space-delimited word of msg that
// looks like a Boguscoin address with the proxy's own address.
func (p *BoguscoinRewriteProxy) rewriteBoguscoinAddresses(msg string) string {
	terminated := strings.HasSuffix(msg, "\n")
	msg = strings.TrimSuffix(msg, "\n")

	fields := strings.Split(msg, " ")
	for i, f := range fields {
		if isBoguscoinAddress(f) {
			slog.Debug("identified Boguscoin address", "address", f)
			fields[i] = p.Rewrite
		}
	}

	out := strings.Join(fields, " ")
	if terminated {
		out += "\n"
	}
	return out
}

// isBoguscoinAddress reports whether word is shaped like a Boguscoin
// address: it starts with a "7" and consists of 26 to 35 alphanumeric
// characters.
func isBoguscoinAddress(word string) bool {
	if len(word) < 26 || len(word) > 35 || word[0] != '7' {
		return false
	}
	for i := 0; i < len(word); i++ {
		c := word[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}
	return true
}
