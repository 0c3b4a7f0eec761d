package main

import (
	"bufio"
	"io"
	"net"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
)

func TestRewriteBoguscoinAddresses(t *testing.T) {
	p := &BoguscoinRewriteProxy{Rewrite: TonyBoguscoinAddress}
	tests := []struct {
		name     string
		msg      string
		expected string
	}{
		{
			name:     "bare address",
			msg:      "7F1u3wSD5RbOHQmupo9nx4TnhQ\n",
			expected: TonyBoguscoinAddress + "\n",
		},
		{
			name:     "mid sentence",
			msg:      "Please send the payment of 750 Boguscoins to 7iKDZEwPZSqIvDnHvVN2r0hUWXD5rHX\n",
			expected: "Please send the payment of 750 Boguscoins to " + TonyBoguscoinAddress + "\n",
		},
		{
			name:     "two addresses",
			msg:      "7F1u3wSD5RbOHQmupo9nx4TnhQ and 7iKDZEwPZSqIvDnHvVN2r0hUWXD5rHX\n",
			expected: TonyBoguscoinAddress + " and " + TonyBoguscoinAddress + "\n",
		},
		{
			name:     "too short",
			msg:      "7abc123\n",
			expected: "7abc123\n",
		},
		{
			name:     "too long",
			msg:      "7" + strings.Repeat("a", 35) + "\n",
			expected: "7" + strings.Repeat("a", 35) + "\n",
		},
		{
			name:     "wrong first character",
			msg:      "8F1u3wSD5RbOHQmupo9nx4TnhQ\n",
			expected: "8F1u3wSD5RbOHQmupo9nx4TnhQ\n",
		},
		{
			name:     "product id is not an address",
			msg:      "your order 7WUMhKoXqAoaV8eoNx8CoD5v21-ID1234 has shipped\n",
			expected: "your order 7WUMhKoXqAoaV8eoNx8CoD5v21-ID1234 has shipped\n",
		},
		{
			name:     "no trailing newline",
			msg:      "7F1u3wSD5RbOHQmupo9nx4TnhQ",
			expected: TonyBoguscoinAddress,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, p.rewriteBoguscoinAddresses(tc.msg))
		})
	}
}

func TestBoguscoinRewriteProxy(t *testing.T) {
	// A stand-in upstream that echoes lines straight back.
	upstream, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NilError(t, err)
	defer upstream.Close()
	go func() {
		conn, err := upstream.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io.Copy(conn, conn)
	}()

	p := &BoguscoinRewriteProxy{Upstream: upstream.Addr().String(), Rewrite: TonyBoguscoinAddress}
	client, server := net.Pipe()
	done := make(chan error, 1)
	go func() { done <- p.Handle(server) }()

	_, err = client.Write([]byte("pay 7F1u3wSD5RbOHQmupo9nx4TnhQ\n"))
	assert.NilError(t, err)

	// The address is rewritten on the way upstream; the echo comes back
	// already carrying Tony's address.
	line, err := bufio.NewReader(client).ReadString('\n')
	assert.NilError(t, err)
	assert.Equal(t, "pay "+TonyBoguscoinAddress+"\n", line)

	assert.NilError(t, client.Close())
	assert.NilError(t, <-done)
}
