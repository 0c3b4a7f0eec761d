package main

import (
	"context"
	"net"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestKeyValueStore(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	assert.NilError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	store := NewKeyValueStore()
	done := make(chan error, 1)
	go func() { done <- store.listen(ctx, pc) }()

	client, err := net.Dial("udp", pc.LocalAddr().String())
	assert.NilError(t, err)
	defer client.Close()
	assert.NilError(t, client.SetDeadline(time.Now().Add(5*time.Second)))

	request := func(s string) {
		_, err := client.Write([]byte(s))
		assert.NilError(t, err)
	}
	response := func() string {
		buf := make([]byte, 1024)
		n, err := client.Read(buf)
		assert.NilError(t, err)
		return string(buf[:n])
	}

	request("foo=bar")
	request("foo")
	assert.Equal(t, "foo=bar", response())

	// Last write wins.
	request("foo=baz")
	request("foo")
	assert.Equal(t, "foo=baz", response())

	// Only the first equals sign splits key from value.
	request("a=b=c")
	request("a")
	assert.Equal(t, "a=b=c", response())

	// A key nobody inserted reads as the empty value.
	request("missing")
	assert.Equal(t, "missing=", response())

	// The version key cannot be overwritten.
	request("version=hacked")
	request("version")
	assert.Equal(t, "version=Ken's Key-Value Store 1.0", response())

	cancel()
	assert.NilError(t, <-done)
}
