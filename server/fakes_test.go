package server

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"tickzone/protocol"
)

// fakeConn is an in-memory Conn. Reads never block: with nothing buffered
// they time out immediately, as a socket would at the end of its window.
type fakeConn struct {
	mu      sync.Mutex
	in      bytes.Buffer
	eof     bool
	out     bytes.Buffer
	writeFn func(bufs [][]byte) (int, error)
	closed  bool
}

func newFakeConn() *fakeConn { return &fakeConn{} }

func (c *fakeConn) feed(t *testing.T, packets ...protocol.Packet) {
	t.Helper()
	for _, p := range packets {
		b, err := protocol.Serialize(p)
		if err != nil {
			t.Fatalf("Serialize: %v", err)
		}
		c.feedRaw(b)
	}
}

func (c *fakeConn) feedRaw(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.in.Write(b)
}

func (c *fakeConn) hangUp() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eof = true
}

func (c *fakeConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.in.Len() > 0 {
		return c.in.Read(p)
	}
	if c.eof {
		return 0, io.EOF
	}
	return 0, os.ErrDeadlineExceeded
}

func (c *fakeConn) SetReadDeadline(time.Time) error { return nil }

func (c *fakeConn) WriteVectored(bufs [][]byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeFn != nil {
		return c.writeFn(bufs)
	}
	n := 0
	for _, b := range bufs {
		c.out.Write(b)
		n += len(b)
	}
	return n, nil
}

func (c *fakeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// sent parses and clears everything written so far.
func (c *fakeConn) sent(t *testing.T) []protocol.Packet {
	t.Helper()
	c.mu.Lock()
	raw := append([]byte(nil), c.out.Bytes()...)
	c.out.Reset()
	c.mu.Unlock()

	var out []protocol.Packet
	r := bytes.NewReader(raw)
	for r.Len() > 0 {
		p, err := protocol.ReadPacket(r, 0)
		if err != nil {
			t.Fatalf("ReadPacket: %v", err)
		}
		out = append(out, p)
	}
	return out
}

func ofCategory(packets []protocol.Packet, c protocol.Category) []protocol.Packet {
	var out []protocol.Packet
	for _, p := range packets {
		if p.Category == c {
			out = append(out, p)
		}
	}
	return out
}

func decodeBody(t *testing.T, p protocol.Packet, body protocol.Body) {
	t.Helper()
	if err := protocol.Decode(p, body); err != nil {
		t.Fatalf("Decode %s: %v", p.Category, err)
	}
}

// observeLogs routes the package logger into an observer for one test.
func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	prev := Log
	SetLogger(zap.New(core))
	t.Cleanup(func() { Log = prev })
	return logs
}

var errBoom = errors.New("boom")
