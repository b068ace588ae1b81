package server

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"
	"time"
)

// Conn Transport 使用的连接接口，TCP 与 WebSocket 都实现它
type Conn interface {
	Read(p []byte) (int, error)
	SetReadDeadline(t time.Time) error
	// WriteVectored 对 bufs 做一次不等待对端的写，返回写入的字节数
	WriteVectored(bufs [][]byte) (int, error)
	RemoteAddr() net.Addr
	Close() error
}

// tcpConn 包装接入的 TCP 连接，WriteVectored 按平台实现
type tcpConn struct {
	*net.TCPConn
	raw         syscall.RawConn
	writeWindow time.Duration
}

func newTCPConn(c *net.TCPConn, writeWindow time.Duration) (*tcpConn, error) {
	raw, err := c.SyscallConn()
	if err != nil {
		return nil, err
	}
	_ = c.SetNoDelay(true)
	return &tcpConn{TCPConn: c, raw: raw, writeWindow: writeWindow}, nil
}

// errWouldBlock 非阻塞写在发送缓冲区满时返回
var errWouldBlock error = syscall.EAGAIN

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// isClosed 表示对端已彻底断开的错误
func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
