//go:build !linux

package server

import (
	"net"
	"time"
)

// WriteVectored 非 Linux 平台用 net.Buffers + 写超时代替 writev，
// 超时前写出的部分视为成功的部分写。
func (c *tcpConn) WriteVectored(bufs [][]byte) (int, error) {
	if err := c.SetWriteDeadline(time.Now().Add(c.writeWindow)); err != nil {
		return 0, err
	}
	v := make(net.Buffers, len(bufs))
	copy(v, bufs)
	n, err := v.WriteTo(c.TCPConn)
	if n > 0 {
		return int(n), nil
	}
	return 0, err
}
