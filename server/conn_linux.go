//go:build linux

package server

import (
	"errors"

	"golang.org/x/sys/unix"
)

// maxIOV 对应 IOV_MAX，超出部分等下一次发送
const maxIOV = 1024

// WriteVectored 在原始描述符上执行一次 writev。
// 套接字是非阻塞的，发送缓冲区满时返回 EAGAIN，不会卡住 Tick。
func (c *tcpConn) WriteVectored(bufs [][]byte) (int, error) {
	if len(bufs) > maxIOV {
		bufs = bufs[:maxIOV]
	}
	var (
		n    int
		werr error
	)
	err := c.raw.Write(func(fd uintptr) bool {
		for {
			n, werr = unix.Writev(int(fd), bufs)
			if !errors.Is(werr, unix.EINTR) {
				return true
			}
		}
	})
	if err != nil {
		return 0, err
	}
	if werr != nil {
		return 0, werr
	}
	return n, nil
}
