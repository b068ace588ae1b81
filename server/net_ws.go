package server

import (
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn 用 WebSocket 二进制消息承载帧流。
// gorilla/websocket 的读错误（包括超时）都是致命的，
// 因此由读泵独占连接，Read 在通道上模拟读超时。
type wsConn struct {
	ws          *websocket.Conn
	in          chan []byte
	buf         []byte
	writeWindow time.Duration

	mu       sync.Mutex
	deadline time.Time

	closeOnce sync.Once
	done      chan struct{}
}

func newWSConn(ws *websocket.Conn, maxFrameSize int, writeWindow time.Duration) *wsConn {
	c := &wsConn{
		ws:          ws,
		in:          make(chan []byte, 64),
		writeWindow: writeWindow,
		done:        make(chan struct{}),
	}
	ws.SetReadLimit(int64(maxFrameSize) * 4)
	go c.readPump()
	return c
}

// readPump 转发二进制消息，连接出错后关闭 in
func (c *wsConn) readPump() {
	defer close(c.in)
	for {
		typ, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		select {
		case c.in <- payload:
		case <-c.done:
			return
		}
	}
}

func (c *wsConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.deadline = t
	c.mu.Unlock()
	return nil
}

func (c *wsConn) Read(p []byte) (int, error) {
	if len(c.buf) == 0 {
		c.mu.Lock()
		deadline := c.deadline
		c.mu.Unlock()

		var timeout <-chan time.Time
		if !deadline.IsZero() {
			timer := time.NewTimer(time.Until(deadline))
			defer timer.Stop()
			timeout = timer.C
		}
		select {
		case msg, ok := <-c.in:
			if !ok {
				return 0, io.EOF
			}
			c.buf = msg
		case <-timeout:
			return 0, os.ErrDeadlineExceeded
		}
	}
	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}

// WriteVectored 把 bufs 合并为一条二进制消息发送
func (c *wsConn) WriteVectored(bufs [][]byte) (int, error) {
	total := 0
	for _, b := range bufs {
		total += len(b)
	}
	msg := make([]byte, 0, total)
	for _, b := range bufs {
		msg = append(msg, b...)
	}
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeWindow)); err != nil {
		return 0, err
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, msg); err != nil {
		return 0, err
	}
	return total, nil
}

func (c *wsConn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// 开发环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// HandleWS WebSocket 接入，之后与 TCP 客户端走同一路径
func (z *Zone) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnw("upgrade error", "zone", z.name, "err", err)
		return
	}
	window := z.cfg.WriteWindow
	if window < 50*time.Millisecond {
		window = 50 * time.Millisecond
	}
	z.Admit(newWSConn(ws, z.cfg.MaxFrameSize, window))
}
