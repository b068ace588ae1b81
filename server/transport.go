package server

import (
	"errors"
	"sync"
	"time"

	"github.com/eapache/queue"

	"tickzone/protocol"
)

const readChunkSize = 16 << 10

// TransportOptions 单个 Transport 的参数；零值表示不限制，MaxSendErrors 除外（回落到默认值）
type TransportOptions struct {
	ReceiveWindow      time.Duration // 0 表示一直等到可读
	MaxSendErrors      int
	MaxFrameSize       int
	MaxOutboundPackets int
	Metrics            *ZoneMetrics
}

// errorCounter 连续 I/O 失败计数，自带锁，可在 Tick 之外的协程上更新
type errorCounter struct {
	mu sync.Mutex
	n  int
}

func (c *errorCounter) inc() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n
}

func (c *errorCounter) reset() {
	c.mu.Lock()
	c.n = 0
	c.mu.Unlock()
}

func (c *errorCounter) load() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Transport 在一个 Conn 上收发帧。
// 出站包排队到 FlushSend；入站包在 Receive 中收集，由 TakeInbound 取走。
// 除错误计数外，Transport 只归 Tick 协程使用。
type Transport struct {
	id   uint64
	conn Conn
	opts TransportOptions

	outbound *queue.Queue // protocol.Packet
	residue  [][]byte     // 已序列化但对端还没收下的字节
	inbound  []protocol.Packet
	framer   *protocol.Framer
	readBuf  []byte

	failures   errorCounter
	closed     bool
	overflowed bool
}

func NewTransport(id uint64, conn Conn, opts TransportOptions) *Transport {
	if opts.MaxSendErrors <= 0 {
		opts.MaxSendErrors = DefaultMaxSendErrors
	}
	return &Transport{
		id:       id,
		conn:     conn,
		opts:     opts,
		outbound: queue.New(),
		framer:   protocol.NewFramer(opts.MaxFrameSize),
		readBuf:  make([]byte, readChunkSize),
	}
}

// Enqueue 压入出站队列；超过 MaxOutboundPackets 时丢弃并标记为不健康
func (t *Transport) Enqueue(p protocol.Packet) {
	if limit := t.opts.MaxOutboundPackets; limit > 0 && t.Pending() >= limit {
		if !t.overflowed {
			Log.Warnw("outbound queue overflow", "conn", t.id, "pending", t.Pending())
		}
		t.overflowed = true
		return
	}
	t.outbound.Add(p)
}

// Pending 排队中的包数 + 等待写出的缓冲数
func (t *Transport) Pending() int {
	return t.outbound.Length() + len(t.residue)
}

// FlushSend 序列化出站队列并尝试一次向量写。
// 没写出去的字节按原顺序留到下一次发送。
// 返回的错误仅供参考，已计数并记录日志。
func (t *Transport) FlushSend() error {
	for t.outbound.Length() > 0 {
		p := t.outbound.Remove().(protocol.Packet)
		b, err := protocol.Serialize(p)
		if err != nil {
			Log.Warnw("dropping unserializable packet", "conn", t.id, "category", p.Category, "err", err)
			continue
		}
		t.residue = append(t.residue, b)
	}
	if len(t.residue) == 0 {
		return nil
	}

	n, err := t.conn.WriteVectored(t.residue)
	if err != nil {
		count := t.failures.inc()
		if isTimeout(err) || errors.Is(err, errWouldBlock) {
			Log.Debugw("send would block", "conn", t.id, "failures", count)
		} else {
			Log.Warnw("send failed", "conn", t.id, "failures", count, "err", err)
		}
		return err
	}
	if n == 0 {
		// 写了 0 字节但没有错误：下一帧重试，不计数
		return nil
	}
	t.failures.reset()
	t.consume(n)
	return nil
}

// consume 从 residue 头部去掉已写出的 n 字节
func (t *Transport) consume(n int) {
	i := 0
	for i < len(t.residue) && n >= len(t.residue[i]) {
		n -= len(t.residue[i])
		i++
	}
	if i < len(t.residue) && n > 0 {
		t.residue[i] = t.residue[i][n:]
	}
	rest := copy(t.residue, t.residue[i:])
	for j := rest; j < len(t.residue); j++ {
		t.residue[j] = nil
	}
	t.residue = t.residue[:rest]
}

// Receive 在接收窗口内等待可读，读一次并切帧。
// 对端断开时只设置 closed 标记。
func (t *Transport) Receive() {
	if t.closed {
		return
	}
	var deadline time.Time
	if t.opts.ReceiveWindow > 0 {
		deadline = time.Now().Add(t.opts.ReceiveWindow)
	}
	if err := t.conn.SetReadDeadline(deadline); err != nil && isClosed(err) {
		t.markClosed(err)
		return
	}

	n, err := t.conn.Read(t.readBuf)
	if n > 0 {
		t.ingest(t.readBuf[:n])
	}
	switch {
	case err == nil:
	case isTimeout(err):
	case isClosed(err):
		t.markClosed(err)
	default:
		count := t.failures.inc()
		Log.Warnw("receive failed", "conn", t.id, "failures", count, "err", err)
	}
}

func (t *Transport) markClosed(err error) {
	if !t.closed {
		Log.Infow("connection closed by peer", "conn", t.id, "err", err)
	}
	t.closed = true
}

func (t *Transport) ingest(b []byte) {
	frames, errs := t.framer.Feed(b)
	for _, err := range errs {
		t.opts.Metrics.IncDecodeDrops()
		Log.Warnw("skipping malformed frame", "conn", t.id, "err", err)
	}
	for _, f := range frames {
		p, err := protocol.Parse(f)
		if err != nil {
			t.opts.Metrics.IncDecodeDrops()
			Log.Warnw("dropping unparsable packet", "conn", t.id, "err", err)
			continue
		}
		t.inbound = append(t.inbound, p)
	}
}

// TakeInbound 取走上次调用以来收到的包
func (t *Transport) TakeInbound() []protocol.Packet {
	in := t.inbound
	t.inbound = nil
	return in
}

// Closed 对端是否已关闭
func (t *Transport) Closed() bool { return t.closed }

// ErrorCount 当前连续失败次数
func (t *Transport) ErrorCount() int { return t.failures.load() }

// IsUnhealthy 连续失败超过 MaxSendErrors，或出站队列溢出
func (t *Transport) IsUnhealthy() bool {
	return t.overflowed || t.failures.load() > t.opts.MaxSendErrors
}

func (t *Transport) RemoteAddr() string {
	if a := t.conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

// Close 关闭连接，未发送的数据丢弃
func (t *Transport) Close() error {
	t.closed = true
	return t.conn.Close()
}
