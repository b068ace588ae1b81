package server

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/time/rate"

	"tickzone/protocol"
)

const incomingQueueSize = 256

var ErrNotListening = errors.New("zone is not listening")

// SessionRecord 一次结束的会话摘要，交给断线钩子
type SessionRecord struct {
	PlayerID uint64
	Remote   string
	JoinedAt time.Time
	LeftAt   time.Time
	Reason   LeaveReason
	Position mgl32.Vec3
}

// DisconnectHandler 在提交阶段、连接被移除前调用。
// 运行在 Tick 协程上，不能阻塞。
type DisconnectHandler interface {
	OnDisconnect(SessionRecord)
}

// ZoneSnapshot 每帧结束时发布的只读视图
type ZoneSnapshot struct {
	Name    string        `json:"name"`
	Tick    uint64        `json:"tick"`
	Players []PlayerState `json:"players"`
}

// Zone 权威区域：在线表、待处理缓存和所有玩家只归 Tick 协程所有，
// 其它协程只能往 incoming 投递连接或读取已发布的快照。
type Zone struct {
	name string
	cfg  Config

	listener net.Listener
	incoming chan Conn
	acceptWG sync.WaitGroup

	conns   []*Connection // 在线表，按加入顺序
	index   map[uint64]*Connection
	pending PendingRequestCache
	cohort  []*Connection // 上一帧一起加入的连接，下一帧互相介绍

	directors   []Director
	disconnects DisconnectHandler

	nextID   uint64
	tickSeq  uint64
	metrics  *ZoneMetrics
	snapshot atomic.Pointer[ZoneSnapshot]
	closed   bool
}

type Option func(*Zone)

func WithDirector(d Director) Option {
	return func(z *Zone) { z.directors = append(z.directors, d) }
}

func WithDisconnectHandler(h DisconnectHandler) Option {
	return func(z *Zone) { z.disconnects = h }
}

// NewZone 创建空区域，Run 之前需先 Listen
func NewZone(cfg Config, opts ...Option) *Zone {
	cfg.Normalize()
	z := &Zone{
		name:     cfg.ZoneName,
		cfg:      cfg,
		incoming: make(chan Conn, incomingQueueSize),
		index:    make(map[uint64]*Connection),
		metrics:  &ZoneMetrics{},
	}
	for _, opt := range opts {
		opt(z)
	}
	z.publishSnapshot()
	return z
}

func (z *Zone) Name() string          { return z.name }
func (z *Zone) Config() Config        { return z.cfg }
func (z *Zone) Metrics() *ZoneMetrics { return z.metrics }

// TickSeq 已完成的帧数
func (z *Zone) TickSeq() uint64 { return z.tickSeq }

// Listen 绑定 TCP 监听并在后台协程接入连接，
// 接入的连接在 incoming 队列中等待下一次接入阶段。
func (z *Zone) Listen() error {
	ln, err := net.Listen("tcp4", z.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", z.cfg.ListenAddr, err)
	}
	z.listener = ln
	z.acceptWG.Add(1)
	go func() {
		defer z.acceptWG.Done()
		z.acceptLoop(ln)
	}()
	Log.Infow("zone listening", "zone", z.name, "addr", ln.Addr().String())
	return nil
}

// Addr 监听地址，Listen 之前为 nil
func (z *Zone) Addr() net.Addr {
	if z.listener == nil {
		return nil
	}
	return z.listener.Addr()
}

func (z *Zone) acceptLoop(ln net.Listener) {
	for {
		c, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			z.metrics.IncAcceptErrors()
			Log.Warnw("accept error", "zone", z.name, "err", err)
			time.Sleep(5 * time.Millisecond)
			continue
		}
		tcp, ok := c.(*net.TCPConn)
		if !ok {
			_ = c.Close()
			continue
		}
		conn, err := newTCPConn(tcp, z.cfg.WriteWindow)
		if err != nil {
			z.metrics.IncAcceptErrors()
			Log.Warnw("accept error", "zone", z.name, "err", err)
			_ = tcp.Close()
			continue
		}
		z.Admit(conn)
	}
}

// Admit 把已建立的连接交给区域，任意协程都可调用（非阻塞，满则关闭连接并返回 false）。
// 连接在下一次接入阶段成为待加入。
func (z *Zone) Admit(c Conn) bool {
	select {
	case z.incoming <- c:
		return true
	default:
		z.metrics.IncAdmitRejected()
		Log.Warnw("accept queue full, closing connection", "zone", z.name, "remote", c.RemoteAddr())
		_ = c.Close()
		return false
	}
}

// stage 把新接入的连接包装为待加入
func (z *Zone) stage(c Conn) *Connection {
	id := z.nextID
	z.nextID++

	t := NewTransport(id, c, TransportOptions{
		ReceiveWindow:      z.cfg.ReceiveWindow,
		MaxSendErrors:      z.cfg.MaxSendErrors,
		MaxFrameSize:       z.cfg.MaxFrameSize,
		MaxOutboundPackets: z.cfg.MaxOutboundPackets,
		Metrics:            z.metrics,
	})
	var limiter *rate.Limiter
	if z.cfg.ChatRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(z.cfg.ChatRate), z.cfg.ChatBurst)
	}
	conn := NewConnection(NewPlayer(id), t, limiter, z.metrics)
	z.pending.PushJoin(conn)
	z.metrics.IncAccepted()
	Log.Infow("accepted connection", "zone", z.name, "conn", id, "remote", t.RemoteAddr())
	return conn
}

// Connection 按 id 查找在线连接
func (z *Zone) Connection(id uint64) *Connection {
	return z.index[id]
}

// Connections 返回在线表的副本（遍历顺序）
func (z *Zone) Connections() []*Connection {
	return append([]*Connection(nil), z.conns...)
}

func (z *Zone) Players() []*Player {
	out := make([]*Player, 0, len(z.conns))
	for _, c := range z.conns {
		out = append(out, c.Player())
	}
	return out
}

// Broadcast 向所有在线连接排队发送 p
func (z *Zone) Broadcast(p protocol.Packet) {
	for _, c := range z.conns {
		c.Send(p)
	}
}

// BroadcastExcept 同 Broadcast，但跳过 skip
func (z *Zone) BroadcastExcept(p protocol.Packet, skip uint64) {
	for _, c := range z.conns {
		if c.ID() != skip {
			c.Send(p)
		}
	}
}

// execute 执行一条命令；命令只能通过区域自身的操作影响其它连接
func (z *Zone) execute(cmd Command) {
	switch cmd := cmd.(type) {
	case LogoutCommand:
		c := z.index[cmd.PlayerID]
		if c == nil || !z.pending.PushLeave(cmd.PlayerID, LeaveLogout) {
			return
		}
		c.Send(protocol.MustNew(protocol.LogoutResponse, &protocol.LogoutResponseBody{Success: true}))
		z.BroadcastExcept(protocol.MustNew(protocol.LogoutNotification, &protocol.LogoutNotificationBody{UserID: cmd.PlayerID}), cmd.PlayerID)
		Log.Infow("player logging out", "zone", z.name, "conn", cmd.PlayerID)

	case ForceDisconnectCommand:
		if z.index[cmd.PlayerID] == nil || !z.pending.PushLeave(cmd.PlayerID, LeaveForced) {
			return
		}
		z.metrics.IncForcedDisconnects()
		z.BroadcastExcept(protocol.MustNew(protocol.LogoutNotification, &protocol.LogoutNotificationBody{UserID: cmd.PlayerID}), cmd.PlayerID)
		Log.Warnw("forcing disconnect", "zone", z.name, "conn", cmd.PlayerID)

	case ChatBroadcastCommand:
		p, err := protocol.New(protocol.ChatReceive, &protocol.ChatReceiveBody{UserID: cmd.From, Text: cmd.Text})
		if err != nil {
			Log.Warnw("dropping chat", "zone", z.name, "conn", cmd.From, "err", err)
			return
		}
		z.metrics.IncChatsBroadcast()
		z.Broadcast(p)

	default:
		Log.Errorw("unknown command", "zone", z.name, "type", fmt.Sprintf("%T", cmd))
	}
}

// insert 待加入 → 在线
func (z *Zone) insert(c *Connection) {
	z.conns = append(z.conns, c)
	z.index[c.ID()] = c
	z.metrics.IncJoined()
}

// remove 移除在线连接：调用断线钩子，最后发送一次后关闭连接
func (z *Zone) remove(id uint64, reason LeaveReason) {
	c := z.index[id]
	if c == nil {
		return
	}
	delete(z.index, id)
	for i, live := range z.conns {
		if live == c {
			z.conns = append(z.conns[:i], z.conns[i+1:]...)
			break
		}
	}
	if z.disconnects != nil {
		z.disconnects.OnDisconnect(c.Session(reason, time.Now()))
	}
	// 本帧排队的包（包括登出确认）最后一次发送机会；强制断开的对端视为不可达
	if reason != LeaveForced {
		c.Flush()
	}
	if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		Log.Debugw("close error", "zone", z.name, "conn", id, "err", err)
	}
	z.metrics.IncLeft()
	Log.Infow("connection removed", "zone", z.name, "conn", id, "reason", reason)
}

func (z *Zone) publishSnapshot() {
	snap := &ZoneSnapshot{Name: z.name, Tick: z.tickSeq, Players: make([]PlayerState, 0, len(z.conns))}
	for _, c := range z.conns {
		snap.Players = append(snap.Players, c.Player().State())
	}
	z.snapshot.Store(snap)
}

// Snapshot 返回上一帧发布的状态，任意协程可读
func (z *Zone) Snapshot() *ZoneSnapshot {
	return z.snapshot.Load()
}

// Close 停止接入并关闭所有在线与待加入连接。不能与 Tick 并发调用。
func (z *Zone) Close() error {
	if z.closed {
		return nil
	}
	z.closed = true

	var err error
	if z.listener != nil {
		err = z.listener.Close()
		z.acceptWG.Wait()
	}
drain:
	for {
		select {
		case c := <-z.incoming:
			_ = c.Close()
		default:
			break drain
		}
	}
	for _, c := range z.pending.TakeJoins() {
		_ = c.Close()
	}
	z.pending.Clear()
	z.cohort = nil
	for _, c := range z.Connections() {
		z.remove(c.ID(), LeaveShutdown)
	}
	z.publishSnapshot()
	Log.Infow("zone closed", "zone", z.name, "ticks", z.tickSeq)
	return err
}
