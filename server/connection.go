package server

import (
	"time"

	"golang.org/x/time/rate"

	"tickzone/protocol"
)

// Connection 玩家 + 传输层，并缓存解码产生的命令，等区域执行
type Connection struct {
	player    *Player
	transport *Transport
	commands  []Command

	chat     *rate.Limiter // nil 表示不限流
	metrics  *ZoneMetrics
	joinedAt time.Time
}

func NewConnection(player *Player, transport *Transport, chat *rate.Limiter, metrics *ZoneMetrics) *Connection {
	return &Connection{
		player:    player,
		transport: transport,
		chat:      chat,
		metrics:   metrics,
	}
}

func (c *Connection) ID() uint64            { return c.player.ID() }
func (c *Connection) Player() *Player       { return c.player }
func (c *Connection) Transport() *Transport { return c.transport }

func (c *Connection) Receive() {
	c.transport.Receive()
}

// DecodeAndDispatch 处理本帧入站包：Sync 直接写玩家位置，
// 影响区域其它部分的请求转成命令。解码失败的包单独丢弃，不影响其它包。
func (c *Connection) DecodeAndDispatch() {
	for _, p := range c.transport.TakeInbound() {
		switch p.Category {
		case protocol.LogoutRequest:
			c.commands = append(c.commands, LogoutCommand{PlayerID: c.ID()})

		case protocol.SyncTransform:
			var body protocol.TransformSyncBody
			if err := protocol.Decode(p, &body); err != nil {
				c.dropPacket(err)
				continue
			}
			c.player.SetPosition(body.Position)

		case protocol.ChatSend:
			var body protocol.ChatSendBody
			if err := protocol.Decode(p, &body); err != nil {
				c.dropPacket(err)
				continue
			}
			if c.chat != nil && !c.chat.Allow() {
				c.metrics.IncChatsThrottled()
				Log.Infow("chat throttled", "conn", c.ID())
				continue
			}
			Log.Debugw("chat", "conn", c.ID(), "text", body.Text)
			c.commands = append(c.commands, ChatBroadcastCommand{From: c.ID(), Text: body.Text})

		default:
			c.metrics.IncUnknownPackets()
			Log.Infow("ignoring unexpected packet", "conn", c.ID(), "category", p.Category)
		}
	}
}

func (c *Connection) dropPacket(err error) {
	c.metrics.IncDecodeDrops()
	Log.Warnw("dropping packet", "conn", c.ID(), "err", err)
}

// Advance 运行实体钩子，并把传输状态转成命令：
// 不健康 → 强制断开；已关闭 → 登出
func (c *Connection) Advance() {
	c.player.Update()

	if c.transport.IsUnhealthy() {
		Log.Warnw("transport unhealthy, forcing disconnect", "conn", c.ID(), "failures", c.transport.ErrorCount())
		c.commands = append(c.commands, ForceDisconnectCommand{PlayerID: c.ID()})
	}
	if c.transport.Closed() {
		c.commands = append(c.commands, LogoutCommand{PlayerID: c.ID()})
	}
}

// DrainCommands 按提交顺序取走缓存的命令
func (c *Connection) DrainCommands() []Command {
	cmds := c.commands
	c.commands = nil
	return cmds
}

// OnJoined 连接从待加入转为在线时调用一次，下发分配的 id
func (c *Connection) OnJoined() {
	c.joinedAt = time.Now()
	c.Send(protocol.MustNew(protocol.LoginResult, &protocol.LoginResultBody{UserID: c.ID()}))
}

// Send 排队，本帧发送阶段写出
func (c *Connection) Send(p protocol.Packet) {
	c.transport.Enqueue(p)
}

func (c *Connection) Flush() {
	if err := c.transport.FlushSend(); err != nil {
		c.metrics.IncFlushFailures()
	}
}

func (c *Connection) Close() error {
	return c.transport.Close()
}

// Session 生成断线钩子用的会话记录
func (c *Connection) Session(reason LeaveReason, leftAt time.Time) SessionRecord {
	return SessionRecord{
		PlayerID: c.ID(),
		Remote:   c.transport.RemoteAddr(),
		JoinedAt: c.joinedAt,
		LeftAt:   leftAt,
		Reason:   reason,
		Position: c.player.Position(),
	}
}
