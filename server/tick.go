package server

import (
	"context"
	"sync"
	"time"

	"tickzone/protocol"
)

// Run 按配置的 Tick 频率推进区域，直到 ctx 取消后关闭区域。
// 调用前必须先 Listen 成功。
func (z *Zone) Run(ctx context.Context) error {
	if z.listener == nil {
		return ErrNotListening
	}
	ticker := time.NewTicker(z.cfg.TickInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			Log.Infow("zone stopping", "zone", z.name)
			return z.Close()
		case <-ticker.C:
			z.Tick()
		}
	}
}

// Tick 完整推进一帧：接入 → 接收 → 解码 → 模拟 → 执行命令 → 提交加入/离开 → 发送
func (z *Zone) Tick() {
	start := time.Now()

	z.acceptPending()
	z.receiveAll()
	z.decodeAll()
	z.simulate()
	z.executeCommands()
	z.commitTopology()
	z.sendAll()

	z.tickSeq++
	z.publishSnapshot()
	z.metrics.AddTick(time.Since(start).Nanoseconds())
}

// acceptPending 把上一帧以来接入的连接登记为待加入，本帧的模拟与广播看不到它们
func (z *Zone) acceptPending() {
	for i := 0; i < z.cfg.MaxAcceptsPerTick; i++ {
		select {
		case c := <-z.incoming:
			z.stage(c)
		default:
			return
		}
	}
}

// receiveAll 并发读取所有在线连接，全部读完后才进入解码阶段
func (z *Zone) receiveAll() {
	var wg sync.WaitGroup
	for _, c := range z.conns {
		wg.Add(1)
		go func(c *Connection) {
			defer wg.Done()
			c.Receive()
		}(c)
	}
	wg.Wait()
}

func (z *Zone) decodeAll() {
	for _, c := range z.conns {
		c.DecodeAndDispatch()
	}
}

func (z *Zone) simulate() {
	for _, c := range z.conns {
		c.Advance()
	}
	for _, d := range z.directors {
		d.Update()
	}
}

// executeCommands 按连接表顺序逐个连接执行命令，单个连接内保持提交顺序
func (z *Zone) executeCommands() {
	var cmds []Command
	for _, c := range z.conns {
		cmds = append(cmds, c.DrainCommands()...)
	}
	for _, cmd := range cmds {
		z.execute(cmd)
	}
}

// commitTopology 先提交加入再提交离开，是唯一修改在线表的地方。
// 加入通知只发给提交前已在线的连接；新连接收到一份在线名单，
// 同一帧加入的连接在下一帧互相介绍。
func (z *Zone) commitTopology() {
	z.introduceCohort()

	joins := z.pending.TakeJoins()
	roster := z.Connections()
	for _, c := range joins {
		z.Broadcast(loginNotification(c))
	}
	for _, c := range joins {
		c.OnJoined()
		for _, live := range roster {
			c.Send(loginNotification(live))
		}
		z.insert(c)
	}
	z.cohort = joins

	for _, l := range z.pending.TakeLeaves() {
		z.remove(l.ID, l.Reason)
	}
	z.pending.Clear()
}

// introduceCohort 让上一帧一起加入的连接互相收到加入通知。
// 已在本帧离开流程中的连接不参与，避免通知顺序颠倒。
func (z *Zone) introduceCohort() {
	cohort := z.cohort
	z.cohort = nil
	if len(cohort) < 2 {
		return
	}
	present := func(c *Connection) bool {
		return z.index[c.ID()] == c && !z.pending.IsLeaving(c.ID())
	}
	for _, to := range cohort {
		if !present(to) {
			continue
		}
		for _, peer := range cohort {
			if peer != to && present(peer) {
				to.Send(loginNotification(peer))
			}
		}
	}
}

func loginNotification(c *Connection) protocol.Packet {
	return protocol.MustNew(protocol.LoginNotification, &protocol.LoginNotificationBody{
		UserID:   c.ID(),
		Username: c.Player().Name(),
	})
}

func (z *Zone) sendAll() {
	for _, c := range z.conns {
		c.Flush()
	}
}
