package server

import (
	"sync/atomic"
)

// ZoneMetrics 记录区域运行期的关键指标（用于 /metrics 监控），nil 接收者上的 Inc 方法为空操作
type ZoneMetrics struct {
	TickCount         int64 // 完成的 Tick 次数
	TotalTickNs       int64 // Tick 累计耗时（纳秒）
	Accepted          int64 // 登记为待加入的连接数
	AcceptErrors      int64
	AdmitRejected     int64 // 因接入队列满被关闭的连接数
	Joined            int64
	Left              int64
	ForcedDisconnects int64
	DecodeDrops       int64 // 因格式错误丢弃的帧或包体
	UnknownPackets    int64
	FlushFailures     int64
	ChatsBroadcast    int64
	ChatsThrottled    int64
}

func (m *ZoneMetrics) IncAccepted() {
	if m != nil {
		atomic.AddInt64(&m.Accepted, 1)
	}
}

func (m *ZoneMetrics) IncAcceptErrors() {
	if m != nil {
		atomic.AddInt64(&m.AcceptErrors, 1)
	}
}

func (m *ZoneMetrics) IncAdmitRejected() {
	if m != nil {
		atomic.AddInt64(&m.AdmitRejected, 1)
	}
}

func (m *ZoneMetrics) IncJoined() {
	if m != nil {
		atomic.AddInt64(&m.Joined, 1)
	}
}

func (m *ZoneMetrics) IncLeft() {
	if m != nil {
		atomic.AddInt64(&m.Left, 1)
	}
}

func (m *ZoneMetrics) IncForcedDisconnects() {
	if m != nil {
		atomic.AddInt64(&m.ForcedDisconnects, 1)
	}
}

func (m *ZoneMetrics) IncDecodeDrops() {
	if m != nil {
		atomic.AddInt64(&m.DecodeDrops, 1)
	}
}

func (m *ZoneMetrics) IncUnknownPackets() {
	if m != nil {
		atomic.AddInt64(&m.UnknownPackets, 1)
	}
}

func (m *ZoneMetrics) IncFlushFailures() {
	if m != nil {
		atomic.AddInt64(&m.FlushFailures, 1)
	}
}

func (m *ZoneMetrics) IncChatsBroadcast() {
	if m != nil {
		atomic.AddInt64(&m.ChatsBroadcast, 1)
	}
}

func (m *ZoneMetrics) IncChatsThrottled() {
	if m != nil {
		atomic.AddInt64(&m.ChatsThrottled, 1)
	}
}

func (m *ZoneMetrics) AddTick(ns int64) {
	if m == nil {
		return
	}
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *ZoneMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":         tick,
		"avg_tick_ms":        avgMs,
		"accepted":           atomic.LoadInt64(&m.Accepted),
		"accept_errors":      atomic.LoadInt64(&m.AcceptErrors),
		"admit_rejected":     atomic.LoadInt64(&m.AdmitRejected),
		"joined":             atomic.LoadInt64(&m.Joined),
		"left":               atomic.LoadInt64(&m.Left),
		"forced_disconnects": atomic.LoadInt64(&m.ForcedDisconnects),
		"decode_drops":       atomic.LoadInt64(&m.DecodeDrops),
		"unknown_packets":    atomic.LoadInt64(&m.UnknownPackets),
		"flush_failures":     atomic.LoadInt64(&m.FlushFailures),
		"chats_broadcast":    atomic.LoadInt64(&m.ChatsBroadcast),
		"chats_throttled":    atomic.LoadInt64(&m.ChatsThrottled),
	}
}
