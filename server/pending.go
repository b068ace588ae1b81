package server

// LeaveReason 连接被移除的原因
type LeaveReason string

const (
	LeaveLogout   LeaveReason = "logout"
	LeaveForced   LeaveReason = "forced"
	LeaveShutdown LeaveReason = "shutdown"
)

// PendingLeave 待提交的离开请求
type PendingLeave struct {
	ID     uint64
	Reason LeaveReason
}

// PendingRequestCache 遍历在线表期间产生的加入/离开请求先暂存于此，
// 区域每帧在提交阶段统一应用并清空。
type PendingRequestCache struct {
	joins  []*Connection
	leaves []PendingLeave
}

func (c *PendingRequestCache) PushJoin(conn *Connection) {
	c.joins = append(c.joins, conn)
}

// PushLeave 登记离开；同一 id 已登记时返回 false（幂等）
func (c *PendingRequestCache) PushLeave(id uint64, reason LeaveReason) bool {
	if c.IsLeaving(id) {
		return false
	}
	c.leaves = append(c.leaves, PendingLeave{ID: id, Reason: reason})
	return true
}

func (c *PendingRequestCache) IsLeaving(id uint64) bool {
	for _, l := range c.leaves {
		if l.ID == id {
			return true
		}
	}
	return false
}

// TakeJoins 按到达顺序取走待加入
func (c *PendingRequestCache) TakeJoins() []*Connection {
	joins := c.joins
	c.joins = nil
	return joins
}

// TakeLeaves 按请求顺序取走待离开
func (c *PendingRequestCache) TakeLeaves() []PendingLeave {
	leaves := c.leaves
	c.leaves = nil
	return leaves
}

func (c *PendingRequestCache) Len() (joins, leaves int) {
	return len(c.joins), len(c.leaves)
}

func (c *PendingRequestCache) Clear() {
	c.joins = nil
	c.leaves = nil
}
