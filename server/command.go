package server

// Command 连接解码时请求的区域变更。
// 集合是封闭的：只有本文件中的类型实现它，由 Zone.execute 逐一处理。
type Command interface {
	command()
}

// LogoutCommand 主动登出，或对端关闭了连接
type LogoutCommand struct {
	PlayerID uint64
}

// ForceDisconnectCommand 传输层不健康，强制断开
type ForceDisconnectCommand struct {
	PlayerID uint64
}

// ChatBroadcastCommand 聊天转发给区域内所有人（包括发送者）
type ChatBroadcastCommand struct {
	From uint64
	Text string
}

func (LogoutCommand) command()          {}
func (ForceDisconnectCommand) command() {}
func (ChatBroadcastCommand) command()   {}
