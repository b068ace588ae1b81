package server

import (
	"strconv"

	"github.com/go-gl/mathgl/mgl32"
)

// Entity 每帧模拟一次的实体
type Entity interface {
	ID() uint64
	Position() mgl32.Vec3
	Radius() float32
	Update()
}

const defaultPlayerRadius = 1.0

// Player 区域内的玩家实体（服务端权威状态），位置只由本连接的 Sync 包写入
type Player struct {
	id       uint64
	position mgl32.Vec3
	radius   float32
}

// NewPlayer 在原点生成玩家
func NewPlayer(id uint64) *Player {
	return &Player{id: id, radius: defaultPlayerRadius}
}

func (p *Player) ID() uint64               { return p.id }
func (p *Player) Position() mgl32.Vec3     { return p.position }
func (p *Player) Radius() float32          { return p.radius }
func (p *Player) SetPosition(v mgl32.Vec3) { p.position = v }

// Name 通知其他玩家时使用的名字
func (p *Player) Name() string { return "player-" + strconv.FormatUint(p.id, 10) }

// Update 每帧实体钩子；玩家由客户端驱动，服务端暂无需推进
func (p *Player) Update() {}

// PlayerState 管理接口输出的轻量状态
type PlayerState struct {
	ID uint64  `json:"id"`
	X  float32 `json:"x"`
	Y  float32 `json:"y"`
	Z  float32 `json:"z"`
}

func (p *Player) State() PlayerState {
	return PlayerState{ID: p.id, X: p.position.X(), Y: p.position.Y(), Z: p.position.Z()}
}
