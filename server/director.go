package server

import "github.com/go-gl/mathgl/mgl32"

// Director 驱动非玩家的世界行为，区域每帧在所有连接推进之后调用一次 Update
type Director interface {
	Update()
}

// Enemy 由 EnemyDirector 管理的服务端实体
type Enemy struct {
	id       uint64
	position mgl32.Vec3
	radius   float32
}

func NewEnemy(id uint64, position mgl32.Vec3, radius float32) *Enemy {
	return &Enemy{id: id, position: position, radius: radius}
}

func (e *Enemy) ID() uint64           { return e.id }
func (e *Enemy) Position() mgl32.Vec3 { return e.position }
func (e *Enemy) Radius() float32      { return e.radius }

// Update 敌人暂无行为
func (e *Enemy) Update() {}

// EnemyDirector 持有固定数量的敌人，沿 +X 方向排成一行
type EnemyDirector struct {
	enemies []Entity
	ticks   uint64
}

func NewEnemyDirector(count int) *EnemyDirector {
	d := &EnemyDirector{enemies: make([]Entity, 0, count)}
	for i := 0; i < count; i++ {
		pos := mgl32.Vec3{float32(i) * 4, 0, 10}
		d.enemies = append(d.enemies, NewEnemy(uint64(i), pos, 1))
	}
	return d
}

func (d *EnemyDirector) Update() {
	d.ticks++
	for _, e := range d.enemies {
		e.Update()
	}
}

func (d *EnemyDirector) Enemies() []Entity { return d.enemies }

// Ticks Update 被调用的次数
func (d *EnemyDirector) Ticks() uint64 { return d.ticks }
