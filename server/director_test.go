package server

import "testing"

func TestEnemyDirectorTicksWithZone(t *testing.T) {
	d := NewEnemyDirector(3)
	z := newTestZone(t, WithDirector(d))
	z.Tick()
	z.Tick()
	if d.Ticks() != 2 || len(d.Enemies()) != 3 {
		t.Fatalf("ticks = %d enemies = %d", d.Ticks(), len(d.Enemies()))
	}
	if d.Enemies()[2].Position().X() != 8 {
		t.Fatalf("third enemy at %v", d.Enemies()[2].Position())
	}
}
