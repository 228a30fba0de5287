package entity

import (
	"math"

	"voxelcore.ai/internal/parallel"
)

type ID uint64

type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Scale(k float64) Vec3 { return Vec3{v.X * k, v.Y * k, v.Z * k} }

// Box is an axis-aligned bounding box; Min <= Max on every axis.
type Box struct {
	Min, Max Vec3
}

// Clamp returns p limited to the box and whether any axis was changed.
func (b Box) Clamp(p Vec3) (Vec3, bool) {
	out := Vec3{
		X: math.Min(math.Max(p.X, b.Min.X), b.Max.X),
		Y: math.Min(math.Max(p.Y, b.Min.Y), b.Max.Y),
		Z: math.Min(math.Max(p.Z, b.Min.Z), b.Max.Z),
	}
	return out, out != p
}

type Entity struct {
	ID  ID
	Pos Vec3
	Vel Vec3
	HP  float64
}

// Integrate advances every entity by vel*dt on pool, one entity per index,
// and clamps it to bounds. Hooks are fired afterwards on the calling
// goroutine, in slice order: Set for every entity, then Collision against
// the bounds for each entity that was clamped.
func Integrate(pool *parallel.Pool, ents []Entity, dt float64, bounds Box, hooks Hooks) error {
	clamped := make([]bool, len(ents))
	err := pool.Run(func(i int) {
		e := &ents[i]
		e.Pos, clamped[i] = bounds.Clamp(e.Pos.Add(e.Vel.Scale(dt)))
		if clamped[i] {
			e.Vel = Vec3{}
		}
	}, 0, len(ents))
	if err != nil {
		return err
	}
	for i := range ents {
		hooks.Set(&ents[i])
	}
	for i := range ents {
		if clamped[i] {
			hooks.Collide(&ents[i], nil)
		}
	}
	return nil
}
