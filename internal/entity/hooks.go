package entity

// One function type per callback capability. A nil hook is skipped.
type (
	// CollisionFunc reports a contact between a and b. b is nil when a hit
	// the world bounds.
	CollisionFunc func(a, b *Entity)
	DamageFunc    func(target *Entity, amount float64, source ID)
	ExplosionFunc func(center Vec3, radius float64)
	MissFunc      func(shooter *Entity, at Vec3)
	RayFunc       func(from, to Vec3, hit *Entity)
	SetFunc       func(e *Entity)
)

type Hooks struct {
	OnCollision CollisionFunc
	OnDamage    DamageFunc
	OnExplosion ExplosionFunc
	OnMiss      MissFunc
	OnRay       RayFunc
	OnSet       SetFunc
}

func (h Hooks) Collide(a, b *Entity) {
	if h.OnCollision != nil {
		h.OnCollision(a, b)
	}
}

func (h Hooks) Damage(target *Entity, amount float64, source ID) {
	if h.OnDamage != nil {
		h.OnDamage(target, amount, source)
	}
}

func (h Hooks) Explode(center Vec3, radius float64) {
	if h.OnExplosion != nil {
		h.OnExplosion(center, radius)
	}
}

func (h Hooks) Miss(shooter *Entity, at Vec3) {
	if h.OnMiss != nil {
		h.OnMiss(shooter, at)
	}
}

func (h Hooks) Ray(from, to Vec3, hit *Entity) {
	if h.OnRay != nil {
		h.OnRay(from, to, hit)
	}
}

func (h Hooks) Set(e *Entity) {
	if h.OnSet != nil {
		h.OnSet(e)
	}
}
