package model

// GroundItem is a lootable item placed in the world (e.g. a death drop).
// While ProtectedUntil has not passed only Owner may see or take it.
type GroundItem struct {
	EntityID string
	Pos      Vec3i
	Item     Item

	Owner      string
	OriginName string
	OriginHost string
	DeathDrop  bool

	CreatedTick       uint64
	ProtectedUntil    uint64
	GlobalAfterWindow bool
	ExpiresTick       uint64
}

func (g *GroundItem) ID() string { return g.EntityID }
