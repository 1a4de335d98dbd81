package model

import "pkworld.ai/internal/protocol"

type Rights int

const (
	RightsPlayer Rights = iota
	RightsModerator
	RightsAdministrator
	RightsDeveloper
	RightsOwner
)

// Privileged ranks never forfeit items on death.
func (r Rights) Privileged() bool { return r == RightsOwner || r == RightsDeveloper }

func (r Rights) String() string {
	switch r {
	case RightsModerator:
		return "MODERATOR"
	case RightsAdministrator:
		return "ADMINISTRATOR"
	case RightsDeveloper:
		return "DEVELOPER"
	case RightsOwner:
		return "OWNER"
	default:
		return "PLAYER"
	}
}

type Prayer string

const (
	PrayerRetribution Prayer = "RETRIBUTION"
	PrayerProtectItem Prayer = "PROTECT_ITEM"
	PrayerSmite       Prayer = "SMITE"
)

type MovementStatus int

const (
	MovementFree MovementStatus = iota
	MovementDisabled
)

const (
	DefaultMaxHP         = 99
	MaxSpecialEnergy     = 100
	DefaultAnimationNone = -1
)

type Entity struct {
	ID   string
	Name string
	// Host is the remote address the entity connected from.
	Host      string
	Connected bool

	Pos    Vec3i
	Rights Rights

	HP            int
	MaxHP         int
	SpecialEnergy int
	Poison        int
	Skulled       bool
	Prayers       map[Prayer]bool

	Inventory *Container
	Equipment *Container

	Duel *DuelSession

	// Combat state.
	Target           string
	LastAttacker     string
	LastAttackerTick uint64

	Untargetable  bool
	Movement      MovementStatus
	Path          []Vec3i
	OpenInterface string
	Animation     int

	Events []protocol.Event
}

func NewEntity(id, name string) *Entity {
	e := &Entity{ID: id, Name: name, Connected: true}
	e.InitDefaults()
	return e
}

func (e *Entity) InitDefaults() {
	if e.Inventory == nil {
		e.Inventory = NewContainer("inventory", InventoryCapacity)
	}
	if e.Equipment == nil {
		e.Equipment = NewContainer("equipment", EquipmentCapacity)
	}
	if e.Prayers == nil {
		e.Prayers = map[Prayer]bool{}
	}
	if e.MaxHP == 0 {
		e.MaxHP = DefaultMaxHP
	}
	if e.HP == 0 {
		e.HP = e.MaxHP
	}
	if e.SpecialEnergy == 0 {
		e.SpecialEnergy = MaxSpecialEnergy
	}
	if e.Animation == 0 {
		e.Animation = DefaultAnimationNone
	}
}

func (e *Entity) PrayerActive(p Prayer) bool { return e.Prayers[p] }

func (e *Entity) ResetCombat() {
	e.Target = ""
	e.LastAttacker = ""
	e.LastAttackerTick = 0
}

// FreezeMovement cancels any path and rejects new movement until Restart.
func (e *Entity) FreezeMovement() {
	e.Path = nil
	e.Movement = MovementDisabled
}

func (e *Entity) CanMove() bool { return e.Movement == MovementFree }

// Restart puts the entity back in its default post-death posture.
func (e *Entity) Restart() {
	e.HP = e.MaxHP
	e.SpecialEnergy = MaxSpecialEnergy
	e.Poison = 0
	e.Skulled = false
	for p := range e.Prayers {
		delete(e.Prayers, p)
	}
	e.ResetCombat()
	e.Path = nil
	e.Movement = MovementFree
	e.OpenInterface = ""
	e.Animation = DefaultAnimationNone
}

func (e *Entity) AddEvent(ev protocol.Event) {
	e.Events = append(e.Events, ev)
}

func (e *Entity) TakeEvents() []protocol.Event {
	ev := e.Events
	e.Events = nil
	return ev
}

// DuelSession tracks a staked duel the entity is part of.
type DuelSession struct {
	OpponentID string
	Active     bool
	Lost       bool
}

func (d *DuelSession) InDuel() bool { return d != nil && d.Active }

// MarkLost ends an active duel as a loss. It reports false if there was nothing to end.
func (d *DuelSession) MarkLost() bool {
	if !d.InDuel() {
		return false
	}
	d.Active = false
	d.Lost = true
	return true
}
