package items

import (
	"errors"
	"fmt"
	"sort"

	modelpkg "pkworld.ai/internal/sim/world/kernel/model"
)

var (
	ErrNotFound = errors.New("ground item not found")
	ErrNotOwner = errors.New("ground item is protected for another owner")
)

// Drop describes a lootable object to place in the world.
type Drop struct {
	Owner      string // entity id allowed to loot during the protection window
	Item       modelpkg.Item
	Pos        modelpkg.Vec3i
	OriginName string
	OriginHost string

	DeathDrop         bool
	ProtectionTicks   int
	GlobalAfterWindow bool
	GlobalTicks       int
}

type AuditFunc func(nowTick uint64, actor, action string, pos modelpkg.Vec3i, reason string, details map[string]any)

// Store owns every ground item of a world. It is not safe for concurrent use;
// the world loop goroutine is the only caller.
type Store struct {
	items   map[string]*modelpkg.GroundItem
	itemsAt map[modelpkg.Vec3i][]string
	nextNum uint64
	audit   AuditFunc
}

func NewStore(audit AuditFunc) *Store {
	return &Store{
		items:   map[string]*modelpkg.GroundItem{},
		itemsAt: map[modelpkg.Vec3i][]string{},
		audit:   audit,
	}
}

func (s *Store) newID() string {
	s.nextNum++
	return fmt.Sprintf("G%06d", s.nextNum)
}

func (s *Store) Len() int { return len(s.items) }

func (s *Store) Get(id string) (modelpkg.GroundItem, bool) {
	g := s.items[id]
	if g == nil {
		return modelpkg.GroundItem{}, false
	}
	return *g, true
}

// Place puts d in the world and returns the new ground item id.
func (s *Store) Place(nowTick uint64, d Drop) (string, error) {
	if !d.Item.Valid() {
		return "", fmt.Errorf("place: invalid item %d x%d", d.Item.ID, d.Item.Amount)
	}
	if d.ProtectionTicks < 0 || d.GlobalTicks < 0 {
		return "", fmt.Errorf("place: negative window")
	}
	protectedUntil := nowTick + uint64(d.ProtectionTicks)
	expires := protectedUntil
	if d.GlobalAfterWindow {
		expires += uint64(d.GlobalTicks)
	}
	id := s.newID()
	g := &modelpkg.GroundItem{
		EntityID:          id,
		Pos:               d.Pos,
		Item:              d.Item,
		Owner:             d.Owner,
		OriginName:        d.OriginName,
		OriginHost:        d.OriginHost,
		DeathDrop:         d.DeathDrop,
		CreatedTick:       nowTick,
		ProtectedUntil:    protectedUntil,
		GlobalAfterWindow: d.GlobalAfterWindow,
		ExpiresTick:       expires,
	}
	s.items[id] = g
	s.itemsAt[d.Pos] = append(s.itemsAt[d.Pos], id)
	if s.audit != nil {
		s.audit(nowTick, d.Owner, "ITEM_SPAWN", d.Pos, "", map[string]any{
			"entity_id":  id,
			"item":       d.Item.ID,
			"count":      d.Item.Amount,
			"origin":     d.OriginName,
			"death_drop": d.DeathDrop,
		})
	}
	return id, nil
}

// VisibleTo reports whether viewer can see g at nowTick.
func VisibleTo(g modelpkg.GroundItem, viewer string, nowTick uint64) bool {
	if nowTick < g.ProtectedUntil {
		return g.Owner == "" || g.Owner == viewer
	}
	return g.GlobalAfterWindow || g.Owner == viewer
}

// At lists the ground items at pos that viewer can see, ordered by id.
func (s *Store) At(pos modelpkg.Vec3i, viewer string, nowTick uint64) []modelpkg.GroundItem {
	ids := append([]string(nil), s.itemsAt[pos]...)
	sort.Strings(ids)
	out := make([]modelpkg.GroundItem, 0, len(ids))
	for _, id := range ids {
		g := s.items[id]
		if g == nil || !VisibleTo(*g, viewer, nowTick) {
			continue
		}
		out = append(out, *g)
	}
	return out
}

// OwnedBy lists every ground item currently owned by owner, ordered by id.
func (s *Store) OwnedBy(owner string) []modelpkg.GroundItem {
	out := make([]modelpkg.GroundItem, 0)
	for _, g := range s.items {
		if g.Owner == owner {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// Pickup removes a ground item on behalf of viewer, honoring the protection window.
func (s *Store) Pickup(nowTick uint64, viewer, id string) (modelpkg.Item, error) {
	g := s.items[id]
	if g == nil {
		return modelpkg.Item{}, ErrNotFound
	}
	if !VisibleTo(*g, viewer, nowTick) {
		return modelpkg.Item{}, ErrNotOwner
	}
	it := g.Item
	s.Remove(nowTick, viewer, id, "PICKUP")
	return it, nil
}

func (s *Store) Remove(nowTick uint64, actor, id, reason string) {
	g := s.items[id]
	if g == nil {
		return
	}
	delete(s.items, id)
	ids := s.itemsAt[g.Pos]
	for i, other := range ids {
		if other == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(s.itemsAt, g.Pos)
	} else {
		s.itemsAt[g.Pos] = ids
	}
	if s.audit != nil {
		s.audit(nowTick, actor, "ITEM_DESPAWN", g.Pos, reason, map[string]any{
			"entity_id": id,
			"item":      g.Item.ID,
			"count":     g.Item.Amount,
		})
	}
}

// CleanupExpired despawns every item whose lifetime ended at or before nowTick, in id order.
func (s *Store) CleanupExpired(nowTick uint64) int {
	var expired []string
	for id, g := range s.items {
		if g.ExpiresTick != 0 && nowTick >= g.ExpiresTick {
			expired = append(expired, id)
		}
	}
	sort.Strings(expired)
	for _, id := range expired {
		s.Remove(nowTick, "WORLD", id, "EXPIRE")
	}
	return len(expired)
}
