// Package retention decides which carried items survive a death.
package retention

import (
	"sort"

	"pkworld.ai/internal/sim/catalogs"
	modelpkg "pkworld.ai/internal/sim/world/kernel/model"
)

type Source int

const (
	FromInventory Source = iota
	FromEquipment
)

// Carried is one occupied container slot. Slot identity, not item equality,
// is what distinguishes two carried items.
type Carried struct {
	Source Source
	Slot   int
	Item   modelpkg.Item
}

type Key struct {
	Source Source
	Slot   int
}

func (c Carried) Key() Key { return Key{Source: c.Source, Slot: c.Slot} }

// CarriedItems lists inventory then equipment contents in slot order.
func CarriedItems(e *modelpkg.Entity) []Carried {
	if e == nil {
		return nil
	}
	out := make([]Carried, 0)
	for _, s := range e.Inventory.ValidItems() {
		out = append(out, Carried{Source: FromInventory, Slot: s.Slot, Item: s.Item})
	}
	for _, s := range e.Equipment.ValidItems() {
		out = append(out, Carried{Source: FromEquipment, Slot: s.Slot, Item: s.Item})
	}
	return out
}

// Baseline picks the items an entity keeps regardless of tradeability.
type Baseline func(e *modelpkg.Entity, carried []Carried, items catalogs.ItemCatalog) []Carried

// KeepCount is the number of items kept by the default baseline.
func KeepCount(e *modelpkg.Entity, base int) int {
	n := base
	if e.Skulled {
		n = 0
	}
	if e.PrayerActive(modelpkg.PrayerProtectItem) {
		n++
	}
	return n
}

// MostValuable keeps the KeepCount most valuable tradeable items. Ties keep carried order.
func MostValuable(base int) Baseline {
	return func(e *modelpkg.Entity, carried []Carried, items catalogs.ItemCatalog) []Carried {
		if e == nil {
			return nil
		}
		n := KeepCount(e, base)
		if n <= 0 {
			return nil
		}
		cands := make([]Carried, 0, len(carried))
		for _, c := range carried {
			if d, _ := items.Def(c.Item.ID); d.Tradeable {
				cands = append(cands, c)
			}
		}
		sort.SliceStable(cands, func(i, j int) bool {
			di, _ := items.Def(cands[i].Item.ID)
			dj, _ := items.Def(cands[j].Item.ID)
			return di.Value > dj.Value
		})
		if len(cands) > n {
			cands = cands[:n]
		}
		return cands
	}
}

// Set is the ordered list of retained items, unique by slot.
type Set struct {
	items []Carried
	index map[Key]struct{}
}

func NewSet() *Set { return &Set{index: map[Key]struct{}{}} }

func (s *Set) Add(c Carried) bool {
	if _, ok := s.index[c.Key()]; ok {
		return false
	}
	s.index[c.Key()] = struct{}{}
	s.items = append(s.items, c)
	return true
}

func (s *Set) Contains(c Carried) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[c.Key()]
	return ok
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

func (s *Set) Items() []Carried {
	if s == nil {
		return nil
	}
	return append([]Carried(nil), s.items...)
}

// Retain builds the retained set: every untradeable item plus whatever the baseline keeps.
// It does not touch the containers.
func Retain(e *modelpkg.Entity, carried []Carried, items catalogs.ItemCatalog, baseline Baseline) *Set {
	keep := NewSet()
	if baseline != nil {
		for _, c := range baseline(e, carried, items) {
			keep.Add(c)
		}
	}
	out := NewSet()
	for _, c := range carried {
		d, _ := items.Def(c.Item.ID)
		if !d.Tradeable || keep.Contains(c) {
			out.Add(c)
		}
	}
	return out
}
