package model

import "errors"

var ErrContainerFull = errors.New("container full")

const (
	InventoryCapacity = 28
	EquipmentCapacity = 14
)

type Item struct {
	ID     int
	Amount int
}

func (it Item) Valid() bool { return it.ID > 0 && it.Amount > 0 }

// SlotItem is a non-empty slot of a container.
type SlotItem struct {
	Slot int
	Item Item
}

// Container is a fixed-size slotted item container (inventory, equipment).
// Slots are never merged on read; two equal stacks in two slots stay two entries.
type Container struct {
	Kind  string
	slots []Item
	dirty bool
}

func NewContainer(kind string, capacity int) *Container {
	return &Container{Kind: kind, slots: make([]Item, capacity)}
}

func (c *Container) Capacity() int { return len(c.slots) }

// ValidItems returns the non-empty slots in slot order.
func (c *Container) ValidItems() []SlotItem {
	if c == nil {
		return nil
	}
	out := make([]SlotItem, 0, len(c.slots))
	for i, it := range c.slots {
		if it.Valid() {
			out = append(out, SlotItem{Slot: i, Item: it})
		}
	}
	return out
}

func (c *Container) Get(slot int) Item {
	if c == nil || slot < 0 || slot >= len(c.slots) {
		return Item{}
	}
	return c.slots[slot]
}

func (c *Container) Set(slot int, it Item) {
	if c == nil || slot < 0 || slot >= len(c.slots) {
		return
	}
	c.slots[slot] = it
	c.dirty = true
}

// Add puts it in the first matching stack (when stackable) or the first free slot.
func (c *Container) Add(it Item, stackable bool) error {
	if !it.Valid() {
		return nil
	}
	if stackable {
		for i := range c.slots {
			if c.slots[i].ID == it.ID && c.slots[i].Amount > 0 {
				c.slots[i].Amount += it.Amount
				c.dirty = true
				return nil
			}
		}
	}
	for i := range c.slots {
		if !c.slots[i].Valid() {
			c.slots[i] = it
			c.dirty = true
			return nil
		}
	}
	return ErrContainerFull
}

func (c *Container) Count(id int) int {
	n := 0
	for _, it := range c.ValidItems() {
		if it.Item.ID == id {
			n += it.Item.Amount
		}
	}
	return n
}

func (c *Container) Empty() bool { return len(c.ValidItems()) == 0 }

// Reset clears every slot.
func (c *Container) Reset() {
	for i := range c.slots {
		c.slots[i] = Item{}
	}
	c.dirty = true
}

// Dirty reports unsent changes and clears the flag.
func (c *Container) TakeDirty() bool {
	d := c.dirty
	c.dirty = false
	return d
}
