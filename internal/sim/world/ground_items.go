package world

import (
	"errors"
	"fmt"

	"pkworld.ai/internal/protocol"
	itemspkg "pkworld.ai/internal/sim/world/feature/entities/items"
	modelpkg "pkworld.ai/internal/sim/world/kernel/model"
)

var errDying = errors.New("entity is dying")

func (w *World) handlePickup(nowTick uint64, req PickupRequest) {
	e := w.entities[req.EntityID]
	if e == nil {
		return
	}
	if err := w.pickup(nowTick, e, req.GroundID); err != nil {
		code := protocol.ErrInvalidTarget
		switch {
		case errors.Is(err, errDying):
			code = protocol.ErrDying
		case errors.Is(err, itemspkg.ErrNotOwner):
			code = protocol.ErrNoPermission
		}
		w.sendError(e, code, err.Error())
	}
}

func (w *World) pickup(nowTick uint64, e *modelpkg.Entity, groundID string) error {
	if w.sched.Active(e.ID) {
		return errDying
	}
	g, ok := w.ground.Get(groundID)
	if !ok {
		return itemspkg.ErrNotFound
	}
	if g.Pos != e.Pos {
		return fmt.Errorf("pickup %s: not in reach", groundID)
	}
	if !itemspkg.VisibleTo(g, e.ID, nowTick) {
		return itemspkg.ErrNotOwner
	}
	def, _ := w.cats.Items.Def(g.Item.ID)
	if err := e.Inventory.Add(g.Item, def.Stackable); err != nil {
		return err
	}
	_, err := w.ground.Pickup(nowTick, e.ID, groundID)
	return err
}

func (w *World) sendError(e *modelpkg.Entity, code, msg string) {
	w.addEvent(e, protocol.Event{"type": protocol.TypeError, "code": code, "message": msg})
	c := w.clients[e.ID]
	if c == nil || c.Out == nil {
		return
	}
	b, err := protocol.Encode(protocol.NewError(code, msg), w.cfg.StrictProtocol)
	if err != nil {
		return
	}
	sendLatest(c.Out, b)
}
