package world

import (
	"context"
	"time"

	"pkworld.ai/internal/protocol"
	modelpkg "pkworld.ai/internal/sim/world/kernel/model"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.Tuning.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingPickups []PickupRequest

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			w.handleJoin(req)
		case id := <-w.leave:
			w.handleLeave(id)
		case req := <-w.kill:
			req.Resp <- w.KillEntity(req.VictimID, req.KillerID)
		case req := <-w.attack:
			req.Resp <- w.RecordAttack(req.AttackerID, req.TargetID)
		case req := <-w.inbox:
			pendingPickups = append(pendingPickups, req)
		case <-ticker.C:
			w.step(ctx, pendingPickups)
			pendingPickups = pendingPickups[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances the world by a single tick using the same ordering as the server loop.
func (w *World) StepOnce(ctx context.Context, pickups []PickupRequest) uint64 {
	tick := w.tick.Load()
	w.step(ctx, pickups)
	return tick
}

// step runs one tick: queued pickups, then death sequences and other scheduled
// tasks, then periodic ground item cleanup.
func (w *World) step(ctx context.Context, pickups []PickupRequest) {
	nowTick := w.tick.Load()

	for _, p := range pickups {
		w.handlePickup(nowTick, p)
	}
	w.sched.Tick(ctx)

	if every := w.cfg.Tuning.Loot.CleanupEveryTicks; every > 0 && nowTick%uint64(every) == 0 {
		if n := w.ground.CleanupExpired(nowTick); n > 0 {
			w.log.Printf("tick %d: despawned %d ground items", nowTick, n)
		}
	}

	w.tick.Add(1)
}

func (w *World) handleJoin(req JoinRequest) {
	resp := JoinResponse{}
	defer func() {
		if req.Resp != nil {
			req.Resp <- resp
		}
	}()
	if req.EntityID == "" {
		e := protocol.NewError(protocol.ErrBadRequest, "missing entity_id")
		resp.Err = &e
		return
	}
	if w.clients[req.EntityID] != nil {
		e := protocol.NewError(protocol.ErrConflict, "entity already connected")
		resp.Err = &e
		return
	}
	ent := w.entities[req.EntityID]
	if ent == nil {
		ent = modelpkg.NewEntity(req.EntityID, req.EntityID)
		ent.Pos = w.spawn
		w.entities[ent.ID] = ent
	}
	ent.Host = req.Host
	ent.Connected = true
	if req.Out != nil {
		w.clients[ent.ID] = &clientState{Out: req.Out}
	}
	resp.Welcome = protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		EntityID:        ent.ID,
		Name:            ent.Name,
		Tick:            w.tick.Load(),
	}
}

// handleLeave detaches the client. A running death sequence keeps going; the
// entity only stops being resolvable as a killer.
func (w *World) handleLeave(entityID string) {
	delete(w.clients, entityID)
	if e := w.entities[entityID]; e != nil {
		e.Connected = false
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
