package world

import (
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"pkworld.ai/internal/protocol"
	"pkworld.ai/internal/sim/catalogs"
	"pkworld.ai/internal/sim/scheduler"
	"pkworld.ai/internal/sim/tuning"
	itemspkg "pkworld.ai/internal/sim/world/feature/entities/items"
	"pkworld.ai/internal/sim/world/feature/pvp"
	"pkworld.ai/internal/sim/world/feature/survival/retention"
	"pkworld.ai/internal/sim/world/feature/zones"
	modelpkg "pkworld.ai/internal/sim/world/kernel/model"
)

var ErrUnknownEntity = errors.New("unknown entity")

type Config struct {
	ID     string
	Tuning tuning.Tuning
	// StrictProtocol validates every pushed message against its schema.
	StrictProtocol bool
}

type JoinRequest struct {
	EntityID string
	Host     string
	Out      chan []byte
	Resp     chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
	Err     *protocol.ErrorMsg
}

type KillRequest struct {
	VictimID string
	// KillerID may be empty: the victim's last attacker is used instead.
	KillerID string
	Resp     chan error
}

type AttackRequest struct {
	AttackerID string
	TargetID   string
	Resp       chan error
}

type PickupRequest struct {
	EntityID string
	GroundID string
}

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg  Config
	cats *catalogs.Catalogs
	log  *log.Logger

	tick atomic.Uint64

	entities map[string]*modelpkg.Entity
	clients  map[string]*clientState

	ground   *itemspkg.Store
	sched    *scheduler.Scheduler
	zones    *zones.Map
	ledger   *pvp.Ledger
	baseline retention.Baseline
	spawn    modelpkg.Vec3i

	join   chan JoinRequest
	leave  chan string
	kill   chan KillRequest
	attack chan AttackRequest
	inbox  chan PickupRequest
	stop   chan struct{}

	// Optional (may be nil). Implemented in internal/persistence/*.
	auditLogger AuditLogger
}

type clientState struct {
	Out chan []byte
}

func New(cfg Config, cats *catalogs.Catalogs, logger *log.Logger) (*World, error) {
	if cats == nil {
		return nil, fmt.Errorf("world: nil catalogs")
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[world] ", log.LstdFlags|log.Lmicroseconds)
	}
	w := &World{
		cfg:      cfg,
		cats:     cats,
		log:      logger,
		entities: map[string]*modelpkg.Entity{},
		clients:  map[string]*clientState{},
		sched:    scheduler.New(logger),
		zones:    zones.NewMap(cfg.Tuning.Zones),
		baseline: retention.MostValuable(cfg.Tuning.Death.KeepCount),
		spawn:    modelpkg.VecFromSlice(cfg.Tuning.DefaultSpawn),
		join:     make(chan JoinRequest, 64),
		leave:    make(chan string, 64),
		kill:     make(chan KillRequest, 64),
		attack:   make(chan AttackRequest, 64),
		inbox:    make(chan PickupRequest, 1024),
		stop:     make(chan struct{}),
	}
	w.ground = itemspkg.NewStore(w.auditEvent)
	w.ledger = pvp.NewLedger(cfg.Tuning.PvP, nil, pvp.Hooks{Notify: w.notify})
	return w, nil
}

func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }

// SetPvPStore attaches persistent pvp stats. Call it before Run.
func (w *World) SetPvPStore(s pvp.Store, loaded []pvp.Stats) {
	w.ledger.SetStore(s)
	w.ledger.Load(loaded)
}

func (w *World) Join() chan<- JoinRequest     { return w.join }
func (w *World) Leave() chan<- string         { return w.leave }
func (w *World) Kill() chan<- KillRequest     { return w.kill }
func (w *World) Attack() chan<- AttackRequest { return w.attack }
func (w *World) Inbox() chan<- PickupRequest  { return w.inbox }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// ---- Debug/Test Helpers ----
//
// They are NOT safe to call concurrently with Run(). Use them only from tests that
// drive the world via StepOnce() from a single goroutine.

func (w *World) DebugAddEntity(e *modelpkg.Entity) {
	if e == nil || e.ID == "" {
		return
	}
	e.InitDefaults()
	w.entities[e.ID] = e
}

func (w *World) DebugEntity(id string) *modelpkg.Entity { return w.entities[id] }

func (w *World) DebugGroundItems(owner string) []modelpkg.GroundItem { return w.ground.OwnedBy(owner) }

func (w *World) DebugPvPStats(id string) pvp.Stats { return w.ledger.Stats(id) }

func (w *World) DebugDeathActive(id string) bool { return w.sched.Active(id) }
