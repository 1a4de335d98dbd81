// Package pvp credits player kills: kill/death counters, streaks and points.
package pvp

import (
	"fmt"
	"sort"

	"pkworld.ai/internal/sim/tuning"
	modelpkg "pkworld.ai/internal/sim/world/kernel/model"
)

type Stats struct {
	EntityID      string `json:"entity_id"`
	Kills         int    `json:"kills"`
	Deaths        int    `json:"deaths"`
	Streak        int    `json:"streak"`
	HighestStreak int    `json:"highest_streak"`
	Points        int    `json:"points"`
}

// Store persists stats. Saves are fire-and-forget; implementations must not block the caller.
type Store interface {
	SavePvPStats(s Stats)
}

type Hooks struct {
	Notify func(e *modelpkg.Entity, text string) error
}

// Result describes what a single OnDeath call credited.
type Result struct {
	Farmed    bool
	Points    int
	Streak    int
	Milestone bool
}

// Ledger must only be used from the world loop goroutine.
type Ledger struct {
	cfg   tuning.PvP
	store Store
	hooks Hooks

	stats map[string]*Stats
	// recent[killerID][victimHost] is the tick of the last credited kill.
	recent map[string]map[string]uint64
}

func NewLedger(cfg tuning.PvP, store Store, hooks Hooks) *Ledger {
	return &Ledger{
		cfg:    cfg,
		store:  store,
		hooks:  hooks,
		stats:  map[string]*Stats{},
		recent: map[string]map[string]uint64{},
	}
}

func (l *Ledger) SetStore(s Store) { l.store = s }

// Load seeds the ledger with previously persisted stats.
func (l *Ledger) Load(all []Stats) {
	for _, s := range all {
		if s.EntityID == "" {
			continue
		}
		cp := s
		l.stats[s.EntityID] = &cp
	}
}

func (l *Ledger) Stats(entityID string) Stats {
	if s := l.stats[entityID]; s != nil {
		return *s
	}
	return Stats{EntityID: entityID}
}

// All returns every known entry sorted by entity id.
func (l *Ledger) All() []Stats {
	out := make([]Stats, 0, len(l.stats))
	for _, s := range l.stats {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

func FarmWarning(victimName string) string {
	return fmt.Sprintf("You have recently killed %s. You will not receive points for this kill.", victimName)
}

func KillSummary(victimName string, points, streak int) string {
	return fmt.Sprintf("You have defeated %s and earned %d points. Killstreak: %d.", victimName, points, streak)
}

func MilestoneNotice(streak int) string {
	return fmt.Sprintf("You are on a %d kill streak!", streak)
}

// OnDeath credits killer for victim's death at nowTick.
// A repeat kill of the same victim host inside the farm window only warns the killer.
func (l *Ledger) OnDeath(nowTick uint64, killer, victim *modelpkg.Entity) (Result, error) {
	var res Result
	if killer == nil || victim == nil || killer.ID == victim.ID {
		return res, nil
	}

	host := victim.Host
	if host == "" {
		host = victim.ID
	}
	byHost := l.recent[killer.ID]
	if byHost == nil {
		byHost = map[string]uint64{}
		l.recent[killer.ID] = byHost
	}
	window := uint64(l.cfg.FarmWindowTicks)
	for h, at := range byHost {
		if nowTick-at >= window {
			delete(byHost, h)
		}
	}
	if _, ok := byHost[host]; ok && window > 0 {
		res.Farmed = true
		return res, l.notify(killer, FarmWarning(victim.Name))
	}
	byHost[host] = nowTick

	k := l.entry(killer.ID)
	k.Kills++
	k.Streak++
	if k.Streak > k.HighestStreak {
		k.HighestStreak = k.Streak
	}
	pts := l.cfg.BasePoints + k.Streak*l.cfg.StreakBonus
	if l.cfg.MaxPoints > 0 && pts > l.cfg.MaxPoints {
		pts = l.cfg.MaxPoints
	}
	k.Points += pts

	v := l.entry(victim.ID)
	v.Deaths++
	v.Streak = 0

	l.save(*k)
	l.save(*v)

	res.Points = pts
	res.Streak = k.Streak
	res.Milestone = l.cfg.StreakMilestone > 0 && k.Streak%l.cfg.StreakMilestone == 0

	if err := l.notify(killer, KillSummary(victim.Name, pts, k.Streak)); err != nil {
		return res, err
	}
	if res.Milestone {
		return res, l.notify(killer, MilestoneNotice(k.Streak))
	}
	return res, nil
}

func (l *Ledger) entry(id string) *Stats {
	s := l.stats[id]
	if s == nil {
		s = &Stats{EntityID: id}
		l.stats[id] = s
	}
	return s
}

func (l *Ledger) save(s Stats) {
	if l.store != nil {
		l.store.SavePvPStats(s)
	}
}

func (l *Ledger) notify(e *modelpkg.Entity, text string) error {
	if l.hooks.Notify == nil {
		return nil
	}
	return l.hooks.Notify(e, text)
}
