package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz   int   `yaml:"tick_rate_hz"`
	DefaultSpawn []int `yaml:"default_spawn"`

	Death Death  `yaml:"death"`
	Loot  Loot   `yaml:"loot"`
	PvP   PvP    `yaml:"pvp"`
	Zones []Zone `yaml:"zones"`
}

type Death struct {
	AnimationID int    `yaml:"animation_id"`
	KeepCount   int    `yaml:"keep_count"`
	RepairNPC   string `yaml:"repair_npc"`
}

type Loot struct {
	ProtectionTicks   int `yaml:"protection_ticks"`
	GlobalTicks       int `yaml:"global_ticks"`
	CleanupEveryTicks int `yaml:"cleanup_every_ticks"`
}

type PvP struct {
	FarmWindowTicks int `yaml:"farm_window_ticks"`
	BasePoints      int `yaml:"base_points"`
	StreakBonus     int `yaml:"streak_bonus"`
	MaxPoints       int `yaml:"max_points"`
	StreakMilestone int `yaml:"streak_milestone"`
}

// Zone is an axis-aligned box; the first zone containing a position wins.
type Zone struct {
	Name    string `yaml:"name"`
	Min     []int  `yaml:"min"`
	Max     []int  `yaml:"max"`
	Forfeit bool   `yaml:"forfeit"`
	OnDeath string `yaml:"on_death"` // "none","clear_skull","end_duel"
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		TickRateHz:      2, // 600ms game ticks
		DefaultSpawn:    []int{3093, 3493, 0},
		Death: Death{
			AnimationID: 836,
			KeepCount:   3,
			RepairNPC:   "Perdu",
		},
		Loot: Loot{
			ProtectionTicks:   150,
			GlobalTicks:       150,
			CleanupEveryTicks: 50,
		},
		PvP: PvP{
			FarmWindowTicks: 3000, // ~30 minutes
			BasePoints:      10,
			StreakBonus:     2,
			MaxPoints:       50,
			StreakMilestone: 5,
		},
		Zones: []Zone{
			{
				Name:    "wilderness",
				Min:     []int{2941, 3525, 0},
				Max:     []int{3392, 3968, 3},
				Forfeit: true,
				OnDeath: "clear_skull",
			},
			{
				Name:    "duel_arena",
				Min:     []int{3332, 3203, 0},
				Max:     []int{3390, 3260, 3},
				OnDeath: "end_duel",
			},
		},
	}
}

// Load reads a tuning file on top of Defaults, so a partial file only overrides what it names.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be > 0")
	}
	if len(t.DefaultSpawn) != 3 {
		return fmt.Errorf("default_spawn must have 3 coordinates")
	}
	if t.Death.KeepCount < 0 {
		return fmt.Errorf("death.keep_count must be >= 0")
	}
	if t.Loot.ProtectionTicks < 0 || t.Loot.GlobalTicks < 0 {
		return fmt.Errorf("loot windows must be >= 0")
	}
	for i, z := range t.Zones {
		if z.Name == "" {
			return fmt.Errorf("zones[%d]: empty name", i)
		}
		if len(z.Min) != 3 || len(z.Max) != 3 {
			return fmt.Errorf("zones[%d] %s: min/max must have 3 coordinates", i, z.Name)
		}
		switch z.OnDeath {
		case "", "none", "clear_skull", "end_duel":
		default:
			return fmt.Errorf("zones[%d] %s: unknown on_death %q", i, z.Name, z.OnDeath)
		}
	}
	return nil
}
