package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

type Catalogs struct {
	Items    ItemCatalog
	Trophies TrophyCatalog
	Broken   BrokenCatalog
}

type ItemDef struct {
	ID        int    `yaml:"id"`
	Name      string `yaml:"name"`
	Tradeable bool   `yaml:"tradeable"`
	Value     int    `yaml:"value"`
	Stackable bool   `yaml:"stackable"`
}

type ItemCatalog struct {
	Defs   map[int]ItemDef
	Digest string
}

// Def returns the definition for id. Unknown ids are treated as untradeable and worthless.
func (c ItemCatalog) Def(id int) (ItemDef, bool) {
	d, ok := c.Defs[id]
	if !ok {
		return ItemDef{ID: id, Name: fmt.Sprintf("item #%d", id)}, false
	}
	return d, true
}

func (c ItemCatalog) Name(id int) string {
	d, _ := c.Def(id)
	return d.Name
}

// TrophyTier is one entry of a trophy series. DowngradeTo is 0 for the lowest tier.
type TrophyTier struct {
	ID          int `yaml:"id"`
	Tier        int `yaml:"tier"`
	DowngradeTo int `yaml:"downgrade_to"`
}

func (t TrophyTier) Lowest() bool { return t.DowngradeTo == 0 }

type TrophyCatalog struct {
	Tiers  []TrophyTier
	byID   map[int]TrophyTier
	Digest string
}

func (c TrophyCatalog) Lookup(id int) (TrophyTier, bool) {
	t, ok := c.byID[id]
	return t, ok
}

type BrokenItem struct {
	ID       int `yaml:"id"`
	BrokenID int `yaml:"broken_id"`
}

type BrokenCatalog struct {
	ByID   map[int]int
	Digest string
}

func (c BrokenCatalog) Broken(id int) (int, bool) {
	b, ok := c.ByID[id]
	return b, ok
}

type file struct {
	Items    []ItemDef    `yaml:"items"`
	Trophies []TrophyTier `yaml:"trophies"`
	Broken   []BrokenItem `yaml:"broken"`
}

func Load(configDir string) (*Catalogs, error) {
	path := filepath.Join(configDir, "items.yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("items.yaml: %w", err)
	}
	c, err := New(f.Items, f.Trophies, f.Broken)
	if err != nil {
		return nil, fmt.Errorf("items.yaml: %w", err)
	}
	return c, nil
}

func New(items []ItemDef, trophies []TrophyTier, broken []BrokenItem) (*Catalogs, error) {
	var c Catalogs
	if err := buildItems(items, &c.Items); err != nil {
		return nil, err
	}
	if err := buildTrophies(trophies, &c.Trophies); err != nil {
		return nil, err
	}
	if err := buildBroken(broken, &c.Broken); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func digestOf(v any) string {
	b, _ := yaml.Marshal(v)
	return sha256Hex(b)
}

func buildItems(defs []ItemDef, out *ItemCatalog) error {
	out.Defs = make(map[int]ItemDef, len(defs))
	for _, d := range defs {
		if d.ID <= 0 {
			return fmt.Errorf("items: invalid id %d", d.ID)
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("items: duplicate id %d", d.ID)
		}
		if d.Value < 0 {
			return fmt.Errorf("items: %d: negative value", d.ID)
		}
		out.Defs[d.ID] = d
	}
	ids := make([]int, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	sorted := make([]ItemDef, 0, len(ids))
	for _, id := range ids {
		sorted = append(sorted, out.Defs[id])
	}
	out.Digest = digestOf(sorted)
	return nil
}

func buildTrophies(tiers []TrophyTier, out *TrophyCatalog) error {
	sorted := append([]TrophyTier(nil), tiers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Tier < sorted[j].Tier })
	out.byID = make(map[int]TrophyTier, len(sorted))
	for i, t := range sorted {
		if t.ID <= 0 {
			return fmt.Errorf("trophies: invalid id %d", t.ID)
		}
		if _, dup := out.byID[t.ID]; dup {
			return fmt.Errorf("trophies: duplicate id %d", t.ID)
		}
		if i == 0 && t.DowngradeTo != 0 {
			return fmt.Errorf("trophies: lowest tier %d cannot downgrade", t.ID)
		}
		if i > 0 {
			if t.Tier == sorted[i-1].Tier {
				return fmt.Errorf("trophies: duplicate tier %d", t.Tier)
			}
			if t.DowngradeTo == 0 {
				return fmt.Errorf("trophies: tier %d (%d) has no downgrade", t.Tier, t.ID)
			}
			lower, ok := out.byID[t.DowngradeTo]
			if !ok || lower.Tier >= t.Tier {
				return fmt.Errorf("trophies: tier %d (%d) downgrades to %d which is not a lower tier", t.Tier, t.ID, t.DowngradeTo)
			}
		}
		out.byID[t.ID] = t
	}
	out.Tiers = sorted
	out.Digest = digestOf(sorted)
	return nil
}

func buildBroken(items []BrokenItem, out *BrokenCatalog) error {
	out.ByID = make(map[int]int, len(items))
	for _, b := range items {
		if b.ID <= 0 || b.BrokenID <= 0 {
			return fmt.Errorf("broken: invalid mapping %d -> %d", b.ID, b.BrokenID)
		}
		if b.ID == b.BrokenID {
			return fmt.Errorf("broken: %d maps to itself", b.ID)
		}
		out.ByID[b.ID] = b.BrokenID
	}
	sorted := append([]BrokenItem(nil), items...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	out.Digest = digestOf(sorted)
	return nil
}
