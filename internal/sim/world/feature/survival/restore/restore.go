package restore

import (
	"fmt"

	"pkworld.ai/internal/sim/catalogs"
	modelpkg "pkworld.ai/internal/sim/world/kernel/model"
)

type Hooks struct {
	// Add puts a restored item back into the entity's inventory.
	Add    func(e *modelpkg.Entity, it modelpkg.Item) error
	Notify func(e *modelpkg.Entity, text string) error
}

// Result lists what was given back, in retained order.
type Result struct {
	Restored []modelpkg.Item
	Broken   int
}

// Item maps it to its broken form when one exists. Quantity is preserved.
func Item(it modelpkg.Item, broken catalogs.BrokenCatalog) (modelpkg.Item, bool) {
	if id, ok := broken.Broken(it.ID); ok {
		return modelpkg.Item{ID: id, Amount: it.Amount}, true
	}
	return it, false
}

func BrokenNotice(name, repairNPC string) string {
	return fmt.Sprintf("Your %s has been broken. You can fix it by talking to %s.", name, repairNPC)
}

// Restore gives every retained item back to e, breaking the ones with a broken form.
// The first hook error aborts the restore.
func Restore(e *modelpkg.Entity, retained []modelpkg.Item, cats *catalogs.Catalogs, repairNPC string, hooks Hooks) (Result, error) {
	var res Result
	if e == nil || cats == nil {
		return res, nil
	}
	for _, it := range retained {
		out, broke := Item(it, cats.Broken)
		if broke {
			res.Broken++
			if hooks.Notify != nil {
				if err := hooks.Notify(e, BrokenNotice(cats.Items.Name(it.ID), repairNPC)); err != nil {
					return res, fmt.Errorf("notify broken %d: %w", it.ID, err)
				}
			}
		}
		if hooks.Add != nil {
			if err := hooks.Add(e, out); err != nil {
				return res, fmt.Errorf("restore %d: %w", out.ID, err)
			}
		}
		res.Restored = append(res.Restored, out)
	}
	return res, nil
}
