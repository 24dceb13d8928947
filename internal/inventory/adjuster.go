package inventory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-store-orders/internal/apperr"
	"github.com/ariefcatur/go-store-orders/internal/platform"
)

// Direction is the sign convention for an adjustment run.
type Direction int

const (
	Place  Direction = iota + 1 // stock leaves
	Cancel                      // stock returns
)

func (d Direction) String() string {
	switch d {
	case Place:
		return "PLACE"
	case Cancel:
		return "CANCEL"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

func (d Direction) sign() int {
	switch d {
	case Place:
		return -1
	case Cancel:
		return 1
	}
	return 0
}

// Item is one inventory item to move. KnownQuantity is the variant's
// inventory_quantity from the product read; it drives the fail-fast
// check on Place.
type Item struct {
	InventoryItemID int64
	Title           string
	KnownQuantity   int
	Quantity        int
}

// Levels is the part of the store API the adjuster needs.
type Levels interface {
	FetchInventoryLevels(ctx context.Context, inventoryItemIDs []int64) ([]platform.InventoryLevel, error)
	AdjustInventoryLevel(ctx context.Context, adj platform.Adjustment) (*platform.InventoryLevel, error)
}

// Locker serialises work on inventory items. Holding a lock only
// narrows the race with other writers; the store itself offers no
// compare-and-swap.
type Locker interface {
	Lock(ctx context.Context, inventoryItemIDs []int64) (unlock func(), err error)
}

// PartialError reports an aborted run. Applied lists the adjustments
// that reached the store before Err; they are not rolled back.
type PartialError struct {
	Applied []platform.Adjustment
	Failed  platform.Adjustment
	Err     error
}

func (e *PartialError) Error() string { return e.Err.Error() }

func (e *PartialError) Unwrap() error { return e.Err }

type Adjuster struct {
	Levels Levels
	Locker Locker // nil disables locking
	Log    *zap.Logger
}

func NewAdjuster(levels Levels, locker Locker, log *zap.Logger) *Adjuster {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adjuster{Levels: levels, Locker: locker, Log: log}
}

// step is one planned store write.
type step struct {
	item  Item
	delta int
}

// Adjust moves stock for items in the given direction. Checks run
// before any write; writes run one per item in input order and stop at
// the first failure.
func (a *Adjuster) Adjust(ctx context.Context, items []Item, dir Direction) error {
	sign := dir.sign()
	if sign == 0 {
		return apperr.New(apperr.KindValidation, "Invalid order type")
	}
	plan, err := buildPlan(items, sign)
	if err != nil {
		return err
	}
	if len(plan) == 0 {
		return nil
	}

	if dir == Place {
		for _, s := range plan {
			if s.item.KnownQuantity < s.item.Quantity {
				return apperr.Newf(apperr.KindOutOfStock, "%s out of stock", s.item.Title)
			}
		}
	}

	ids := make([]int64, len(plan))
	for i, s := range plan {
		ids[i] = s.item.InventoryItemID
	}

	if a.Locker != nil {
		unlock, err := a.Locker.Lock(ctx, ids)
		if err != nil {
			return apperr.Wrap(apperr.KindStorage, "Error locking inventory", err)
		}
		defer unlock()
	}

	levels, err := a.Levels.FetchInventoryLevels(ctx, ids)
	if err != nil {
		return err
	}
	// An item stocked at several locations uses the first level returned.
	byItem := make(map[int64]platform.InventoryLevel, len(levels))
	for _, l := range levels {
		if _, seen := byItem[l.InventoryItemID]; !seen {
			byItem[l.InventoryItemID] = l
		}
	}

	adjustments := make([]platform.Adjustment, 0, len(plan))
	for _, s := range plan {
		lvl, ok := byItem[s.item.InventoryItemID]
		if !ok || lvl.Available < abs(s.delta) {
			a.Log.Info("availability check failed",
				zap.Int64("inventory_item_id", s.item.InventoryItemID),
				zap.Bool("level_found", ok),
				zap.Int("available", lvl.Available),
				zap.Int("delta", s.delta),
				zap.Stringer("direction", dir),
			)
			return apperr.New(apperr.KindOutOfStock, "Some item out of stock")
		}
		adjustments = append(adjustments, platform.Adjustment{
			InventoryItemID:     s.item.InventoryItemID,
			LocationID:          lvl.LocationID,
			AvailableAdjustment: s.delta,
		})
	}

	for i, adj := range adjustments {
		if _, err := a.Levels.AdjustInventoryLevel(ctx, adj); err != nil {
			a.Log.Error("inventory adjustment aborted; earlier adjustments stay applied",
				zap.Stringer("direction", dir),
				zap.Int("applied", i),
				zap.Int("planned", len(adjustments)),
				zap.Int64("inventory_item_id", adj.InventoryItemID),
				zap.Error(err),
			)
			return &PartialError{
				Applied: append([]platform.Adjustment(nil), adjustments[:i]...),
				Failed:  adj,
				Err:     err,
			}
		}
	}

	a.Log.Debug("inventory adjusted", zap.Stringer("direction", dir), zap.Int("items", len(adjustments)))
	return nil
}

// buildPlan merges repeated inventory items into the position of their
// first occurrence and attaches the signed delta.
func buildPlan(items []Item, sign int) ([]step, error) {
	plan := make([]step, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, apperr.Newf(apperr.KindValidation, "Invalid quantity for %s", it.Title)
		}
		if i, ok := index[it.InventoryItemID]; ok {
			plan[i].item.Quantity += it.Quantity
			plan[i].delta = sign * plan[i].item.Quantity
			continue
		}
		index[it.InventoryItemID] = len(plan)
		plan = append(plan, step{item: it, delta: sign * it.Quantity})
	}
	return plan, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// ItemFor builds the adjustment item for a product using its first
// variant. ok is false when the product has no variants.
func ItemFor(p platform.Product, quantity int) (Item, bool) {
	v, ok := p.FirstVariant()
	if !ok {
		return Item{}, false
	}
	return Item{
		InventoryItemID: v.InventoryItemID,
		Title:           p.Title,
		KnownQuantity:   v.InventoryQuantity,
		Quantity:        quantity,
	}, true
}
