package domain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/farmrunner/engine/internal/gameconfig"
)

// sellBatchSize is the maximum number of items sold in a single batched Sell
// request; on batch failure WarehouseService falls back to per-item retries.
const sellBatchSize = 15

// goldItemIDs are the item ids treated as gold when summing a sell reply's
// gains.
var goldItemIDs = map[int]bool{1: true, 1001: true}

// WarehouseService wraps the bag and sell RPCs.
type WarehouseService struct {
	caller Caller
	config *gameconfig.Store
}

// NewWarehouseService constructs a WarehouseService bound to the given
// caller and catalogue (used by SellAllFruits to identify fruit items).
func NewWarehouseService(caller Caller, config *gameconfig.Store) *WarehouseService {
	return &WarehouseService{caller: caller, config: config}
}

// Bag fetches the current inventory.
func (w *WarehouseService) Bag(ctx context.Context, gid int64) ([]BagItem, error) {
	body, err := json.Marshal(struct {
		GID int64 `json:"gid"`
	}{GID: gid})
	if err != nil {
		return nil, fmt.Errorf("domain: marshal bag request: %w", err)
	}
	respBody, err := w.caller.Call(ctx, "WarehouseService", "Bag", body, defaultTimeout)
	if err != nil {
		return nil, err
	}
	var out []BagItem
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("domain: decode bag reply: %w", err)
	}
	return out, nil
}

// sellReply is the decoded reply of a Sell RPC: the items gained (gold and
// any byproduct) from the sale.
type sellReply struct {
	Gained []BagItem `json:"gained"`
}

// sell issues one Sell RPC for up to sellBatchSize items and returns the gold
// gained, summed over gained items whose id is in goldItemIDs.
func (w *WarehouseService) sell(ctx context.Context, gid int64, items []BagItem) (goldGained int, err error) {
	body, merr := json.Marshal(struct {
		GID   int64     `json:"gid"`
		Items []BagItem `json:"items"`
	}{GID: gid, Items: items})
	if merr != nil {
		return 0, fmt.Errorf("domain: marshal sell request: %w", merr)
	}

	respBody, err := w.caller.Call(ctx, "WarehouseService", "Sell", body, defaultTimeout)
	if err != nil {
		return 0, err
	}

	var reply sellReply
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return 0, fmt.Errorf("domain: decode sell reply: %w", err)
	}
	for _, item := range reply.Gained {
		if goldItemIDs[item.ItemID] {
			goldGained += item.Count
		}
	}
	return goldGained, nil
}

// Sell sells items in chunks of sellBatchSize; if a batch fails, it falls
// back to retrying each item in that batch individually so one bad item does
// not block the rest of the sale.
func (w *WarehouseService) Sell(ctx context.Context, gid int64, items []BagItem) (goldGained int, soldCount int, err error) {
	for start := 0; start < len(items); start += sellBatchSize {
		end := start + sellBatchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		gained, batchErr := w.sell(ctx, gid, batch)
		if batchErr == nil {
			goldGained += gained
			soldCount += len(batch)
			continue
		}

		for _, item := range batch {
			g, itemErr := w.sell(ctx, gid, []BagItem{item})
			if itemErr != nil {
				continue
			}
			goldGained += g
			soldCount++
		}
	}
	return goldGained, soldCount, nil
}

// BuySeed purchases count units of seedID. Used by auto-plant to top up
// stock before planting; the caller treats a failure here as non-fatal and
// still attempts to plant from whatever stock already exists.
func (w *WarehouseService) BuySeed(ctx context.Context, gid int64, seedID, count int) error {
	body, err := json.Marshal(struct {
		GID    int64 `json:"gid"`
		SeedID int   `json:"seedId"`
		Count  int   `json:"count"`
	}{GID: gid, SeedID: seedID, Count: count})
	if err != nil {
		return fmt.Errorf("domain: marshal buy seed request: %w", err)
	}
	_, err = w.caller.Call(ctx, "WarehouseService", "BuySeed", body, defaultTimeout)
	return err
}

// SellAllFruits enumerates the bag for items whose id has a catalogued fruit
// entry and sells them in one Sell call (batched internally by Sell).
func (w *WarehouseService) SellAllFruits(ctx context.Context, gid int64) (goldGained int, soldCount int, err error) {
	bag, err := w.Bag(ctx, gid)
	if err != nil {
		return 0, 0, err
	}

	var fruits []BagItem
	for _, item := range bag {
		if _, ok := w.config.PlantByFruitID(item.ItemID); ok {
			fruits = append(fruits, item)
		}
	}
	if len(fruits) == 0 {
		return 0, 0, nil
	}

	return w.Sell(ctx, gid, fruits)
}
