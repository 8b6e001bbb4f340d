package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/farmrunner/engine/internal/domain"
)

const (
	fertilizerNormalItemID  = 1011
	fertilizerOrganicItemID = 1012
)

// autoPlant resolves seed stock from the bag, tops it up with an affordable
// buy if short, plants one land at a time, and applies fertilizer to each
// newly planted land per the configured mode.
func (r *Runtime) autoPlant(ctx context.Context, gid int64, landIDs []int) {
	if len(landIDs) == 0 {
		return
	}

	settings := r.currentSettings()
	state := r.sessionState()

	seedID, ok := selectSeed(r.deps.Config, settings.Strategy, settings.PreferredSeedID, state.Level)
	if !ok {
		r.logger.Warn("auto-plant: no seed available for current level")
		return
	}

	stock := r.seedStock(ctx, gid, seedID)
	target := len(landIDs)
	if stock < target {
		plant, found := r.deps.Config.PlantBySeedID(seedID)
		if found && plant.Price > 0 {
			affordable := state.Gold / plant.Price
			if buyCount := target - stock; buyCount > 0 {
				if affordable < buyCount {
					buyCount = affordable
				}
				if buyCount > 0 {
					// Buy failure is non-fatal: still attempt to plant from
					// whatever stock already exists.
					if err := r.buySeed(ctx, gid, seedID, buyCount); err != nil {
						r.logger.Warn("auto-plant: buy failed", zap.Error(err))
					} else {
						stock += buyCount
					}
				}
			}
		}
		if stock < target {
			target = stock
		}
	}
	if target <= 0 {
		return
	}

	planted, _, _ := r.farm.Plant(ctx, gid, []domain.PlantBatch{{SeedID: seedID, LandIDs: landIDs[:target]}})
	if len(planted) == 0 {
		return
	}
	r.incOp("plant", int64(len(planted)))

	r.applyFertilizer(ctx, gid, planted, settings.Automation.Fertilizer)
}

func (r *Runtime) applyFertilizer(ctx context.Context, gid int64, landIDs []int, mode FertilizerMode) {
	switch mode {
	case FertilizerNormal:
		r.fertilize(ctx, gid, landIDs, fertilizerNormalItemID)
	case FertilizerOrganic:
		r.fertilize(ctx, gid, landIDs, fertilizerOrganicItemID)
	case FertilizerBoth:
		r.fertilize(ctx, gid, landIDs, fertilizerNormalItemID)
		r.fertilize(ctx, gid, landIDs, fertilizerOrganicItemID)
	case FertilizerNone:
	}
}

func (r *Runtime) fertilize(ctx context.Context, gid int64, landIDs []int, itemID int) {
	n, err := r.farm.Fertilize(ctx, gid, landIDs, itemID)
	if n > 0 {
		r.incOp("fertilize", int64(n))
	}
	if err != nil {
		r.logger.Warn("auto-plant: fertilize failed", zap.Int("item_id", itemID), zap.Error(err))
	}
}

func (r *Runtime) seedStock(ctx context.Context, gid int64, seedID int) int {
	bag, err := r.ware.Bag(ctx, gid)
	if err != nil {
		return 0
	}
	for _, item := range bag {
		if item.ItemID == seedID {
			return item.Count
		}
	}
	return 0
}

func (r *Runtime) buySeed(ctx context.Context, gid int64, seedID, count int) error {
	return r.ware.BuySeed(ctx, gid, seedID, count)
}

// autoSell sells every bag item whose id is registered as a harvestable
// fruit in the game config catalogue.
func (r *Runtime) autoSell(ctx context.Context, gid int64) {
	gained, sold, err := r.ware.SellAllFruits(ctx, gid)
	if err != nil {
		r.logger.Warn("auto-sell failed", zap.Error(err))
		return
	}
	if sold > 0 {
		r.incOp("sell", int64(sold))
		r.logger.Debug("auto-sell complete", zap.Int("gold_gained", gained), zap.Int("sold_count", sold))
	}
}
