package runtime

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/farmrunner/engine/internal/domain"
)

// farmMode selects which phase(s) of the farm operation state machine
// doFarmOperation runs.
type farmMode string

const (
	farmModeAll     farmMode = "all"
	farmModeHarvest farmMode = "harvest"
	farmModeClear   farmMode = "clear"
	farmModePlant   farmMode = "plant"
	farmModeUpgrade farmMode = "upgrade"

	// phaseNameMature/phaseNameDead name the current-phase values that mark a
	// land ready to harvest or needing clearing before it can be replanted.
	phaseNameMature = "mature"
	phaseNameDead   = "dead"

	upgradeStepSpacing = 200 * time.Millisecond
)

// landSurvey classifies the lands returned by a Lands inspection into the
// buckets the farm state machine acts on.
type landSurvey struct {
	weedTargets  []int
	bugTargets   []int
	waterTargets []int
	harvestable  []int
	deadIDs      []int
	emptyIDs     []int
	unlockable   []int
	upgradable   []int
}

func surveyLands(lands []domain.Land, now time.Time) landSurvey {
	var s landSurvey
	for _, land := range lands {
		if !land.Unlocked && land.CouldUnlock {
			s.unlockable = append(s.unlockable, land.ID)
			continue
		}
		if !land.Unlocked {
			continue
		}
		if land.CouldUpgrade {
			s.upgradable = append(s.upgradable, land.ID)
		}

		if land.Plant == nil {
			s.emptyIDs = append(s.emptyIDs, land.ID)
			continue
		}

		p := land.Plant
		if len(p.WeedOwners) > 0 {
			s.weedTargets = append(s.weedTargets, land.ID)
		}
		if len(p.InsectOwners) > 0 {
			s.bugTargets = append(s.bugTargets, land.ID)
		}
		if p.DryNum > 0 {
			s.waterTargets = append(s.waterTargets, land.ID)
		}

		phase, ok := p.CurrentPhase(now)
		if !ok {
			continue
		}
		switch phase.Name {
		case phaseNameMature:
			s.harvestable = append(s.harvestable, land.ID)
		case phaseNameDead:
			s.deadIDs = append(s.deadIDs, land.ID)
		}
	}
	return s
}

// doFarmOperation runs the farm state machine for the given mode: clearing
// (weed, then bug, then water, each independent), harvesting, planting (with
// remove-plant of dead/harvested lands first), and land upgrades, finishing
// with an auto-sell if anything was harvested and automation.sell is on.
func (r *Runtime) doFarmOperation(ctx context.Context, mode farmMode) {
	r.farmMu.Lock()
	defer r.farmMu.Unlock()

	state := r.sessionState()
	if !state.LoginReady {
		return
	}
	gid := state.GID

	result, err := r.farm.Lands(ctx, gid)
	if err != nil {
		r.logger.Warn("farm: lands inspection failed", zap.String("mode", string(mode)), zap.Error(err))
		return
	}
	r.quota.Update(result.OperationLimits)
	r.setLandCache(result.Lands)

	survey := surveyLands(result.Lands, time.Now())
	settings := r.currentSettings()

	harvestedAny := false

	if mode == farmModeAll || mode == farmModeClear {
		r.clearStep(ctx, gid, survey)
	}

	if mode == farmModeAll || mode == farmModeHarvest {
		harvestedAny = r.harvestStep(ctx, gid, survey.harvestable)
	}

	if mode == farmModeAll || mode == farmModePlant {
		r.plantStep(ctx, gid, survey)
	}

	if mode == farmModeUpgrade || (mode == farmModeAll && settings.Automation.LandUpgrade) {
		r.upgradeStep(ctx, gid, survey)
	}

	if harvestedAny && settings.Automation.Sell {
		r.autoSell(ctx, gid)
	}
}

func (r *Runtime) clearStep(ctx context.Context, gid int64, survey landSurvey) {
	if len(survey.weedTargets) > 0 {
		n, err := r.farm.ClearWeed(ctx, gid, survey.weedTargets)
		r.incOp("weed", int64(n))
		if err != nil {
			r.logger.Warn("farm: weed clear failed", zap.Error(err))
		}
	}
	if len(survey.bugTargets) > 0 {
		n, err := r.farm.ClearBug(ctx, gid, survey.bugTargets)
		r.incOp("bug", int64(n))
		if err != nil {
			r.logger.Warn("farm: bug clear failed", zap.Error(err))
		}
	}
	if len(survey.waterTargets) > 0 {
		n, err := r.farm.Water(ctx, gid, survey.waterTargets)
		r.incOp("water", int64(n))
		if err != nil {
			r.logger.Warn("farm: water failed", zap.Error(err))
		}
	}
}

func (r *Runtime) harvestStep(ctx context.Context, gid int64, harvestable []int) bool {
	if len(harvestable) == 0 {
		return false
	}
	err := r.farm.Harvest(ctx, gid, harvestable)
	if err != nil {
		r.logger.Warn("farm: harvest failed", zap.Error(err))
		return false
	}
	r.incOp("harvest", int64(len(harvestable)))
	r.markHarvested(harvestable)
	return true
}

func (r *Runtime) plantStep(ctx context.Context, gid int64, survey landSurvey) {
	toClear := dedupeInts(append(append([]int{}, survey.deadIDs...), r.takeHarvested()...))
	for _, landID := range toClear {
		// Errors ignored: harvested lands are unconditionally re-queued into
		// the plant pool regardless of whether remove-plant was necessary.
		_ = r.farm.RemovePlant(ctx, gid, landID)
	}

	plantable := dedupeInts(append(toClear, survey.emptyIDs...))
	r.autoPlant(ctx, gid, plantable)
}

func (r *Runtime) upgradeStep(ctx context.Context, gid int64, survey landSurvey) {
	for _, landID := range survey.unlockable {
		if err := r.farm.Unlock(ctx, gid, landID); err != nil {
			r.logger.Warn("farm: unlock failed", zap.Int("land_id", landID), zap.Error(err))
		}
		sleepOrDone(ctx, upgradeStepSpacing)
	}
	for _, landID := range survey.upgradable {
		if err := r.farm.Upgrade(ctx, gid, landID); err != nil {
			r.logger.Warn("farm: upgrade failed", zap.Int("land_id", landID), zap.Error(err))
			continue
		}
		r.incOp("upgrade", 1)
		sleepOrDone(ctx, upgradeStepSpacing)
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func dedupeInts(in []int) []int {
	seen := make(map[int]bool, len(in))
	out := in[:0:0]
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func (r *Runtime) setLandCache(lands []domain.Land) {
	r.landCacheMu.Lock()
	r.landCache = lands
	r.landCacheMu.Unlock()
}

func (r *Runtime) markHarvested(ids []int) {
	r.landCacheMu.Lock()
	r.pendingHarvested = append(r.pendingHarvested, ids...)
	r.landCacheMu.Unlock()
}

func (r *Runtime) takeHarvested() []int {
	r.landCacheMu.Lock()
	defer r.landCacheMu.Unlock()
	out := r.pendingHarvested
	r.pendingHarvested = nil
	return out
}
