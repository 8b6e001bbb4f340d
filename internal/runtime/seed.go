package runtime

import (
	"github.com/farmrunner/engine/internal/domain"
	"github.com/farmrunner/engine/internal/gameconfig"
)

// selectSeed picks the seed id auto-plant should use, given the account's
// current level and configured strategy.
//
// strategy=preferred uses preferredSeedID if it is unlocked at the current
// level. The max_* strategies walk the analytics ranking (descending by the
// strategy's sort key) and pick the first entry unlocked at the current
// level. Anything else falls back to the highest-level unlocked seed,
// tie-broken by seed id descending.
func selectSeed(config *gameconfig.Store, strategy Strategy, preferredSeedID, currentLevel int) (seedID int, ok bool) {
	if strategy == StrategyPreferred && preferredSeedID > 0 {
		if p, found := config.PlantBySeedID(preferredSeedID); found && p.Level <= currentLevel {
			return p.SeedID, true
		}
	}

	if key, isRanked := analyticsSortKey(strategy); isRanked {
		for _, entry := range domain.Rank(config, key) {
			if entry.Level <= currentLevel {
				return entry.SeedID, true
			}
		}
		return 0, false
	}

	return highestLevelSeed(config, currentLevel)
}

func analyticsSortKey(strategy Strategy) (key string, ok bool) {
	switch strategy {
	case StrategyMaxExp:
		return "exp", true
	case StrategyMaxFertExp:
		return "fert_exp", true
	case StrategyMaxProfit:
		return "profit", true
	case StrategyMaxFertProfit:
		return "fert_profit", true
	default:
		return "", false
	}
}

func highestLevelSeed(config *gameconfig.Store, currentLevel int) (seedID int, ok bool) {
	best, found := gameconfig.Plant{}, false
	for _, p := range config.AllPlants() {
		if p.Level > currentLevel {
			continue
		}
		if !found {
			best, found = p, true
			continue
		}
		if p.Level > best.Level || (p.Level == best.Level && p.SeedID > best.SeedID) {
			best = p
		}
	}
	return best.SeedID, found
}
