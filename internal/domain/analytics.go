package domain

import (
	"sort"
	"strconv"
	"strings"

	"github.com/farmrunner/engine/internal/gameconfig"
)

// AnalyticsEntry is one ranked plant: hourly exp/gold/profit both at the
// plant's natural grow time and at its fertilized (shortened) grow time.
type AnalyticsEntry struct {
	PlantID  int
	SeedID   int
	Name     string
	Level    int
	Price    int

	ExpPerHour    float64
	GoldPerHour   float64
	ProfitPerHour float64

	FertExpPerHour    float64
	FertGoldPerHour   float64
	FertProfitPerHour float64
}

// seedIDRangeMin/Max bound the seedId window analytics considers, and
// plantIDPrefix is the plant-id family analytics is restricted to — both
// match the game's own crop-economy plants (as opposed to decorative or
// event items that also live in Plant.json).
const (
	seedIDRangeMin = 20000
	seedIDRangeMax = 30000
	plantIDPrefix  = "102"
)

// eligiblePlants filters the catalogue down to the plants analytics ranks.
func eligiblePlants(config *gameconfig.Store) []gameconfig.Plant {
	var out []gameconfig.Plant
	for _, p := range config.AllPlants() {
		if !strings.HasPrefix(strconv.Itoa(p.PlantID), plantIDPrefix) {
			continue
		}
		if p.SeedID < seedIDRangeMin || p.SeedID >= seedIDRangeMax {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Rank computes the full analytics table, pure and offline — it never calls
// the gateway. sortKey selects the field sorted descending; unrecognized
// keys default to "profit".
func Rank(config *gameconfig.Store, sortKey string) []AnalyticsEntry {
	plants := eligiblePlants(config)
	entries := make([]AnalyticsEntry, 0, len(plants))

	for _, p := range plants {
		entries = append(entries, computeEntry(p))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return sortValue(entries[i], sortKey) > sortValue(entries[j], sortKey)
	})
	return entries
}

func computeEntry(p gameconfig.Plant) AnalyticsEntry {
	growSeconds := float64(p.GrowSeconds)
	fruitCount := float64(p.FruitCount)
	exp := float64(p.ExpPerHarvest)

	// Seasons=2 plants take 1.5x as long to grow but yield double fruit
	// and double exp per harvest.
	if p.Seasons == 2 {
		growSeconds *= 1.5
		fruitCount *= 2
		exp *= 2
	}

	gold := fruitCount * float64(p.GoldPerFruit)
	profit := gold - float64(p.Price)

	fertGrowSeconds := growSeconds
	if len(p.PhaseSeconds) > 0 {
		// The normal-fertilizer variant shortens total grow time by
		// skipping the first grow phase.
		fertGrowSeconds -= float64(p.PhaseSeconds[0])
	}
	if fertGrowSeconds <= 0 {
		fertGrowSeconds = growSeconds
	}

	hours := growSeconds / 3600
	fertHours := fertGrowSeconds / 3600

	entry := AnalyticsEntry{
		PlantID: p.PlantID,
		SeedID:  p.SeedID,
		Name:    p.Name,
		Level:   p.Level,
		Price:   p.Price,
	}
	if hours > 0 {
		entry.ExpPerHour = exp / hours
		entry.GoldPerHour = gold / hours
		entry.ProfitPerHour = profit / hours
	}
	if fertHours > 0 {
		entry.FertExpPerHour = exp / fertHours
		entry.FertGoldPerHour = gold / fertHours
		entry.FertProfitPerHour = profit / fertHours
	}
	return entry
}

func sortValue(e AnalyticsEntry, key string) float64 {
	switch key {
	case "exp":
		return e.ExpPerHour
	case "fert_exp":
		return e.FertExpPerHour
	case "gold":
		return e.GoldPerHour
	case "fert_gold":
		return e.FertGoldPerHour
	case "fert_profit":
		return e.FertProfitPerHour
	default: // "profit" and anything unrecognized
		return e.ProfitPerHour
	}
}
