package runtime

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/farmrunner/engine/internal/gameconfig"
)

func testGameConfig(t *testing.T) *gameconfig.Store {
	t.Helper()
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "gameConfig")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	writeFixture(t, filepath.Join(cfgDir, "RoleLevel.json"), `[
		{"level":1,"exp":0},
		{"level":2,"exp":100},
		{"level":3,"exp":300}
	]`)
	// plantId/seedId deliberately fall in the "102"-prefixed, 20000-29999
	// windows domain.Rank's eligiblePlants filter restricts analytics to.
	writeFixture(t, filepath.Join(cfgDir, "Plant.json"), `[
		{"plantId":1020001,"seedId":20001,"fruitId":20101,"name":"Wheat","level":1,"price":10,"growSeconds":60,"seasons":1,"expPerHarvest":5,"goldPerFruit":2,"fruitCount":4},
		{"plantId":1020002,"seedId":20002,"fruitId":20102,"name":"Corn","level":2,"price":20,"growSeconds":120,"seasons":1,"expPerHarvest":12,"goldPerFruit":3,"fruitCount":4},
		{"plantId":1020003,"seedId":20003,"fruitId":20103,"name":"Melon","level":3,"price":50,"growSeconds":300,"seasons":1,"expPerHarvest":30,"goldPerFruit":8,"fruitCount":4}
	]`)
	writeFixture(t, filepath.Join(cfgDir, "ItemInfo.json"), `[
		{"itemId":1002,"name":"Coupon"}
	]`)

	store, err := gameconfig.Load(dir)
	if err != nil {
		t.Fatalf("gameconfig.Load: %v", err)
	}
	return store
}

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", path, err)
	}
}

func TestSelectSeedPreferredStrategyHonorsLevelGate(t *testing.T) {
	cfg := testGameConfig(t)

	// Preferred seed 20003 (Melon) needs level 3; a level-1 account cannot
	// use it yet, so selectSeed must fall through to the highest unlocked
	// seed.
	seedID, ok := selectSeed(cfg, StrategyPreferred, 20003, 1)
	if !ok {
		t.Fatal("expected a fallback seed to be selected")
	}
	if seedID != 20001 {
		t.Errorf("seedID = %d, want 20001 (only Wheat is unlocked at level 1)", seedID)
	}

	// At level 3 the preferred seed is unlocked and used directly.
	seedID, ok = selectSeed(cfg, StrategyPreferred, 20003, 3)
	if !ok || seedID != 20003 {
		t.Errorf("selectSeed(preferred, unlocked) = (%d,%v), want (20003,true)", seedID, ok)
	}
}

func TestSelectSeedLevelStrategyPicksHighestUnlocked(t *testing.T) {
	cfg := testGameConfig(t)

	seedID, ok := selectSeed(cfg, StrategyLevel, 0, 2)
	if !ok {
		t.Fatal("expected a seed to be selected")
	}
	if seedID != 20002 {
		t.Errorf("seedID = %d, want 20002 (Corn, highest unlocked at level 2)", seedID)
	}
}

func TestSelectSeedNoUnlockedSeedReturnsFalse(t *testing.T) {
	cfg := testGameConfig(t)
	_, ok := selectSeed(cfg, StrategyLevel, 0, 0)
	if ok {
		t.Fatal("no plant is unlocked at level 0, selectSeed should report not-ok")
	}
}

func TestSelectSeedMaxProfitStrategyRespectsLevelGate(t *testing.T) {
	cfg := testGameConfig(t)

	// Melon (seed 20003) has the best profit per hour among these fixtures
	// but needs level 3; a level-2 account must fall through the ranking to
	// the next entry it can actually plant.
	seedID, ok := selectSeed(cfg, StrategyMaxProfit, 0, 2)
	if !ok {
		t.Fatal("expected a ranked seed to be selected")
	}
	if seedID == 20003 {
		t.Error("selectSeed chose a seed above the account's level")
	}
}
