package runtime

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/farmrunner/engine/internal/domain"
	"github.com/farmrunner/engine/internal/gameconfig"
)

// fakeCaller is an in-memory stand-in for the gateway session, dispatching
// by (service, method) the way the real session does, so the domain
// services under test run through their real encode/decode logic instead of
// being mocked out directly.
type fakeCaller struct {
	mu sync.Mutex

	bag []domain.BagItem

	lands []domain.Land

	buyCalls    []buyCall
	plantCalls  []plantCall
	removeCalls []int
	sellCalls   int

	friendList          []domain.FriendSummary
	friendLands         map[int64][]domain.Land
	checkCanOperateCalls int
	checkAllowance      map[domain.FriendOpKind]int
	operateCalls        []operateCall
}

type buyCall struct {
	seedID, count int
}

type plantCall struct {
	landID, seedID int
}

type operateCall struct {
	targetGID int64
	kind      domain.FriendOpKind
	lands     []int
}

func (f *fakeCaller) Call(ctx context.Context, service, method string, body []byte, timeout time.Duration) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case service == "FarmService" && method == "Lands":
		return json.Marshal(domain.LandsResult{Lands: f.lands})

	case service == "FarmService" && method == "Plant":
		var req struct {
			LandID int `json:"landId"`
			SeedID int `json:"seedId"`
		}
		json.Unmarshal(body, &req)
		f.plantCalls = append(f.plantCalls, plantCall{landID: req.LandID, seedID: req.SeedID})
		return []byte(`{}`), nil

	case service == "FarmService" && method == "Harvest":
		return []byte(`{}`), nil

	case service == "FarmService" && method == "RemovePlant":
		var req struct {
			LandID int `json:"landId"`
		}
		json.Unmarshal(body, &req)
		f.removeCalls = append(f.removeCalls, req.LandID)
		return []byte(`{}`), nil

	case service == "WarehouseService" && method == "Bag":
		return json.Marshal(f.bag)

	case service == "WarehouseService" && method == "BuySeed":
		var req struct {
			SeedID int `json:"seedId"`
			Count  int `json:"count"`
		}
		json.Unmarshal(body, &req)
		f.buyCalls = append(f.buyCalls, buyCall{seedID: req.SeedID, count: req.Count})
		for i, item := range f.bag {
			if item.ItemID == req.SeedID {
				f.bag[i].Count += req.Count
				return []byte(`{}`), nil
			}
		}
		f.bag = append(f.bag, domain.BagItem{ItemID: req.SeedID, Count: req.Count})
		return []byte(`{}`), nil

	case service == "WarehouseService" && method == "Sell":
		var req struct {
			Items []domain.BagItem `json:"items"`
		}
		json.Unmarshal(body, &req)
		f.sellCalls++
		gained := 0
		for _, item := range req.Items {
			gained += item.Count
		}
		return json.Marshal(struct {
			Gained []domain.BagItem `json:"gained"`
		}{Gained: []domain.BagItem{{ItemID: 1, Count: gained}}})

	case service == "FriendService" && method == "List":
		return json.Marshal(f.friendList)

	case service == "FriendService" && method == "Lands":
		var req struct {
			TargetGID int64 `json:"targetGid"`
		}
		json.Unmarshal(body, &req)
		return json.Marshal(f.friendLands[req.TargetGID])

	case service == "FriendService" && method == "CheckCanOperate":
		var req struct {
			Kind domain.FriendOpKind `json:"kind"`
		}
		json.Unmarshal(body, &req)
		f.checkCanOperateCalls++
		return json.Marshal(struct {
			OK        bool `json:"ok"`
			Allowance int  `json:"allowance"`
		}{OK: true, Allowance: f.checkAllowance[req.Kind]})

	case service == "FriendService" && method == "Operate":
		var req struct {
			TargetGID     int64               `json:"targetGid"`
			Kind          domain.FriendOpKind `json:"kind"`
			TargetLandIDs []int               `json:"targetLandIds,omitempty"`
		}
		json.Unmarshal(body, &req)
		f.operateCalls = append(f.operateCalls, operateCall{targetGID: req.TargetGID, kind: req.Kind, lands: req.TargetLandIDs})
		return json.Marshal(struct {
			Count int `json:"count"`
		}{Count: len(req.TargetLandIDs)})

	default:
		return []byte(`{}`), nil
	}
}

// testFarmGameConfig returns a catalogue with one cheap, level-1 plant
// (seed 30001, price 100, fruit 30101) so scenario fixtures can be expressed
// directly in terms of the spec's own numbers.
func testFarmGameConfig(t *testing.T) *gameconfig.Store {
	t.Helper()
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "gameConfig")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFixture(t, filepath.Join(cfgDir, "RoleLevel.json"), `[{"level":1,"exp":0}]`)
	writeFixture(t, filepath.Join(cfgDir, "Plant.json"), `[
		{"plantId":130001,"seedId":30001,"fruitId":30101,"name":"Carrot","level":1,"price":100,"growSeconds":60,"seasons":1,"expPerHarvest":5,"goldPerFruit":2,"fruitCount":1}
	]`)
	writeFixture(t, filepath.Join(cfgDir, "ItemInfo.json"), `[{"itemId":1002,"name":"Coupon"}]`)

	store, err := gameconfig.Load(dir)
	if err != nil {
		t.Fatalf("gameconfig.Load: %v", err)
	}
	return store
}

func newScenarioRuntime(t *testing.T, caller *fakeCaller, cfg *gameconfig.Store, settings Settings, gold int) *Runtime {
	t.Helper()
	r := &Runtime{
		accountID: "acc-1",
		logger:    zap.NewNop(),
		deps:      Deps{Config: cfg},
		farm:      domain.NewFarmService(caller),
		friend:    domain.NewFriendService(caller),
		ware:      domain.NewWarehouseService(caller, cfg),
		settings:  settings,
		ops:       make(map[string]int64),
		quota:     newDailyQuotaTable(),
	}
	r.state = SessionState{GID: 1, Level: 1, Gold: gold, LoginReady: true}
	return r
}

func land(id int) domain.Land {
	return domain.Land{ID: id, Unlocked: true}
}

func landWithPlant(id int, phaseName string) domain.Land {
	return domain.Land{
		ID:       id,
		Unlocked: true,
		Plant: &domain.PlantOnLand{
			ID:     30001,
			Phases: []domain.Phase{{Name: phaseName, RawBegin: 1}},
		},
	}
}

// TestPlantWithInsufficientStockAndGold exercises spec.md §8 scenario 1: bag
// has the preferred seed x1, gold only covers one more purchase, and four
// empty lands are targeted. Auto-plant should buy exactly one unit, then
// plant only as many lands as stock allows (2 of the 4 targets).
func TestPlantWithInsufficientStockAndGold(t *testing.T) {
	cfg := testFarmGameConfig(t)
	caller := &fakeCaller{
		bag:   []domain.BagItem{{ItemID: 30001, Count: 1}},
		lands: []domain.Land{land(11), land(12), land(13), land(14)},
	}
	settings := DefaultSettings()
	settings.Strategy = StrategyPreferred
	settings.PreferredSeedID = 30001

	r := newScenarioRuntime(t, caller, cfg, settings, 199)

	r.doFarmOperation(context.Background(), farmModePlant)

	caller.mu.Lock()
	defer caller.mu.Unlock()

	if len(caller.buyCalls) != 1 || caller.buyCalls[0] != (buyCall{seedID: 30001, count: 1}) {
		t.Fatalf("buy calls = %+v, want exactly one buy(seed=30001, count=1)", caller.buyCalls)
	}
	if len(caller.plantCalls) != 2 {
		t.Fatalf("plant calls = %+v, want 2 (stock limited to 2 after the single buy)", caller.plantCalls)
	}
	for _, want := range []int{11, 12} {
		found := false
		for _, pc := range caller.plantCalls {
			if pc.landID == want {
				found = true
			}
		}
		if !found {
			t.Errorf("land %d was not planted, want it among the first two targets", want)
		}
	}
	if got := r.Operations()["plant"]; got != 2 {
		t.Errorf("operations.plant = %d, want 2", got)
	}
}

// TestHarvestThenPlantFlow exercises spec.md §8 scenario 2: two mature lands
// harvest, a dead land and the freshly-harvested lands all get cleared and
// re-queued for planting alongside one already-empty land, and a harvest
// having occurred triggers exactly one auto-sell pass.
func TestHarvestThenPlantFlow(t *testing.T) {
	cfg := testFarmGameConfig(t)
	caller := &fakeCaller{
		bag: []domain.BagItem{
			{ItemID: 30001, Count: 10},
			{ItemID: 30101, Count: 3}, // harvested fruit, sellable
		},
		lands: []domain.Land{
			landWithPlant(1, phaseNameMature),
			landWithPlant(2, phaseNameMature),
			landWithPlant(3, phaseNameDead),
			land(4),
		},
	}
	settings := DefaultSettings()
	settings.Strategy = StrategyPreferred
	settings.PreferredSeedID = 30001
	settings.Automation.Sell = true

	r := newScenarioRuntime(t, caller, cfg, settings, 0)

	r.doFarmOperation(context.Background(), farmModeAll)

	if got := r.Operations()["harvest"]; got != 2 {
		t.Errorf("operations.harvest = %d, want 2", got)
	}

	caller.mu.Lock()
	defer caller.mu.Unlock()

	wantRemoved := map[int]bool{3: true, 1: true, 2: true}
	if len(caller.removeCalls) != len(wantRemoved) {
		t.Fatalf("remove-plant calls = %+v, want one each for dead+harvested lands %v", caller.removeCalls, wantRemoved)
	}
	for _, id := range caller.removeCalls {
		if !wantRemoved[id] {
			t.Errorf("unexpected remove-plant call for land %d", id)
		}
	}

	plantedLands := map[int]bool{}
	for _, pc := range caller.plantCalls {
		plantedLands[pc.landID] = true
	}
	for _, want := range []int{1, 2, 3, 4} {
		if !plantedLands[want] {
			t.Errorf("land %d was not replanted, want dead+harvested+empty all re-queued", want)
		}
	}

	if caller.sellCalls != 1 {
		t.Errorf("sell calls = %d, want exactly 1 auto-sell pass", caller.sellCalls)
	}
}

// TestFriendCycleQuotaExhaustionBoundary exercises the quota-exhaustion
// boundary through the real friend-cycle orchestration: a kind already
// known exhausted skips the RPC entirely, so no friend is probed and no
// Operate is sent. The zero-allowance side is covered by the next test.
func TestFriendCycleQuotaExhaustionBoundary(t *testing.T) {
	cfg := testFarmGameConfig(t)
	caller := &fakeCaller{
		friendList: []domain.FriendSummary{
			{GID: 100, Name: "a"},
			{GID: 200, Name: "b"},
			{GID: 300, Name: "c"},
		},
		friendLands: map[int64][]domain.Land{
			100: {landWithPlant(1, phaseNameMature)},
			200: {{ID: 2, Unlocked: true, Plant: &domain.PlantOnLand{ID: 1, Stealable: true}}},
			300: {{ID: 3, Unlocked: true, Plant: &domain.PlantOnLand{ID: 1, Stealable: true}}},
		},
		checkAllowance: map[domain.FriendOpKind]int{domain.FriendOpSteal: 0},
	}
	// friendLands for gid 100 has no stealable land, so the targets list is
	// naturally empty for that friend. Steal's quota is marked exhausted
	// before the cycle, so even friends 200 and 300, which do have stealable
	// land, are never probed with CheckCanOperate.
	settings := DefaultSettings()
	settings.Automation.FriendSteal = true

	r := newScenarioRuntime(t, caller, cfg, settings, 0)
	r.quota.MarkExhausted(domain.FriendOpSteal)

	r.autoFriendCycle(context.Background())

	caller.mu.Lock()
	defer caller.mu.Unlock()

	if caller.checkCanOperateCalls != 0 {
		t.Errorf("CheckCanOperate calls = %d, want 0 (quota already known exhausted before the cycle ran)", caller.checkCanOperateCalls)
	}
	if len(caller.operateCalls) != 0 {
		t.Errorf("operate calls = %+v, want none (steal stayed exhausted all cycle)", caller.operateCalls)
	}
	if got := r.Operations()["steal"]; got != 0 {
		t.Errorf("operations.steal = %d, want 0", got)
	}
}

// TestFriendCycleMarksExhaustedOnZeroAllowanceThenSkipsLaterFriends verifies
// the boundary from the other side: a live CheckCanOperate reply of exactly
// zero allowance must both skip the Operate call for that friend and mark
// the kind exhausted so later friends in the same cycle never probe again.
func TestFriendCycleMarksExhaustedOnZeroAllowanceThenSkipsLaterFriends(t *testing.T) {
	cfg := testFarmGameConfig(t)
	caller := &fakeCaller{
		friendList: []domain.FriendSummary{
			{GID: 200, Name: "b"},
			{GID: 300, Name: "c"},
		},
		friendLands: map[int64][]domain.Land{
			200: {{ID: 2, Unlocked: true, Plant: &domain.PlantOnLand{ID: 1, Stealable: true}}},
			300: {{ID: 3, Unlocked: true, Plant: &domain.PlantOnLand{ID: 1, Stealable: true}}},
		},
		checkAllowance: map[domain.FriendOpKind]int{domain.FriendOpSteal: 0},
	}
	settings := DefaultSettings()
	settings.Automation.FriendSteal = true

	r := newScenarioRuntime(t, caller, cfg, settings, 0)

	r.autoFriendCycle(context.Background())

	caller.mu.Lock()
	defer caller.mu.Unlock()

	if caller.checkCanOperateCalls != 1 {
		t.Errorf("CheckCanOperate calls = %d, want exactly 1 (only the first friend probes; the zero reply exhausts steal for the rest of the cycle)", caller.checkCanOperateCalls)
	}
	if len(caller.operateCalls) != 0 {
		t.Errorf("operate calls = %+v, want none (allowance was zero for the only probed friend)", caller.operateCalls)
	}
	if !r.quota.Exhausted(domain.FriendOpSteal) {
		t.Error("steal should be marked exhausted after a zero-allowance reply")
	}
}
