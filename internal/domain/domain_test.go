package domain

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/farmrunner/engine/internal/gameconfig"
)

func TestPhaseNormalizedBeginTime(t *testing.T) {
	ms := Phase{RawBegin: 1_700_000_000_000}
	if got := ms.NormalizedBeginTime(); got.UnixMilli() != 1_700_000_000_000 {
		t.Fatalf("millisecond phase decoded wrong: %v", got)
	}

	sec := Phase{RawBegin: 1_700_000_000}
	if got := sec.NormalizedBeginTime(); got.Unix() != 1_700_000_000 {
		t.Fatalf("second phase decoded wrong: %v", got)
	}
}

func TestCurrentPhasePicksGreatestBeginNotAfterNow(t *testing.T) {
	now := time.Unix(1_700_000_300, 0)
	p := PlantOnLand{
		Phases: []Phase{
			{Name: "seed", RawBegin: 1_700_000_000},
			{Name: "sprout", RawBegin: 1_700_000_200},
			{Name: "bloom", RawBegin: 1_700_000_400}, // after now, excluded
		},
	}

	got, ok := p.CurrentPhase(now)
	if !ok {
		t.Fatal("expected a current phase")
	}
	if got.Name != "sprout" {
		t.Fatalf("got phase %q, want sprout", got.Name)
	}
}

func TestCurrentPhaseNoneQualifies(t *testing.T) {
	now := time.Unix(100, 0)
	p := PlantOnLand{Phases: []Phase{{Name: "future", RawBegin: 200}}}
	if _, ok := p.CurrentPhase(now); ok {
		t.Fatal("expected no current phase when all begin times are in the future")
	}
}

// fakeCaller records every Call invocation and replays canned responses
// keyed by method, failing a configured subset of them.
type fakeCaller struct {
	responses map[string][]byte
	failFor   map[string]bool
	calls     []string
}

func (f *fakeCaller) Call(ctx context.Context, service, method string, body []byte, timeout time.Duration) ([]byte, error) {
	f.calls = append(f.calls, method)
	if f.failFor[method] {
		return nil, errPretendRemote
	}
	if resp, ok := f.responses[method]; ok {
		return resp, nil
	}
	return []byte(`{}`), nil
}

var errPretendRemote = &fakeRemoteErr{}

type fakeRemoteErr struct{}

func (e *fakeRemoteErr) Error() string { return "pretend remote failure" }

func TestWarehouseSellFallsBackToPerItemOnBatchFailure(t *testing.T) {
	caller := &fakeCaller{
		responses: map[string][]byte{},
		failFor:   map[string]bool{},
	}
	// Sell is called multiple times: first for the batch (fails), then once
	// per item (succeeds each time). fakeCaller can't distinguish by args,
	// so a countingFailFirstCaller wrapper counts the calls instead.
	callCount := 0
	caller.responses["Sell"] = mustMarshal(t, sellReply{Gained: []BagItem{{ItemID: 1, Count: 10}}})

	wrapped := &countingFailFirstCaller{inner: caller, failFirstN: 1, counter: &callCount}
	w := NewWarehouseService(wrapped, nil)

	items := []BagItem{{ItemID: 100, Count: 1}, {ItemID: 101, Count: 1}}
	gold, sold, err := w.Sell(context.Background(), 1, items)
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if sold != 2 {
		t.Fatalf("got sold=%d, want 2 (batch failed, both items sold individually)", sold)
	}
	if gold != 20 {
		t.Fatalf("got gold=%d, want 20", gold)
	}
}

// countingFailFirstCaller fails the first N calls to "Sell" and succeeds
// thereafter, simulating "batch rejected, per-item retry succeeds".
type countingFailFirstCaller struct {
	inner      *fakeCaller
	failFirstN int
	counter    *int
}

func (c *countingFailFirstCaller) Call(ctx context.Context, service, method string, body []byte, timeout time.Duration) ([]byte, error) {
	if method == "Sell" {
		*c.counter++
		if *c.counter <= c.failFirstN {
			return nil, errPretendRemote
		}
	}
	return c.inner.Call(ctx, service, method, body, timeout)
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestAnalyticsRankOrdersDescendingByProfit(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "gameConfig")
	os.MkdirAll(cfgDir, 0o755)

	plants := []gameconfig.Plant{
		{PlantID: 1020001, SeedID: 20001, Name: "Low", Level: 1, Price: 10, GrowSeconds: 3600, FruitCount: 1, GoldPerFruit: 20},
		{PlantID: 1020002, SeedID: 20002, Name: "High", Level: 2, Price: 10, GrowSeconds: 3600, FruitCount: 5, GoldPerFruit: 20},
		{PlantID: 2020003, SeedID: 20003, Name: "WrongPrefix", Level: 1, Price: 10, GrowSeconds: 3600, FruitCount: 100, GoldPerFruit: 100},
	}
	writeJSONFile(t, filepath.Join(cfgDir, "Plant.json"), plants)
	writeJSONFile(t, filepath.Join(cfgDir, "RoleLevel.json"), []struct {
		Level int `json:"level"`
		Exp   int `json:"exp"`
	}{})
	writeJSONFile(t, filepath.Join(cfgDir, "ItemInfo.json"), []struct {
		ItemID int    `json:"itemId"`
		Name   string `json:"name"`
	}{})

	store, err := gameconfig.Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	entries := Rank(store, "profit")
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 (wrong-prefix plant excluded)", len(entries))
	}
	if entries[0].Name != "High" {
		t.Fatalf("got top entry %q, want High", entries[0].Name)
	}
}

func writeJSONFile(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}
