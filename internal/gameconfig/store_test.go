package gameconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeCatalogue(t *testing.T, dir string) string {
	t.Helper()
	cfgDir := filepath.Join(dir, "gameConfig")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}

	levels := []levelEntry{{Level: 1, Exp: 0}, {Level: 2, Exp: 100}}
	plants := []Plant{{PlantID: 1020001, SeedID: 20001, FruitID: 1, Name: "Wheat", Level: 1, Price: 10, GrowSeconds: 3600}}
	items := []Item{{ItemID: 1, Name: "Gold"}}

	writeJSON(t, filepath.Join(cfgDir, "RoleLevel.json"), levels)
	writeJSON(t, filepath.Join(cfgDir, "Plant.json"), plants)
	writeJSON(t, filepath.Join(cfgDir, "ItemInfo.json"), items)

	return dir
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadCanonicalDir(t *testing.T) {
	dir := t.TempDir()
	writeCatalogue(t, dir)

	store, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := store.ExpForLevel(2); got != 100 {
		t.Fatalf("ExpForLevel(2) = %d, want 100", got)
	}
	if p, ok := store.PlantBySeedID(20001); !ok || p.Name != "Wheat" {
		t.Fatalf("PlantBySeedID(20001) = %+v, ok=%v", p, ok)
	}
	if it := store.Item(999); it.Name == "" {
		t.Fatal("Item on miss should synthesize a name, got empty")
	}
}

func TestLoadSiblingPrefixedDir(t *testing.T) {
	root := t.TempDir()
	sibling := filepath.Join(root, "QFarmData")
	writeCatalogue(t, sibling)

	store, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := store.PlantBySeedID(20001); !ok {
		t.Fatal("expected seed 20001 to be indexed from sibling dir")
	}
}

func TestLoadMissingDirReturnsError(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for missing gameConfig dir")
	}
}

func TestItemMissReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	writeCatalogue(t, dir)
	store, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	it := store.Item(424242)
	if it.ItemID != 424242 {
		t.Fatalf("got itemID %d, want 424242", it.ItemID)
	}
}
