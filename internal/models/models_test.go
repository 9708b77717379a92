package models

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("Failed to load catalog: %v", err)
	}

	if got := c.Name(44); got != "Nuller Ambush" {
		t.Errorf("Expected name Nuller Ambush, got %s", got)
	}
	if got := c.Option(41); got != "Neon Dock — slip past scanners" {
		t.Errorf("Unexpected option label %q", got)
	}
	if got := c.Name(7); got != "Scene 7" {
		t.Errorf("Expected fallback name, got %s", got)
	}
	if got := c.Option(7); got != "Unknown path #7" {
		t.Errorf("Expected fallback option, got %s", got)
	}

	opts := c.Options([]uint64{42, 99})
	if len(opts) != 2 || opts[0] != "Back-alley Relay — side door" || opts[1] != "Unknown path #99" {
		t.Errorf("Unexpected options %v", opts)
	}
}

func TestCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenes.yaml")
	doc := "title: Test\nscenes:\n  1: {name: Gate, option: Through the gate}\n"
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("Failed to load catalog: %v", err)
	}
	if c.Title != "Test" || c.Name(1) != "Gate" || c.Option(1) != "Through the gate" {
		t.Errorf("Unexpected catalog %+v", c)
	}
	if c.Name(41) != "Scene 41" {
		t.Errorf("File catalog should replace the built-in one")
	}
}

func TestCatalogMissingFile(t *testing.T) {
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Expected error for missing catalog file")
	}
}

func TestSnapshotFreshness(t *testing.T) {
	a := common.HexToAddress("0x01")
	b := common.HexToAddress("0x02")

	var empty InventorySnapshot
	if empty.FreshFor(a) {
		t.Error("Empty snapshot must not be fresh")
	}

	s := InventorySnapshot{Owner: a, TokenIDs: []*big.Int{big.NewInt(1)}}
	if !s.FreshFor(a) {
		t.Error("Snapshot should be fresh for its owner")
	}
	if s.FreshFor(b) {
		t.Error("Snapshot must be stale for a different address")
	}
}

func TestPlayerRecordYAML(t *testing.T) {
	p := PlayerRecord{SceneID: 41, Started: true, Score: 12}
	data, err := yaml.Marshal(p)
	if err != nil {
		t.Fatalf("Failed to marshal player: %v", err)
	}
	var p2 PlayerRecord
	if err := yaml.Unmarshal(data, &p2); err != nil {
		t.Fatalf("Failed to unmarshal player: %v", err)
	}
	if p2.SceneID != 41 || !p2.InRun() {
		t.Errorf("Unexpected round trip %+v", p2)
	}
}
