package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/bidquote/internal/calc"
	"github.com/sells-group/bidquote/internal/config"
	"github.com/sells-group/bidquote/internal/model"
)

// setTestConfig installs a config pointing at temp files and restores the
// previous one when the test ends.
func setTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	prev := cfg
	t.Cleanup(func() { cfg = prev })

	cfg = &config.Config{
		KB:    config.KBConfig{Path: writeTestKB(t, dir)},
		Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(dir, "bidquote.db")},
		Match: config.DefaultMatch(),
		Estimate: config.EstimateConfig{
			WelfareRate:      calc.DefaultWelfareRate,
			DefaultFloorArea: 2000,
			BuildingType:     "学校",
		},
		Server: config.ServerConfig{Port: 8080, CORSOrigins: []string{"*"}},
	}
	return cfg
}

func writeTestKB(t *testing.T, dir string) string {
	t.Helper()
	refs := []model.PriceReference{
		{ItemID: "GAS_002", Description: "白ガス管（ネジ接合）", Discipline: model.DisciplineGas,
			Unit: "m", UnitPrice: 8990, Features: model.ReferenceFeature{Specification: "15A"}},
		{ItemID: "ELEC_001", Description: "分電盤", Discipline: model.DisciplineElectrical,
			Unit: "面", UnitPrice: 250000},
	}
	path := filepath.Join(dir, "price_kb.json")
	data, err := json.Marshal(refs)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

const gasItemsJSON = `{
  "floor_area": 200,
  "building_type": "学校",
  "items": [
    {"item_no": "1", "level": 0, "name": "ガス設備工事", "unit": "式", "cost_type": "一式", "discipline": "ガス"},
    {"level": 1, "name": "配管工事費", "unit": "式", "cost_type": "労務費", "discipline": "ガス"},
    {"level": 2, "name": "白ガス管（ネジ接合）", "specification": "15A", "quantity": 93, "unit": "m", "cost_type": "材料費", "discipline": "ガス"}
  ]
}`

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
