package validate

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/bidquote/internal/model"
)

// DefaultBuildingType keys the fallback table used for unknown building types.
const DefaultBuildingType = "default"

// Range is an expected construction cost per floor area, in yen per ㎡.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// fallbackRange applies when a discipline has no entry for the building type.
var fallbackRange = Range{Min: 1000, Max: 100000}

// RangeTable maps building type → discipline → expected ㎡ cost.
type RangeTable map[string]map[model.Discipline]Range

// DefaultRanges returns the built-in table.
func DefaultRanges() RangeTable {
	return RangeTable{
		string(model.FacilitySchool): {
			model.DisciplineElectrical:     {15000, 40000},
			model.DisciplineMechanical:     {20000, 50000},
			model.DisciplineGas:            {1000, 5000},
			model.DisciplineHVAC:           {10000, 30000},
			model.DisciplinePlumbing:       {5000, 15000},
			model.DisciplineFireProtection: {3000, 10000},
		},
		string(model.FacilityOffice): {
			model.DisciplineElectrical:     {20000, 50000},
			model.DisciplineMechanical:     {25000, 60000},
			model.DisciplineGas:            {500, 3000},
			model.DisciplineHVAC:           {15000, 40000},
			model.DisciplinePlumbing:       {5000, 15000},
			model.DisciplineFireProtection: {3000, 10000},
		},
		DefaultBuildingType: {
			model.DisciplineElectrical:     {15000, 50000},
			model.DisciplineMechanical:     {15000, 50000},
			model.DisciplineGas:            {1000, 10000},
			model.DisciplineHVAC:           {10000, 40000},
			model.DisciplinePlumbing:       {5000, 20000},
			model.DisciplineFireProtection: {3000, 15000},
		},
	}
}

// Lookup returns the range for a building type and discipline. Unknown
// building types use the default table; disciplines missing from the chosen
// table get a wide fallback range.
func (t RangeTable) Lookup(buildingType string, d model.Discipline) Range {
	table, ok := t[buildingType]
	if !ok {
		table = t[DefaultBuildingType]
	}
	if r, ok := table[d]; ok {
		return r
	}
	return fallbackRange
}

// LoadRanges reads a YAML range file and overlays it on the built-in table.
// Discipline keys may be the short value (ガス) or the work name (ガス設備工事).
//
//	学校:
//	  ガス: {min: 1000, max: 5000}
func LoadRanges(path string) (RangeTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "validate: read ranges %s", path)
	}

	var raw map[string]map[string]Range
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "validate: parse ranges")
	}

	table := DefaultRanges()
	for building, entries := range raw {
		if table[building] == nil {
			table[building] = make(map[model.Discipline]Range, len(entries))
		}
		for key, r := range entries {
			d, ok := model.ParseDiscipline(key)
			if !ok {
				return nil, eris.Errorf("validate: ranges %s: unknown discipline %q", building, key)
			}
			if r.Min < 0 || r.Max < r.Min {
				return nil, eris.Errorf("validate: ranges %s/%s: invalid range [%v, %v]", building, key, r.Min, r.Max)
			}
			table[building][d] = r
		}
	}
	return table, nil
}
