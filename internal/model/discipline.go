package model

import "strings"

// Discipline is a trade category for construction work (工事区分).
type Discipline string

const (
	DisciplineElectrical     Discipline = "電気"
	DisciplineMechanical     Discipline = "機械"
	DisciplineHVAC           Discipline = "空調"
	DisciplinePlumbing       Discipline = "衛生"
	DisciplineGas            Discipline = "ガス"
	DisciplineFireProtection Discipline = "消防"
	DisciplineConstruction   Discipline = "建築"
)

// AllDisciplines lists every discipline in display order.
var AllDisciplines = []Discipline{
	DisciplineElectrical,
	DisciplineMechanical,
	DisciplineHVAC,
	DisciplinePlumbing,
	DisciplineGas,
	DisciplineFireProtection,
	DisciplineConstruction,
}

var disciplineAliases = map[string]Discipline{
	"electrical":      DisciplineElectrical,
	"mechanical":      DisciplineMechanical,
	"hvac":            DisciplineHVAC,
	"plumbing":        DisciplinePlumbing,
	"gas":             DisciplineGas,
	"fire_protection": DisciplineFireProtection,
	"fire-protection": DisciplineFireProtection,
	"fire":            DisciplineFireProtection,
	"construction":    DisciplineConstruction,
}

// ParseDiscipline accepts the Japanese value (ガス), the work name (ガス設備工事)
// or an English alias (gas). The zero Discipline and false are returned for
// anything else.
func ParseDiscipline(s string) (Discipline, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, d := range AllDisciplines {
		if s == string(d) || s == d.WorkName() {
			return d, true
		}
	}
	if d, ok := disciplineAliases[strings.ToLower(s)]; ok {
		return d, true
	}
	if s == "都市ガス設備工事" {
		return DisciplineGas, true
	}
	return "", false
}

// Valid reports whether d is one of the known disciplines.
func (d Discipline) Valid() bool {
	for _, known := range AllDisciplines {
		if d == known {
			return true
		}
	}
	return false
}

// WorkName returns the heading used for the discipline on quotations and in
// the validator's range tables, e.g. "ガス設備工事".
func (d Discipline) WorkName() string {
	switch d {
	case "":
		return ""
	case DisciplineConstruction:
		return "建築工事"
	}
	return string(d) + "設備工事"
}

// FacilityType is the building use category (施設区分).
type FacilityType string

const (
	FacilitySchool     FacilityType = "学校"
	FacilityOffice     FacilityType = "オフィス"
	FacilityHospital   FacilityType = "病院"
	FacilityFactory    FacilityType = "工場"
	FacilityCommercial FacilityType = "商業施設"
	FacilityOther      FacilityType = "その他"
)
