package model

// BuildingInfo is what the spec document says about the facility.
type BuildingInfo struct {
	ProjectName    string       `json:"project_name"`
	ClientName     string       `json:"client_name,omitempty"`
	Location       string       `json:"location,omitempty"`
	ContractPeriod string       `json:"contract_period,omitempty"`
	FloorArea      float64      `json:"total_floor_area"`
	Floors         int          `json:"floors"`
	BuildingType   FacilityType `json:"building_type"`
	NumRooms       int          `json:"num_rooms"`
	Structure      string       `json:"structure,omitempty"`
	IsTemporary    bool         `json:"is_temporary"`

	FacilityRequirements   string   `json:"facility_requirements,omitempty"`
	ConstructionConditions []string `json:"construction_conditions,omitempty"`
}

// Merge fills zero-valued fields of b from other. Values already present in
// b win.
func (b *BuildingInfo) Merge(other *BuildingInfo) {
	if other == nil {
		return
	}
	if b.ProjectName == "" {
		b.ProjectName = other.ProjectName
	}
	if b.ClientName == "" {
		b.ClientName = other.ClientName
	}
	if b.Location == "" {
		b.Location = other.Location
	}
	if b.ContractPeriod == "" {
		b.ContractPeriod = other.ContractPeriod
	}
	if b.FloorArea <= 0 {
		b.FloorArea = other.FloorArea
	}
	if b.Floors <= 0 {
		b.Floors = other.Floors
	}
	if b.BuildingType == "" {
		b.BuildingType = other.BuildingType
	}
	if b.NumRooms <= 0 {
		b.NumRooms = other.NumRooms
	}
	if b.Structure == "" {
		b.Structure = other.Structure
	}
	b.IsTemporary = b.IsTemporary || other.IsTemporary
	if b.FacilityRequirements == "" {
		b.FacilityRequirements = other.FacilityRequirements
	}
	if len(b.ConstructionConditions) == 0 {
		b.ConstructionConditions = other.ConstructionConditions
	}
}
