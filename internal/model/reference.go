package model

// PriceReference is one historical unit price from a past estimate or
// invoice. References are immutable once the KB is built.
type PriceReference struct {
	ItemID        string           `json:"item_id"`
	Description   string           `json:"description"`
	Discipline    Discipline       `json:"discipline"`
	Unit          string           `json:"unit"`
	UnitPrice     float64          `json:"unit_price"`
	Features      ReferenceFeature `json:"features"`
	SourceProject string           `json:"source_project,omitempty"`
	ContextTags   []string         `json:"context_tags,omitempty"`
	Vendor        string           `json:"vendor,omitempty"`
	ValidFrom     string           `json:"valid_from,omitempty"` // YYYY-MM-DD
	ValidTo       string           `json:"valid_to,omitempty"`
}

// ReferenceFeature holds the attributes a reference was priced against.
type ReferenceFeature struct {
	Specification string   `json:"specification,omitempty"`
	Quantity      *float64 `json:"quantity,omitempty"`
	Location      string   `json:"location,omitempty"`
}

// HasTag reports whether the reference carries the given context tag.
func (r *PriceReference) HasTag(tag string) bool {
	for _, t := range r.ContextTags {
		if t == tag {
			return true
		}
	}
	return false
}
