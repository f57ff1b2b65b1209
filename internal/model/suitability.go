package model

// BestUse is the categorical land-use recommendation.
type BestUse string

const (
	BestUseGreenspace  BestUse = "greenspace"
	BestUseResidential BestUse = "residential"
	BestUseIndustrial  BestUse = "industrial"
)

// Valid reports whether b is one of the three known labels.
func (b BestUse) Valid() bool {
	switch b {
	case BestUseGreenspace, BestUseResidential, BestUseIndustrial:
		return true
	}
	return false
}

// Suitability holds the composite scores for an AOI. Each score is in [0, 1].
type Suitability struct {
	GreenspacePriority     float64 `json:"greenspace_priority" yaml:"greenspace_priority"`
	IndustrialSuitability  float64 `json:"industrial_suitability" yaml:"industrial_suitability"`
	ResidentialSuitability float64 `json:"residential_suitability" yaml:"residential_suitability"`
	BestUse                BestUse `json:"best_use" yaml:"best_use"`
}
