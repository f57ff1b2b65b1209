package suitability

import "github.com/sells-group/landuse-cli/internal/config"

// FloodRisk computes the flood-risk proxy from elevation (m), total
// precipitation (mm) and surface-water occurrence (%). Absent inputs are
// omitted from the weighted average rather than read as zero; with no inputs
// the result is nil. Consumers such as Scorer later read nil as 0.
func (s *Scorer) FloodRisk(elevationM, precipMM, occurrencePct *float64) *float64 {
	return floodRisk(s.cfg.Flood, elevationM, precipMM, occurrencePct)
}

// FloodRisk computes the flood-risk proxy with the default configuration.
func FloodRisk(elevationM, precipMM, occurrencePct *float64) *float64 {
	return floodRisk(DefaultConfig().Flood, elevationM, precipMM, occurrencePct)
}

func floodRisk(cfg config.FloodConfig, elevationM, precipMM, occurrencePct *float64) *float64 {
	var sum, weights float64
	var terms int

	// Lower ground floods more readily.
	if elevationM != nil {
		sum += float64(Clamp01(1-*elevationM/cfg.ElevationCeilingM) * cfg.ElevationWeight)
		weights += cfg.ElevationWeight
		terms++
	}
	if precipMM != nil {
		sum += float64(Clamp01(*precipMM/cfg.PrecipCeilingMM) * cfg.PrecipWeight)
		weights += cfg.PrecipWeight
		terms++
	}
	if occurrencePct != nil {
		sum += float64(Clamp01(*occurrencePct/cfg.OccurrenceCeilingPct) * cfg.OccurrenceWeight)
		weights += cfg.OccurrenceWeight
		terms++
	}

	if terms == 0 {
		return nil
	}
	score := sum / weights
	return &score
}
