package fusionalgo

import "github.com/synopticon/telemetry-fusion/internal/types"

// EnvironmentalInputs names the latest EnrichedSample for each
// environmental source; a nil pointer means that source has no sample yet.
type EnvironmentalInputs struct {
	Weather *types.EnrichedSample
	Traffic *types.EnrichedSample
}

// riskFactorWeights: weather and traffic contribute equally to total risk
// by default — neither the spec nor the teacher's composite scoring
// singles one out, so an even split is the documented default.
const (
	weatherRiskWeight = 1.0
	trafficRiskWeight = 1.0
)

// Environmental computes the environmental FusionResult variant, spec.md
// §4.7: per-risk-factor score then totalRisk = Σ w_i·r_i / Σ w_i.
func Environmental(in EnvironmentalInputs) *types.EnvironmentalResult {
	var factors []types.RiskFactor
	sum, weight := 0.0, 0.0

	if in.Weather != nil {
		risk, issues := weatherRisk(in.Weather.Sample)
		factors = append(factors, types.RiskFactor{Type: "weather", Risk: risk, Factors: issues})
		sum += weatherRiskWeight * risk
		weight += weatherRiskWeight
	}
	if in.Traffic != nil {
		risk, issues := trafficRisk(in.Traffic.Sample)
		factors = append(factors, types.RiskFactor{Type: "traffic", Risk: risk, Factors: issues})
		sum += trafficRiskWeight * risk
		weight += trafficRiskWeight
	}

	totalRisk := 0.0
	if weight > 0 {
		totalRisk = clamp01(sum / weight)
	}

	return &types.EnvironmentalResult{
		TotalRisk:      totalRisk,
		RiskFactors:    factors,
		Recommendation: environmentalRecommendation(totalRisk),
	}
}

// EnvironmentalConfidence mirrors HumanStateConfidence: mean of present
// source qualities.
func EnvironmentalConfidence(in EnvironmentalInputs) float64 {
	sum, n := 0.0, 0
	for _, s := range []*types.EnrichedSample{in.Weather, in.Traffic} {
		if s != nil {
			sum += s.Quality.Quality
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func environmentalRecommendation(totalRisk float64) types.EnvironmentalRecommendation {
	switch {
	case totalRisk >= 0.7:
		return types.RecommendHighCaution
	case totalRisk >= 0.4:
		return types.RecommendModerateCaution
	default:
		return types.RecommendProceedNormal
	}
}

// weatherRisk blends wind speed and visibility into [0,1] as the mean of
// the two factors; calm, clear weather is zero risk, 60kt wind or
// sub-1000m visibility alone is 0.5, and both together are full risk.
func weatherRisk(s types.Sample) (float64, []string) {
	p := s.Payload.Weather
	if p == nil {
		return 0, nil
	}
	var issues []string
	windRisk := normalize(p.WindSpeed, 0, 60)
	if p.WindSpeed >= 30 {
		issues = append(issues, "high-wind")
	}
	visRisk := 1 - normalize(p.Visibility, 1000, 10000)
	if p.Visibility < 3000 {
		issues = append(issues, "low-visibility")
	}
	return clamp01((windRisk + visRisk) / 2), issues
}

// trafficRisk blends nearby traffic density and closest proximity.
func trafficRisk(s types.Sample) (float64, []string) {
	p := s.Payload.Traffic
	if p == nil {
		return 0, nil
	}
	var issues []string
	densityRisk := normalize(float64(p.NearbyCount), 0, 10)
	proximityRisk := 1 - normalize(p.ClosestNM, 0, 5)
	if p.ConflictAlert {
		issues = append(issues, "conflict-alert")
		proximityRisk = 1
	}
	return clamp01((densityRisk + proximityRisk) / 2), issues
}
