package types

// FusionType names which algorithm produced a FusionResult.
type FusionType string

const (
	FusionHumanState            FusionType = "human-state"
	FusionEnvironmental         FusionType = "environmental"
	FusionSituationalAwareness  FusionType = "situational-awareness"
)

// EnvironmentalRecommendation buckets a FusionResult's totalRisk.
type EnvironmentalRecommendation string

const (
	RecommendHighCaution     EnvironmentalRecommendation = "high-caution"
	RecommendModerateCaution EnvironmentalRecommendation = "moderate-caution"
	RecommendProceedNormal   EnvironmentalRecommendation = "proceed-normal"
)

// SAStatus buckets a situational-awareness FusionResult.
type SAStatus string

const (
	SAOverload     SAStatus = "overload"
	SAHighLoad     SAStatus = "high-load"
	SAModerateLoad SAStatus = "moderate-load"
	SALowLoad      SAStatus = "low-load"
)

// HumanStateResult is the FusionResult variant for fusion_type=human-state.
type HumanStateResult struct {
	CognitiveLoad float64
	Fatigue       float64
	Stress        float64
	OverallState  float64
	Sources       []string
}

// RiskFactor is one named contributor to environmental total risk.
type RiskFactor struct {
	Type    string
	Risk    float64
	Factors []string
}

// EnvironmentalResult is the FusionResult variant for fusion_type=environmental.
type EnvironmentalResult struct {
	TotalRisk      float64
	RiskFactors    []RiskFactor
	Recommendation EnvironmentalRecommendation
}

// SituationalAwarenessResult is the FusionResult variant for
// fusion_type=situational-awareness.
type SituationalAwarenessResult struct {
	Level           float64
	Demand          float64
	Capability      float64
	Ratio           float64
	Status          SAStatus
	Recommendations []string
}

// FusionResult is the tagged output of the Fusion Engine. Exactly one of
// the Human/Environmental/SA fields is populated, matching FusionType.
type FusionResult struct {
	FusionType  FusionType
	TimestampNs int64
	Confidence  float64

	Human *HumanStateResult
	Env   *EnvironmentalResult
	SA    *SituationalAwarenessResult
}
