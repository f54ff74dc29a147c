// Package types holds the data model shared by every component of the
// telemetry fusion runtime: Sample, Quality, EnrichedSample, Series points
// and FusionResult. Keeping these in one leaf package avoids import cycles
// between quality, stream, sync and fusion.
package types

import "fmt"

// Source identifies the origin category of a Sample.
type Source string

const (
	SourceHuman     Source = "human"
	SourceSimulator Source = "simulator"
	SourceExternal  Source = "external"
)

// SampleType identifies the payload shape within a Source.
type SampleType string

const (
	TypePhysiological SampleType = "physiological"
	TypeBehavioral    SampleType = "behavioral"
	TypeSelfReport    SampleType = "self_report"
	TypePerformance   SampleType = "performance"
	TypeTelemetry     SampleType = "telemetry"
	TypeSystems       SampleType = "systems"
	TypeDynamics      SampleType = "dynamics"
	TypeEnvironment   SampleType = "environment"
	TypeWeather       SampleType = "weather"
	TypeTraffic       SampleType = "traffic"
	TypeNavigation    SampleType = "navigation"
	TypeCommunication SampleType = "communications"
)

// Key uniquely identifies a (source, type) pair — the latest-by-key unit
// used by Stream Node buffers and the Fusion Engine.
type Key struct {
	Source Source
	Type   SampleType
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Source, k.Type)
}

// Payload is a closed algebraic type: exactly one of the typed fields is
// populated per (source,type) pair. Opaque carries anything the runtime
// does not have a typed variant for — accepted only by the Quality
// Assessor and the Distributor, per spec.md §9.
type Payload struct {
	Physiological *PhysiologicalPayload
	Behavioral    *BehavioralPayload
	SelfReport    *SelfReportPayload
	Performance   *PerformancePayload
	Telemetry     *TelemetryPayload
	Systems       *SystemsPayload
	Dynamics      *DynamicsPayload
	Environment   *EnvironmentPayload
	Weather       *WeatherPayload
	Traffic       *TrafficPayload
	Navigation    *NavigationPayload
	Communication *CommunicationPayload
	Opaque        *OpaquePayload
}

// PhysiologicalPayload is human/physiological: heart-rate/HRV style signals.
type PhysiologicalPayload struct {
	HeartRate      float64
	HRV            float64
	SkinConductance float64
	RespirationRate float64
}

// BehavioralPayload is human/behavioral: gaze/attention/reaction signals.
type BehavioralPayload struct {
	GazeX, GazeY   float64
	FixationMs     float64
	BlinkRate      float64
	ReactionTimeMs float64
}

// SelfReportPayload is human/self_report: subjective workload ratings.
type SelfReportPayload struct {
	WorkloadRating float64 // NASA-TLX style, 0-100
	FatigueRating  float64
}

// PerformancePayload is human/performance: task-execution metrics.
type PerformancePayload struct {
	ErrorRate      float64
	TaskCompletion float64
	ControlInputHz float64
}

// TelemetryPayload is simulator/telemetry: canonical vehicle/flight state.
type TelemetryPayload struct {
	Position     [3]float64
	Velocity     [3]float64
	Acceleration [3]float64
	Rotation     [4]float64 // quaternion x,y,z,w
	HeadingDeg   float64
	Complexity   float64 // scene/traffic complexity estimate, used by C7 SA demand
}

// SystemsPayload is simulator/systems: aircraft/vehicle system states.
type SystemsPayload struct {
	EngineRPM float64
	FuelLevel float64
	GearState string
	Warnings  []string
}

// DynamicsPayload is simulator/dynamics: high-rate flight/vehicle dynamics.
type DynamicsPayload struct {
	Altitude  float64
	Airspeed  float64
	VertSpeed float64
	GForce    float64
}

// EnvironmentPayload is simulator/environment: in-sim weather/visibility.
type EnvironmentPayload struct {
	Visibility float64
	WindSpeed  float64
	Turbulence float64
}

// WeatherPayload is external/weather: wall-clock-sourced weather feed.
type WeatherPayload struct {
	Temperature float64
	WindSpeed   float64
	Visibility  float64
	Precip      float64
}

// TrafficPayload is external/traffic: nearby traffic density/conflicts.
type TrafficPayload struct {
	NearbyCount int
	ClosestNM   float64
	ConflictAlert bool
}

// NavigationPayload is external/navigation: nav aid / routing data.
type NavigationPayload struct {
	DistanceToWaypointNM float64
	CrossTrackErrorNM    float64
}

// CommunicationPayload is external/communications: ATC/comm channel load.
type CommunicationPayload struct {
	ChannelLoad float64
	ActiveCalls int
}

// OpaquePayload is the generic catch-all for unknown sources/types.
type OpaquePayload struct {
	Fields map[string]float64
}

// Sample is an immutable record of one timestamped observation.
type Sample struct {
	Key        Key
	TimestampNs int64 // monotonic or skew-corrected wall nanoseconds
	Payload    Payload
	IngestTimeNs int64
}

// Quality is the multi-dimensional confidence score attached to a Sample.
type Quality struct {
	Quality      float64
	Confidence   float64
	Staleness    float64
	Completeness float64
	Consistency  float64
	Plausibility float64
	Issues       []string
}

// EnrichedSample is a Sample plus its computed Quality.
type EnrichedSample struct {
	Sample    Sample
	Quality   Quality
	IngestedAtNs int64
}
