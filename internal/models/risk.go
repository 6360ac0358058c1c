package models

import (
	"fmt"
	"math"
	"time"
)

// RiskLevel is the discretized risk band derived from a continuous risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskHigh     RiskLevel = "HIGH"
	RiskExtreme  RiskLevel = "EXTREME"
)

// Score thresholds separating risk bands. Lower bounds are inclusive:
// LOW < 0.3 <= MODERATE < 0.6 <= HIGH < 0.8 <= EXTREME.
const (
	ModerateThreshold = 0.3
	HighThreshold     = 0.6
	ExtremeThreshold  = 0.8
)

// RiskLevelForScore maps a risk score to its band. Deterministic; the only
// place the thresholds are applied.
func RiskLevelForScore(score float64) RiskLevel {
	switch {
	case score < ModerateThreshold:
		return RiskLow
	case score < HighThreshold:
		return RiskModerate
	case score < ExtremeThreshold:
		return RiskHigh
	default:
		return RiskExtreme
	}
}

// Default values applied when a query omits optional fields.
const (
	DefaultWindDirection = 0.0
	DefaultPressure      = 1013.0
)

// RiskQuery is a validated prediction request: coordinates plus current
// weather observations. Treated as immutable once constructed.
type RiskQuery struct {
	Latitude      float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude     float64 `json:"longitude" validate:"min=-180,max=180"`
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity" validate:"min=0,max=100"`
	WindSpeed     float64 `json:"windSpeed" validate:"min=0"`
	WindDirection float64 `json:"windDirection" validate:"min=0,max=360"`
	Pressure      float64 `json:"pressure"`
}

// WithDefaults returns a copy with zero-valued optional fields replaced by
// their documented defaults (windDirection=0 is already the default).
func (q RiskQuery) WithDefaults() RiskQuery {
	if q.Pressure == 0 {
		q.Pressure = DefaultPressure
	}
	return q
}

// CacheKey derives the cache key for this query. The key is a pure function
// of rounded coordinates plus coarse weather buckets: temperature to 5°F,
// humidity to 10%, wind speed to 5 mph. Two queries at the same point with
// similar conditions share an entry; materially different conditions miss
// and recompute. Wind direction and pressure are excluded, they do not move
// the verdict enough to justify fragmenting the key space.
func (q RiskQuery) CacheKey() string {
	return fmt.Sprintf("%s|t%d|h%d|w%d",
		q.LocationKey(),
		int(math.Floor(q.Temperature/5)),
		int(math.Floor(q.Humidity/10)),
		int(math.Floor(q.WindSpeed/5)),
	)
}

// LocationKey identifies the coordinate pair alone, rounded to 4 decimal
// places (~11m). Used to group history events for a location across
// changing weather conditions.
func (q RiskQuery) LocationKey() string {
	return fmt.Sprintf("%.4f,%.4f", q.Latitude, q.Longitude)
}

// RiskAssessment is the prediction result for a query.
type RiskAssessment struct {
	Latitude            float64            `json:"latitude"`
	Longitude           float64            `json:"longitude"`
	RiskScore           float64            `json:"riskScore"`
	RiskLevel           RiskLevel          `json:"riskLevel"`
	Timestamp           time.Time          `json:"timestamp"` // time of computation, not of cache read
	ModelVersion        string             `json:"modelVersion"`
	ContributingFactors map[string]float64 `json:"contributingFactors,omitempty"`
	FromCache           bool               `json:"fromCache"`
}

// Valid reports whether the assessment satisfies basic invariants. Entries
// failing this check are treated as corrupt by the cache and evicted.
func (a RiskAssessment) Valid() bool {
	if math.IsNaN(a.RiskScore) || a.RiskScore < 0 || a.RiskScore > 1 {
		return false
	}
	return a.RiskLevel == RiskLevelForScore(a.RiskScore)
}
