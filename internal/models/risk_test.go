package models

import (
	"math"
	"testing"
	"time"
)

// TestRiskLevelForScore verifies the score-to-band mapping, including the
// inclusive lower bounds at 0.3, 0.6, and 0.8.
func TestRiskLevelForScore(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  RiskLevel
	}{
		{"zero", 0.0, RiskLow},
		{"low mid", 0.10, RiskLow},
		{"just below moderate", 0.29999, RiskLow},
		{"moderate boundary", 0.3, RiskModerate},
		{"moderate mid", 0.40, RiskModerate},
		{"just below high", 0.59999, RiskModerate},
		{"high boundary", 0.6, RiskHigh},
		{"high mid", 0.75, RiskHigh},
		{"just below extreme", 0.79999, RiskHigh},
		{"extreme boundary", 0.8, RiskExtreme},
		{"extreme mid", 0.95, RiskExtreme},
		{"max", 1.0, RiskExtreme},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RiskLevelForScore(tt.score); got != tt.want {
				t.Errorf("RiskLevelForScore(%v) = %v, want %v", tt.score, got, tt.want)
			}
		})
	}
}

// TestCacheKey_Deterministic verifies that identical queries always derive
// the same cache key.
func TestCacheKey_Deterministic(t *testing.T) {
	q := RiskQuery{Latitude: 34.05, Longitude: -118.24, Temperature: 38.5, Humidity: 12.0, WindSpeed: 25.0}
	if q.CacheKey() != q.CacheKey() {
		t.Fatalf("CacheKey() not deterministic: %q vs %q", q.CacheKey(), q.CacheKey())
	}
}

// TestCacheKey_Bucketing verifies that nearby weather observations share a
// key while materially different ones do not, and that wind direction and
// pressure never affect the key.
func TestCacheKey_Bucketing(t *testing.T) {
	base := RiskQuery{Latitude: 34.05, Longitude: -118.24, Temperature: 91, Humidity: 12, WindSpeed: 25}

	sameBucket := base
	sameBucket.Temperature = 93 // same 5-degree bucket as 91
	if base.CacheKey() != sameBucket.CacheKey() {
		t.Errorf("temperatures in the same bucket should share a key: %q vs %q", base.CacheKey(), sameBucket.CacheKey())
	}

	otherBucket := base
	otherBucket.Temperature = 96
	if base.CacheKey() == otherBucket.CacheKey() {
		t.Errorf("temperatures in different buckets should not share a key: %q", base.CacheKey())
	}

	otherLocation := base
	otherLocation.Latitude = 34.06
	if base.CacheKey() == otherLocation.CacheKey() {
		t.Errorf("different coordinates should not share a key: %q", base.CacheKey())
	}

	directionless := base
	directionless.WindDirection = 270
	directionless.Pressure = 990
	if base.CacheKey() != directionless.CacheKey() {
		t.Errorf("wind direction and pressure must not affect the key: %q vs %q", base.CacheKey(), directionless.CacheKey())
	}
}

// TestLocationKey verifies coordinate rounding to 4 decimal places.
func TestLocationKey(t *testing.T) {
	q := RiskQuery{Latitude: 34.052235, Longitude: -118.243683}
	if got, want := q.LocationKey(), "34.0522,-118.2437"; got != want {
		t.Errorf("LocationKey() = %q, want %q", got, want)
	}
}

// TestWithDefaults verifies that omitted optional fields get documented
// defaults and provided values are untouched.
func TestWithDefaults(t *testing.T) {
	q := RiskQuery{Latitude: 1, Longitude: 2}.WithDefaults()
	if q.Pressure != DefaultPressure {
		t.Errorf("Pressure = %v, want %v", q.Pressure, DefaultPressure)
	}
	if q.WindDirection != DefaultWindDirection {
		t.Errorf("WindDirection = %v, want %v", q.WindDirection, DefaultWindDirection)
	}

	explicit := RiskQuery{Latitude: 1, Longitude: 2, Pressure: 995, WindDirection: 180}.WithDefaults()
	if explicit.Pressure != 995 || explicit.WindDirection != 180 {
		t.Errorf("WithDefaults() overwrote explicit values: %+v", explicit)
	}
}

// TestRiskAssessment_Valid verifies the corruption invariants: score in
// [0,1] and level consistent with the score.
func TestRiskAssessment_Valid(t *testing.T) {
	tests := []struct {
		name string
		a    RiskAssessment
		want bool
	}{
		{"consistent high", RiskAssessment{RiskScore: 0.75, RiskLevel: RiskHigh, Timestamp: time.Now()}, true},
		{"consistent low", RiskAssessment{RiskScore: 0.0, RiskLevel: RiskLow}, true},
		{"score above one", RiskAssessment{RiskScore: 1.5, RiskLevel: RiskExtreme}, false},
		{"negative score", RiskAssessment{RiskScore: -0.1, RiskLevel: RiskLow}, false},
		{"NaN score", RiskAssessment{RiskScore: math.NaN(), RiskLevel: RiskLow}, false},
		{"level mismatch", RiskAssessment{RiskScore: 0.9, RiskLevel: RiskLow}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v for %+v", got, tt.want, tt.a)
			}
		})
	}
}
