package validation

import (
	"errors"
	"math"
	"testing"

	"github.com/emberalert/risk-service/internal/models"
)

// TestValidateQuery verifies that each field range rejection maps to its
// sentinel error and that boundary values are accepted.
func TestValidateQuery(t *testing.T) {
	valid := models.RiskQuery{Latitude: 34.05, Longitude: -118.24, Temperature: 90, Humidity: 15, WindSpeed: 20, WindDirection: 180, Pressure: 1010}

	tests := []struct {
		name    string
		mutate  func(q *models.RiskQuery)
		wantErr error
	}{
		{"valid", func(q *models.RiskQuery) {}, nil},
		{"latitude north boundary", func(q *models.RiskQuery) { q.Latitude = 90 }, nil},
		{"latitude south boundary", func(q *models.RiskQuery) { q.Latitude = -90 }, nil},
		{"latitude too high", func(q *models.RiskQuery) { q.Latitude = 90.1 }, ErrLatitudeRange},
		{"latitude too low", func(q *models.RiskQuery) { q.Latitude = -90.1 }, ErrLatitudeRange},
		{"longitude boundary", func(q *models.RiskQuery) { q.Longitude = 180 }, nil},
		{"longitude too high", func(q *models.RiskQuery) { q.Longitude = 180.1 }, ErrLongitudeRange},
		{"longitude too low", func(q *models.RiskQuery) { q.Longitude = -180.1 }, ErrLongitudeRange},
		{"humidity boundary", func(q *models.RiskQuery) { q.Humidity = 100 }, nil},
		{"humidity too high", func(q *models.RiskQuery) { q.Humidity = 100.5 }, ErrHumidityRange},
		{"humidity negative", func(q *models.RiskQuery) { q.Humidity = -1 }, ErrHumidityRange},
		{"wind speed zero", func(q *models.RiskQuery) { q.WindSpeed = 0 }, nil},
		{"wind speed negative", func(q *models.RiskQuery) { q.WindSpeed = -0.5 }, ErrWindSpeedRange},
		{"wind direction boundary", func(q *models.RiskQuery) { q.WindDirection = 360 }, nil},
		{"wind direction too high", func(q *models.RiskQuery) { q.WindDirection = 361 }, ErrWindDirectionRange},
		{"temperature unbounded", func(q *models.RiskQuery) { q.Temperature = -200 }, nil},
		{"NaN latitude", func(q *models.RiskQuery) { q.Latitude = math.NaN() }, ErrNotFinite},
		{"infinite wind speed", func(q *models.RiskQuery) { q.WindSpeed = math.Inf(1) }, ErrNotFinite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := valid
			tt.mutate(&q)
			err := ValidateQuery(q)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateQuery() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateQuery() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
