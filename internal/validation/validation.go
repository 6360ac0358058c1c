package validation

import (
	"errors"
	"math"

	"github.com/emberalert/risk-service/internal/models"
)

// ErrLatitudeRange is returned when latitude is outside [-90, 90].
var ErrLatitudeRange = errors.New("latitude must be between -90 and 90")

// ErrLongitudeRange is returned when longitude is outside [-180, 180].
var ErrLongitudeRange = errors.New("longitude must be between -180 and 180")

// ErrHumidityRange is returned when humidity is outside [0, 100].
var ErrHumidityRange = errors.New("humidity must be between 0 and 100")

// ErrWindSpeedRange is returned when wind speed is negative.
var ErrWindSpeedRange = errors.New("wind speed must be >= 0")

// ErrWindDirectionRange is returned when wind direction is outside [0, 360].
var ErrWindDirectionRange = errors.New("wind direction must be between 0 and 360")

// ErrNotFinite is returned when any field is NaN or infinite.
var ErrNotFinite = errors.New("query fields must be finite numbers")

// ValidateQuery enforces the documented field ranges on a risk query.
// The HTTP boundary performs the same checks via struct tags; the
// orchestrator calls this defensively so an invalid query can never reach
// the cache or the predictor. Temperature and pressure are unbounded.
func ValidateQuery(q models.RiskQuery) error {
	for _, v := range []float64{q.Latitude, q.Longitude, q.Temperature, q.Humidity, q.WindSpeed, q.WindDirection, q.Pressure} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrNotFinite
		}
	}
	if q.Latitude < -90 || q.Latitude > 90 {
		return ErrLatitudeRange
	}
	if q.Longitude < -180 || q.Longitude > 180 {
		return ErrLongitudeRange
	}
	if q.Humidity < 0 || q.Humidity > 100 {
		return ErrHumidityRange
	}
	if q.WindSpeed < 0 {
		return ErrWindSpeedRange
	}
	if q.WindDirection < 0 || q.WindDirection > 360 {
		return ErrWindDirectionRange
	}
	return nil
}
