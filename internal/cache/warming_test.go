package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/emberalert/risk-service/internal/models"
)

type mockAssessor struct {
	mu      sync.Mutex
	keys    []string
	failKey string
}

func (m *mockAssessor) Assess(ctx context.Context, query models.RiskQuery) (models.RiskAssessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := query.LocationKey()
	m.keys = append(m.keys, key)
	if key == m.failKey {
		return models.RiskAssessment{}, errors.New("predictor down")
	}
	return testAssessment(0.2), nil
}

// TestWarmer_Warm verifies every location is assessed and a nil error on
// full success.
func TestWarmer_Warm(t *testing.T) {
	assessor := &mockAssessor{}
	w := NewWarmer(assessor, zap.NewNop())

	queries := []models.RiskQuery{
		{Latitude: 34.05, Longitude: -118.25, Temperature: 75, Humidity: 50, WindSpeed: 10},
		{Latitude: 37.77, Longitude: -122.42, Temperature: 75, Humidity: 50, WindSpeed: 10},
	}
	if err := w.Warm(context.Background(), queries); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if len(assessor.keys) != 2 {
		t.Errorf("assessed %d locations, want 2", len(assessor.keys))
	}
}

// TestWarmer_PartialFailure verifies that one failing location surfaces an
// aggregated error without stopping the others.
func TestWarmer_PartialFailure(t *testing.T) {
	assessor := &mockAssessor{failKey: "34.0500,-118.2500"}
	w := NewWarmer(assessor, zap.NewNop())

	queries := []models.RiskQuery{
		{Latitude: 34.05, Longitude: -118.25},
		{Latitude: 37.77, Longitude: -122.42},
	}
	if err := w.Warm(context.Background(), queries); err == nil {
		t.Fatal("Warm: want aggregated error for failed location")
	}
	if len(assessor.keys) != 2 {
		t.Errorf("assessed %d locations despite one failure, want 2", len(assessor.keys))
	}
}

// TestWarmer_Empty verifies no-op behavior on an empty location list.
func TestWarmer_Empty(t *testing.T) {
	w := NewWarmer(&mockAssessor{}, nil)
	if err := w.Warm(context.Background(), nil); err != nil {
		t.Errorf("Warm(nil) = %v, want nil", err)
	}
}
