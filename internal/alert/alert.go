// Package alert carries extreme-risk notifications out of the assessment
// path. The orchestrator emits an event whenever a freshly computed or
// cached assessment comes back EXTREME; delivery is a collaborator concern
// and must never block or fail the response.
package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/emberalert/risk-service/internal/models"
	"github.com/emberalert/risk-service/internal/observability"
)

// Event describes one extreme-risk detection.
type Event struct {
	ID        string           `json:"id"`
	Key       string           `json:"key"`
	Score     float64          `json:"score"`
	Level     models.RiskLevel `json:"level"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewEvent builds an Event for the given key and score, stamped now.
func NewEvent(key string, score float64, level models.RiskLevel) Event {
	return Event{
		ID:        uuid.New().String(),
		Key:       key,
		Score:     score,
		Level:     level,
		Timestamp: time.Now().UTC(),
	}
}

// Notifier delivers extreme-risk events to an external collaborator
// (pager, message bus, etc.). Implementations must not block the caller.
type Notifier interface {
	ExtremeRisk(ctx context.Context, ev Event)
}

// LogNotifier emits alert events as structured log lines. The default
// notifier when no external channel is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// ExtremeRisk implements Notifier.
func (n *LogNotifier) ExtremeRisk(ctx context.Context, ev Event) {
	observability.ExtremeAlertsTotal.Inc()
	if n.logger != nil {
		n.logger.Warn("extreme risk detected",
			zap.String("alert_id", ev.ID),
			zap.String("key", ev.Key),
			zap.Float64("score", ev.Score),
			zap.Time("detected_at", ev.Timestamp))
	}
}
