package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leozw/mantenapp/internal/core"
)

// Store is the slice of alert storage the processor needs.
//
// CreateAlert must return false, nil when the insert was skipped because an
// active alert of the same type already exists for the client.
type Store interface {
	HasActiveAlert(ctx context.Context, clientID string, alertType core.AlertType) (bool, error)
	CreateAlert(ctx context.Context, alert *core.Alert) (bool, error)
}

type Recorder interface {
	RecordAlertCreated(alert *core.Alert)
	RecordAlertSuppressed(alertType core.AlertType)
}

type ProcessResult struct {
	Created    []*core.Alert
	Suppressed int
	Failed     int
}

type Processor struct {
	store    Store
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

func NewProcessor(store Store, recorder Recorder, logger *zap.Logger) *Processor {
	return &Processor{
		store:    store,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// Process persists each draft independently. Drafts whose type already has an
// active alert for the client are dropped without touching the existing alert.
// A failure on one draft is logged and does not stop the others.
func (p *Processor) Process(ctx context.Context, clientID string, drafts []core.AlertDraft) ProcessResult {
	var result ProcessResult

	for _, draft := range drafts {
		active, err := p.store.HasActiveAlert(ctx, clientID, draft.Type)
		if err != nil {
			result.Failed++
			p.logger.Error("Failed to check active alerts",
				zap.String("client_id", clientID),
				zap.String("alert_type", string(draft.Type)),
				zap.Error(err),
			)
			continue
		}
		if active {
			p.suppressed(&result, clientID, draft)
			continue
		}

		alert := core.NewAlert(p.newID(), clientID, draft, p.now())
		inserted, err := p.store.CreateAlert(ctx, alert)
		if err != nil {
			result.Failed++
			p.logger.Error("Failed to create alert",
				zap.String("client_id", clientID),
				zap.String("alert_type", string(draft.Type)),
				zap.Error(err),
			)
			continue
		}
		if !inserted {
			// Lost the race against a concurrent ingestion for the same site.
			p.suppressed(&result, clientID, draft)
			continue
		}

		result.Created = append(result.Created, alert)
		if p.recorder != nil {
			p.recorder.RecordAlertCreated(alert)
		}
		p.logger.Info("Created alert",
			zap.String("alert_id", alert.ID),
			zap.String("client_id", clientID),
			zap.String("alert_type", string(alert.Type)),
			zap.String("severity", string(alert.Severity)),
		)
	}

	return result
}

func (p *Processor) suppressed(result *ProcessResult, clientID string, draft core.AlertDraft) {
	result.Suppressed++
	if p.recorder != nil {
		p.recorder.RecordAlertSuppressed(draft.Type)
	}
	p.logger.Debug("Alert suppressed, active alert of same type exists",
		zap.String("client_id", clientID),
		zap.String("alert_type", string(draft.Type)),
	)
}
