package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mediconnect/platform/pkg/common/logger"
	"github.com/mediconnect/platform/pkg/common/models"
	"github.com/mediconnect/platform/pkg/dlp"
	"github.com/mediconnect/platform/pkg/observability/metrics"
	"github.com/sirupsen/logrus"
)

type Service struct {
	repo     *Repository
	redactor *dlp.Redactor
}

// NewService stores events through repo. Payloads are masked with redactor
// before they are written; a nil redactor stores them as received.
func NewService(repo *Repository, redactor *dlp.Redactor) *Service {
	return &Service{repo: repo, redactor: redactor}
}

// HandleEvent is a kafka.EventHandler that appends domain events to the
// audit trail.
func (s *Service) HandleEvent(ctx context.Context, event models.Event) error {
	entry, err := toAuditLog(event)
	if err == nil {
		entry.Payload = s.redactor.Sanitize(entry.Payload)
	}
	if err != nil {
		// Unparseable events are dropped so they do not block the partition.
		metrics.ObserveAuditEvent(event.Type, err)
		logger.Log.WithError(err).WithField("event_id", event.ID).Warn("Skipping malformed audit event")
		return nil
	}

	inserted, err := s.repo.Append(ctx, entry)
	metrics.ObserveAuditEvent(event.Type, err)
	if err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"entity_id":  entry.EntityID,
		"duplicate":  !inserted,
	}).Debug("Audit event recorded")
	return nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]models.AuditLog, error) {
	return s.repo.List(ctx, filter)
}

func toAuditLog(event models.Event) (models.AuditLog, error) {
	if event.ID == "" || event.Type == "" {
		return models.AuditLog{}, fmt.Errorf("event missing id or type")
	}

	entry := models.AuditLog{
		EventID:   event.ID,
		Action:    event.Type,
		Entity:    stringField(event.Data, "entity"),
		EntityID:  stringField(event.Data, "entityId"),
		Role:      models.Role(stringField(event.Data, "role")),
		Payload:   event.Data,
		CreatedAt: event.Timestamp.UTC(),
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if raw := stringField(event.Data, "actorId"); raw != "" {
		actorID, err := uuid.Parse(raw)
		if err != nil {
			return models.AuditLog{}, fmt.Errorf("invalid actorId %q: %w", raw, err)
		}
		entry.ActorID = &actorID
	}
	return entry, nil
}

func stringField(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
