package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mediconnect/platform/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type auditLogModel struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey"`
	EventID   string            `gorm:"column:event_id;not null;uniqueIndex"`
	ActorID   *uuid.UUID        `gorm:"column:actor_id;type:uuid;index"`
	Role      string            `gorm:"column:role"`
	Action    string            `gorm:"column:action;not null"`
	Entity    string            `gorm:"column:entity"`
	EntityID  string            `gorm:"column:entity_id;index"`
	Payload   datatypes.JSONMap `gorm:"column:payload"`
	CreatedAt time.Time         `gorm:"column:created_at;index"`
}

func (auditLogModel) TableName() string { return "audit_logs" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&auditLogModel{})
}

// Append stores an entry once per event id; redelivered events are ignored.
func (r *Repository) Append(ctx context.Context, entry models.AuditLog) (bool, error) {
	row := auditLogModel{
		ID:        uuid.New(),
		EventID:   entry.EventID,
		ActorID:   entry.ActorID,
		Role:      string(entry.Role),
		Action:    entry.Action,
		Entity:    entry.Entity,
		EntityID:  entry.EntityID,
		Payload:   datatypes.JSONMap(entry.Payload),
		CreatedAt: entry.CreatedAt,
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(&row)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

type ListFilter struct {
	EntityID string
	ActorID  *uuid.UUID
	Limit    int
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.AuditLog, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}

	query := r.db.WithContext(ctx).Model(&auditLogModel{})
	if filter.EntityID != "" {
		query = query.Where("entity_id = ?", filter.EntityID)
	}
	if filter.ActorID != nil {
		query = query.Where("actor_id = ?", *filter.ActorID)
	}

	var rows []auditLogModel
	if err := query.Order("created_at DESC").Limit(filter.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]models.AuditLog, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.AuditLog{
			ID:        row.ID,
			EventID:   row.EventID,
			ActorID:   row.ActorID,
			Role:      models.Role(row.Role),
			Action:    row.Action,
			Entity:    row.Entity,
			EntityID:  row.EntityID,
			Payload:   map[string]interface{}(row.Payload),
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}
