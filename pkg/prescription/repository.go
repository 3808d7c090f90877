package prescription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mediconnect/platform/pkg/common/apperr"
	"github.com/mediconnect/platform/pkg/common/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type prescriptionModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConsultationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	CareToBeTaken  string    `gorm:"type:text;not null"`
	Medicines      string    `gorm:"type:text;not null"`
	PDFURL         *string   `gorm:"column:pdf_url"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (prescriptionModel) TableName() string {
	return "prescriptions"
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&prescriptionModel{})
}

// Transaction runs fn against a repository bound to a single database
// transaction. Returning an error rolls everything back.
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

type UpsertInput struct {
	ConsultationID uuid.UUID
	CareToBeTaken  string
	Medicines      string
	Now            time.Time
}

// Upsert creates the prescription for a consultation or replaces its text,
// keeping the original id.
func (r *Repository) Upsert(ctx context.Context, input UpsertInput) (models.Prescription, error) {
	row := prescriptionModel{
		ID:             uuid.New(),
		ConsultationID: input.ConsultationID,
		CareToBeTaken:  input.CareToBeTaken,
		Medicines:      input.Medicines,
		CreatedAt:      input.Now,
		UpdatedAt:      input.Now,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "consultation_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"care_to_be_taken", "medicines", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return models.Prescription{}, err
	}

	return r.GetByConsultation(ctx, input.ConsultationID)
}

func (r *Repository) GetByConsultation(ctx context.Context, consultationID uuid.UUID) (models.Prescription, error) {
	var row prescriptionModel
	err := r.db.WithContext(ctx).Where("consultation_id = ?", consultationID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Prescription{}, fmt.Errorf("prescription for consultation %s: %w", consultationID, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Prescription{}, err
	}
	return mapPrescriptionModel(row), nil
}

func (r *Repository) SetPDFURL(ctx context.Context, id uuid.UUID, url string, now time.Time) error {
	result := r.db.WithContext(ctx).Model(&prescriptionModel{}).Where("id = ?", id).Updates(map[string]interface{}{
		"pdf_url":    url,
		"updated_at": now,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("prescription %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func mapPrescriptionModel(row prescriptionModel) models.Prescription {
	return models.Prescription{
		ID:             row.ID,
		ConsultationID: row.ConsultationID,
		CareToBeTaken:  row.CareToBeTaken,
		Medicines:      row.Medicines,
		PDFURL:         row.PDFURL,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}
