package consultation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mediconnect/platform/pkg/common/apperr"
	"github.com/mediconnect/platform/pkg/common/models"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type consultationModel struct {
	ID                    uuid.UUID `gorm:"type:uuid;primaryKey"`
	PatientID             uuid.UUID `gorm:"type:uuid;not null;index:idx_consultations_patient_created,priority:1"`
	DoctorID              uuid.UUID `gorm:"type:uuid;not null;index:idx_consultations_doctor_created,priority:1"`
	CurrentIllnessHistory string    `gorm:"not null"`
	RecentSurgery         *string
	IsDiabetic            bool `gorm:"not null;default:false"`
	Allergies             *string
	Others                *string
	TransactionID         string    `gorm:"not null"`
	CreatedAt             time.Time `gorm:"index:idx_consultations_patient_created,priority:2;index:idx_consultations_doctor_created,priority:2"`
}

func (consultationModel) TableName() string {
	return "consultations"
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&consultationModel{})
}

type CreateInput struct {
	PatientID             uuid.UUID
	DoctorID              uuid.UUID
	CurrentIllnessHistory string
	RecentSurgery         *string
	IsDiabetic            bool
	Allergies             *string
	Others                *string
	TransactionID         string
	CreatedAt             time.Time
}

func (r *Repository) Create(ctx context.Context, input CreateInput) (models.Consultation, error) {
	row := consultationModel{
		ID:                    uuid.New(),
		PatientID:             input.PatientID,
		DoctorID:              input.DoctorID,
		CurrentIllnessHistory: input.CurrentIllnessHistory,
		RecentSurgery:         input.RecentSurgery,
		IsDiabetic:            input.IsDiabetic,
		Allergies:             input.Allergies,
		Others:                input.Others,
		TransactionID:         input.TransactionID,
		CreatedAt:             input.CreatedAt,
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.Consultation{}, err
	}
	return mapConsultationModel(row), nil
}

// GetParties loads the consultation together with the doctor and patient
// names used on a prescription.
func (r *Repository) GetParties(ctx context.Context, id uuid.UUID) (models.ConsultationParties, error) {
	var row struct {
		ID              uuid.UUID
		DoctorID        uuid.UUID
		DoctorName      string
		DoctorSpecialty string
		PatientID       uuid.UUID
		PatientName     string
		PatientAge      int
	}

	result := r.db.WithContext(ctx).
		Table("consultations AS c").
		Select(`c.id, c.doctor_id, d.name AS doctor_name, d.specialty AS doctor_specialty,
			c.patient_id, p.name AS patient_name, p.age AS patient_age`).
		Joins("JOIN doctors d ON d.id = c.doctor_id").
		Joins("JOIN patients p ON p.id = c.patient_id").
		Where("c.id = ?", id).
		Limit(1).
		Scan(&row)
	if result.Error != nil {
		return models.ConsultationParties{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.ConsultationParties{}, fmt.Errorf("consultation %s: %w", id, apperr.ErrNotFound)
	}

	return models.ConsultationParties{
		ConsultationID:  row.ID,
		DoctorID:        row.DoctorID,
		DoctorName:      row.DoctorName,
		DoctorSpecialty: row.DoctorSpecialty,
		PatientID:       row.PatientID,
		PatientName:     row.PatientName,
		PatientAge:      row.PatientAge,
	}, nil
}

// listRow is one consultation joined with its counterpart and optional
// prescription.
type listRow struct {
	ID                    uuid.UUID
	PatientID             uuid.UUID
	DoctorID              uuid.UUID
	CurrentIllnessHistory string
	RecentSurgery         *string
	IsDiabetic            bool
	Allergies             *string
	Others                *string
	TransactionID         string
	CreatedAt             time.Time

	DoctorName      string
	DoctorSpecialty string

	PatientName             string
	PatientAge              int
	PatientEmail            string
	PatientPhone            string
	PatientHistoryOfSurgery *string
	PatientHistoryOfIllness *string

	PrescriptionID        *uuid.UUID
	PrescriptionCare      *string
	PrescriptionMedicines *string
	PrescriptionPDFURL    *string
	PrescriptionCreatedAt *time.Time
	PrescriptionUpdatedAt *time.Time
}

const listColumns = `c.id, c.patient_id, c.doctor_id, c.current_illness_history, c.recent_surgery,
	c.is_diabetic, c.allergies, c.others, c.transaction_id, c.created_at,
	d.name AS doctor_name, d.specialty AS doctor_specialty,
	p.name AS patient_name, p.age AS patient_age, p.email AS patient_email, p.phone AS patient_phone,
	p.history_of_surgery AS patient_history_of_surgery, p.history_of_illness AS patient_history_of_illness,
	rx.id AS prescription_id, rx.care_to_be_taken AS prescription_care, rx.medicines AS prescription_medicines,
	rx.pdf_url AS prescription_pdf_url, rx.created_at AS prescription_created_at,
	rx.updated_at AS prescription_updated_at`

func (r *Repository) list(ctx context.Context, column string, id uuid.UUID) ([]listRow, error) {
	var rows []listRow
	err := r.db.WithContext(ctx).
		Table("consultations AS c").
		Select(listColumns).
		Joins("JOIN doctors d ON d.id = c.doctor_id").
		Joins("JOIN patients p ON p.id = c.patient_id").
		Joins("LEFT JOIN prescriptions rx ON rx.consultation_id = c.id").
		Where("c."+column+" = ?", id).
		Order("c.created_at DESC").
		Order("c.id DESC").
		Scan(&rows).Error
	return rows, err
}

func (r *Repository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]models.PatientConsultation, error) {
	rows, err := r.list(ctx, "patient_id", patientID)
	if err != nil {
		return nil, err
	}

	out := make([]models.PatientConsultation, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.PatientConsultation{
			Consultation: row.consultation(),
			Doctor: models.ConsultationDoctor{
				Name:      row.DoctorName,
				Specialty: row.DoctorSpecialty,
			},
		})
	}
	return out, nil
}

func (r *Repository) ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]models.DoctorConsultation, error) {
	rows, err := r.list(ctx, "doctor_id", doctorID)
	if err != nil {
		return nil, err
	}

	out := make([]models.DoctorConsultation, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.DoctorConsultation{
			Consultation: row.consultation(),
			Patient: models.ConsultationPatient{
				Name:             row.PatientName,
				Age:              row.PatientAge,
				Email:            row.PatientEmail,
				Phone:            row.PatientPhone,
				HistoryOfSurgery: row.PatientHistoryOfSurgery,
				HistoryOfIllness: row.PatientHistoryOfIllness,
			},
		})
	}
	return out, nil
}

func (row listRow) consultation() models.Consultation {
	c := mapConsultationModel(consultationModel{
		ID:                    row.ID,
		PatientID:             row.PatientID,
		DoctorID:              row.DoctorID,
		CurrentIllnessHistory: row.CurrentIllnessHistory,
		RecentSurgery:         row.RecentSurgery,
		IsDiabetic:            row.IsDiabetic,
		Allergies:             row.Allergies,
		Others:                row.Others,
		TransactionID:         row.TransactionID,
		CreatedAt:             row.CreatedAt,
	})
	if row.PrescriptionID != nil && *row.PrescriptionID != uuid.Nil {
		rx := &models.Prescription{
			ID:             *row.PrescriptionID,
			ConsultationID: row.ID,
			PDFURL:         row.PrescriptionPDFURL,
		}
		if row.PrescriptionCare != nil {
			rx.CareToBeTaken = *row.PrescriptionCare
		}
		if row.PrescriptionMedicines != nil {
			rx.Medicines = *row.PrescriptionMedicines
		}
		if row.PrescriptionCreatedAt != nil {
			rx.CreatedAt = *row.PrescriptionCreatedAt
		}
		if row.PrescriptionUpdatedAt != nil {
			rx.UpdatedAt = *row.PrescriptionUpdatedAt
		}
		c.Prescription = rx
	}
	return c
}

func mapConsultationModel(row consultationModel) models.Consultation {
	return models.Consultation{
		ID:                    row.ID,
		PatientID:             row.PatientID,
		DoctorID:              row.DoctorID,
		CurrentIllnessHistory: row.CurrentIllnessHistory,
		RecentSurgery:         row.RecentSurgery,
		IsDiabetic:            row.IsDiabetic,
		Allergies:             row.Allergies,
		Others:                row.Others,
		TransactionID:         row.TransactionID,
		CreatedAt:             row.CreatedAt,
	}
}
