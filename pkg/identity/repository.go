package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

type doctorModel struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name              string    `gorm:"not null"`
	Email             string    `gorm:"not null;uniqueIndex"`
	Phone             string    `gorm:"not null;uniqueIndex"`
	Specialty         string    `gorm:"not null"`
	YearsOfExperience int       `gorm:"not null;default:0"`
	PasswordHash      string    `gorm:"not null"`
	ProfilePic        *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (doctorModel) TableName() string {
	return "doctors"
}

type patientModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name             string    `gorm:"not null"`
	Age              int       `gorm:"not null"`
	Email            string    `gorm:"not null;uniqueIndex"`
	Phone            string    `gorm:"not null;uniqueIndex"`
	PasswordHash     string    `gorm:"not null"`
	ProfilePic       *string
	HistoryOfSurgery *string
	HistoryOfIllness *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (patientModel) TableName() string {
	return "patients"
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&doctorModel{}, &patientModel{})
}

// Credentials is the minimal row needed to verify a login.
type Credentials struct {
	ID           uuid.UUID
	Name         string
	PasswordHash string
}

type CreateDoctorInput struct {
	Name              string
	Email             string
	Phone             string
	Specialty         string
	YearsOfExperience int
	PasswordHash      string
	ProfilePic        *string
}

func (r *Repository) CreateDoctor(ctx context.Context, input CreateDoctorInput) (models.Doctor, error) {
	now := time.Now().UTC()
	doctor := doctorModel{
		ID:                uuid.New(),
		Name:              input.Name,
		Email:             normalizeEmail(input.Email),
		Phone:             strings.TrimSpace(input.Phone),
		Specialty:         input.Specialty,
		YearsOfExperience: input.YearsOfExperience,
		PasswordHash:      input.PasswordHash,
		ProfilePic:        input.ProfilePic,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := r.db.WithContext(ctx).Create(&doctor).Error; err != nil {
		return models.Doctor{}, translateCreateError(err)
	}
	return mapDoctorModel(doctor), nil
}

type CreatePatientInput struct {
	Name             string
	Age              int
	Email            string
	Phone            string
	PasswordHash     string
	ProfilePic       *string
	HistoryOfSurgery *string
	HistoryOfIllness *string
}

func (r *Repository) CreatePatient(ctx context.Context, input CreatePatientInput) (models.Patient, error) {
	now := time.Now().UTC()
	patient := patientModel{
		ID:               uuid.New(),
		Name:             input.Name,
		Age:              input.Age,
		Email:            normalizeEmail(input.Email),
		Phone:            strings.TrimSpace(input.Phone),
		PasswordHash:     input.PasswordHash,
		ProfilePic:       input.ProfilePic,
		HistoryOfSurgery: input.HistoryOfSurgery,
		HistoryOfIllness: input.HistoryOfIllness,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := r.db.WithContext(ctx).Create(&patient).Error; err != nil {
		return models.Patient{}, translateCreateError(err)
	}
	return mapPatientModel(patient), nil
}

// IdentityTaken reports whether an actor of the given kind already uses the
// email or the phone number.
func (r *Repository) IdentityTaken(ctx context.Context, role models.Role, email, phone string) (bool, error) {
	model, err := modelFor(role)
	if err != nil {
		return false, err
	}

	var count int64
	err = r.db.WithContext(ctx).Model(model).
		Where("email = ? OR phone = ?", normalizeEmail(email), strings.TrimSpace(phone)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) GetCredentials(ctx context.Context, role models.Role, email string) (Credentials, error) {
	model, err := modelFor(role)
	if err != nil {
		return Credentials{}, err
	}

	var creds Credentials
	result := r.db.WithContext(ctx).Model(model).
		Select("id", "name", "password_hash").
		Where("email = ?", normalizeEmail(email)).
		Limit(1).
		Scan(&creds)
	if result.Error != nil {
		return Credentials{}, result.Error
	}
	if result.RowsAffected == 0 {
		return Credentials{}, fmt.Errorf("%s account: %w", strings.ToLower(string(role)), apperr.ErrNotFound)
	}
	return creds, nil
}

func (r *Repository) GetDoctorByID(ctx context.Context, id uuid.UUID) (models.Doctor, error) {
	var doctor doctorModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doctor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Doctor{}, fmt.Errorf("doctor: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return models.Doctor{}, err
	}
	return mapDoctorModel(doctor), nil
}

func (r *Repository) GetPatientByID(ctx context.Context, id uuid.UUID) (models.Patient, error) {
	var patient patientModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&patient).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Patient{}, fmt.Errorf("patient: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return models.Patient{}, err
	}
	return mapPatientModel(patient), nil
}

func (r *Repository) DoctorExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&doctorModel{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *Repository) ListDoctors(ctx context.Context) ([]models.DoctorSummary, error) {
	var rows []doctorModel
	err := r.db.WithContext(ctx).
		Select("id", "name", "specialty", "profile_pic", "years_of_experience").
		Order("name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.DoctorSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.DoctorSummary{
			ID:                row.ID,
			Name:              row.Name,
			Specialty:         row.Specialty,
			ProfilePic:        row.ProfilePic,
			YearsOfExperience: row.YearsOfExperience,
		})
	}
	return out, nil
}

func modelFor(role models.Role) (interface{}, error) {
	switch role {
	case models.RoleDoctor:
		return &doctorModel{}, nil
	case models.RolePatient:
		return &patientModel{}, nil
	default:
		return nil, fmt.Errorf("unsupported role %q", role)
	}
}

func translateCreateError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.ErrDuplicateIdentity
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func mapDoctorModel(doctor doctorModel) models.Doctor {
	return models.Doctor{
		ID:                doctor.ID,
		Name:              doctor.Name,
		Email:             doctor.Email,
		Phone:             doctor.Phone,
		Specialty:         doctor.Specialty,
		YearsOfExperience: doctor.YearsOfExperience,
		ProfilePic:        doctor.ProfilePic,
		CreatedAt:         doctor.CreatedAt,
		UpdatedAt:         doctor.UpdatedAt,
	}
}

func mapPatientModel(patient patientModel) models.Patient {
	return models.Patient{
		ID:               patient.ID,
		Name:             patient.Name,
		Age:              patient.Age,
		Email:            patient.Email,
		Phone:            patient.Phone,
		ProfilePic:       patient.ProfilePic,
		HistoryOfSurgery: patient.HistoryOfSurgery,
		HistoryOfIllness: patient.HistoryOfIllness,
		CreatedAt:        patient.CreatedAt,
		UpdatedAt:        patient.UpdatedAt,
	}
}
