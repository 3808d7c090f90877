package consultation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mediconnect/platform/pkg/common/apperr"
	"github.com/mediconnect/platform/pkg/common/kafka"
	"github.com/mediconnect/platform/pkg/common/logger"
	"github.com/mediconnect/platform/pkg/common/models"
	"github.com/sirupsen/logrus"
)

const eventSource = "consultation"

// DoctorDirectory answers whether a doctor id refers to a registered doctor.
type DoctorDirectory interface {
	DoctorExists(ctx context.Context, id uuid.UUID) (bool, error)
}

type Service struct {
	repo    *Repository
	doctors DoctorDirectory
	events  kafka.Publisher
	nowFunc func() time.Time
}

func NewService(repo *Repository, doctors DoctorDirectory, events kafka.Publisher) *Service {
	if events == nil {
		events = kafka.NopPublisher{}
	}
	return &Service{
		repo:    repo,
		doctors: doctors,
		events:  events,
		nowFunc: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Create(ctx context.Context, patientID uuid.UUID, req models.CreateConsultationRequest) (models.Consultation, error) {
	doctorID, err := validateCreate(req)
	if err != nil {
		return models.Consultation{}, err
	}

	exists, err := s.doctors.DoctorExists(ctx, doctorID)
	if err != nil {
		return models.Consultation{}, err
	}
	if !exists {
		return models.Consultation{}, fmt.Errorf("doctor %s: %w", doctorID, apperr.ErrNotFound)
	}

	consultation, err := s.repo.Create(ctx, CreateInput{
		PatientID:             patientID,
		DoctorID:              doctorID,
		CurrentIllnessHistory: strings.TrimSpace(req.CurrentIllnessHistory),
		RecentSurgery:         trimOptional(req.RecentSurgery),
		IsDiabetic:            *req.IsDiabetic,
		Allergies:             trimOptional(req.Allergies),
		Others:                trimOptional(req.Others),
		TransactionID:         strings.TrimSpace(req.TransactionID),
		CreatedAt:             s.nowFunc(),
	})
	if err != nil {
		return models.Consultation{}, err
	}

	err = s.events.PublishEvent(ctx, models.EventConsultationCreated, eventSource, map[string]interface{}{
		"actorId":       patientID.String(),
		"role":          string(models.RolePatient),
		"entity":        "consultation",
		"entityId":      consultation.ID.String(),
		"doctorId":      doctorID.String(),
		"transactionId": consultation.TransactionID,
	})
	if err != nil {
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"consultation_id": consultation.ID,
		}).Warn("Failed to publish consultation event")
	}

	return consultation, nil
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]models.PatientConsultation, error) {
	return s.repo.ListForPatient(ctx, patientID)
}

func (s *Service) ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]models.DoctorConsultation, error) {
	return s.repo.ListForDoctor(ctx, doctorID)
}

func validateCreate(req models.CreateConsultationRequest) (uuid.UUID, error) {
	if strings.TrimSpace(req.DoctorID) == "" {
		return uuid.Nil, apperr.NewValidationError("doctorId is required")
	}
	doctorID, err := uuid.Parse(strings.TrimSpace(req.DoctorID))
	if err != nil {
		return uuid.Nil, apperr.NewValidationError("doctorId must be a valid id")
	}
	if strings.TrimSpace(req.CurrentIllnessHistory) == "" {
		return uuid.Nil, apperr.NewValidationError("currentIllnessHistory is required")
	}
	if req.IsDiabetic == nil {
		return uuid.Nil, apperr.NewValidationError("isDiabetic is required")
	}
	if strings.TrimSpace(req.TransactionID) == "" {
		return uuid.Nil, apperr.NewValidationError("transactionId is required")
	}
	return doctorID, nil
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
