package prescription

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
	"github.com/mediconnect/platform/pkg/observability/metrics"
	"github.com/mediconnect/platform/pkg/storage"
	"github.com/sirupsen/logrus"
)

const (
	eventSource    = "prescription"
	pdfContentType = "application/pdf"
)

type ConsultationLookup interface {
	GetParties(ctx context.Context, id uuid.UUID) (models.ConsultationParties, error)
}

type Service struct {
	repo          *Repository
	consultations ConsultationLookup
	renderer      DocumentRenderer
	store         storage.ObjectStore
	events        kafka.Publisher
	nowFunc       func() time.Time
}

func NewService(repo *Repository, consultations ConsultationLookup, renderer DocumentRenderer, store storage.ObjectStore, events kafka.Publisher) *Service {
	if events == nil {
		events = kafka.NopPublisher{}
	}
	return &Service{
		repo:          repo,
		consultations: consultations,
		renderer:      renderer,
		store:         store,
		events:        events,
		nowFunc:       func() time.Time { return time.Now().UTC() },
	}
}

// ObjectKey is the storage key for a prescription's rendered document.
func ObjectKey(id uuid.UUID) string {
	return "prescription_" + id.String() + ".pdf"
}

// Upsert writes the prescription for a consultation owned by doctorID,
// renders it and stores the document. The row change, the render and the
// upload succeed or fail together.
func (s *Service) Upsert(ctx context.Context, doctorID uuid.UUID, req models.UpsertPrescriptionRequest) (models.Prescription, error) {
	consultationID, err := validateUpsert(req)
	if err != nil {
		return models.Prescription{}, err
	}

	parties, err := s.consultations.GetParties(ctx, consultationID)
	if err != nil {
		return models.Prescription{}, err
	}
	if parties.DoctorID != doctorID {
		return models.Prescription{}, fmt.Errorf("consultation %s belongs to another doctor: %w", consultationID, apperr.ErrForbidden)
	}

	start := time.Now()
	var result models.Prescription
	err = s.repo.Transaction(ctx, func(tx *Repository) error {
		now := s.nowFunc()
		rx, err := tx.Upsert(ctx, UpsertInput{
			ConsultationID: consultationID,
			CareToBeTaken:  req.CareToBeTaken,
			Medicines:      req.Medicines,
			Now:            now,
		})
		if err != nil {
			return err
		}

		pdf, err := s.renderer.Render(Document{
			DoctorName:      parties.DoctorName,
			DoctorSpecialty: parties.DoctorSpecialty,
			PatientName:     parties.PatientName,
			PatientAge:      parties.PatientAge,
			CareToBeTaken:   rx.CareToBeTaken,
			Medicines:       rx.Medicines,
		})
		if err != nil {
			return err
		}

		url, err := s.store.Put(ctx, ObjectKey(rx.ID), pdf, pdfContentType)
		if err != nil {
			return err
		}

		if err := tx.SetPDFURL(ctx, rx.ID, url, now); err != nil {
			return err
		}
		rx.PDFURL = &url
		rx.UpdatedAt = now
		result = rx
		return nil
	})
	metrics.ObservePrescription(time.Since(start), err)
	if err != nil {
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"consultation_id": consultationID,
			"doctor_id":       doctorID,
		}).Error("Prescription upsert rolled back")
		return models.Prescription{}, err
	}

	err = s.events.PublishEvent(ctx, models.EventPrescriptionIssued, eventSource, map[string]interface{}{
		"actorId":        doctorID.String(),
		"role":           string(models.RoleDoctor),
		"entity":         "prescription",
		"entityId":       result.ID.String(),
		"consultationId": consultationID.String(),
		"patientId":      parties.PatientID.String(),
		"pdfUrl":         *result.PDFURL,
	})
	if err != nil {
		logger.Log.WithError(err).WithField("prescription_id", result.ID).Warn("Failed to publish prescription event")
	}

	return result, nil
}

func validateUpsert(req models.UpsertPrescriptionRequest) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(req.ConsultationID))
	if err != nil {
		return uuid.Nil, apperr.NewValidationError("consultationId must be a valid id")
	}
	if strings.TrimSpace(req.CareToBeTaken) == "" {
		return uuid.Nil, apperr.NewValidationError("careToBeTaken is required")
	}
	if strings.TrimSpace(req.Medicines) == "" {
		return uuid.Nil, apperr.NewValidationError("medicines is required")
	}
	return id, nil
}
