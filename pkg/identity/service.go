package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/mediconnect/platform/pkg/common/apperr"
	"github.com/mediconnect/platform/pkg/common/kafka"
	"github.com/mediconnect/platform/pkg/common/logger"
	"github.com/mediconnect/platform/pkg/common/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	passwordCost = 10
	eventSource  = "identity"
)

// DirectoryCache stores the public doctor list. A miss is (nil, false, nil).
type DirectoryCache interface {
	GetDoctors(ctx context.Context) ([]models.DoctorSummary, bool, error)
	SetDoctors(ctx context.Context, doctors []models.DoctorSummary) error
	Invalidate(ctx context.Context) error
}

type Service struct {
	repo   *Repository
	cache  DirectoryCache
	events kafka.Publisher
}

// NewService wires the credential store. cache and events may be nil.
func NewService(repo *Repository, cache DirectoryCache, events kafka.Publisher) *Service {
	if events == nil {
		events = kafka.NopPublisher{}
	}
	return &Service{repo: repo, cache: cache, events: events}
}

func (s *Service) RegisterDoctor(ctx context.Context, req models.DoctorSignup) (models.Doctor, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Specialty = strings.TrimSpace(req.Specialty)
	if err := validateDoctorSignup(req); err != nil {
		return models.Doctor{}, err
	}

	if err := s.ensureAvailable(ctx, models.RoleDoctor, req.Email, req.Phone); err != nil {
		return models.Doctor{}, err
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return models.Doctor{}, err
	}

	doctor, err := s.repo.CreateDoctor(ctx, CreateDoctorInput{
		Name:              req.Name,
		Email:             req.Email,
		Phone:             req.Phone,
		Specialty:         req.Specialty,
		YearsOfExperience: req.YearsOfExperience,
		PasswordHash:      hash,
		ProfilePic:        req.ProfilePic,
	})
	if err != nil {
		return models.Doctor{}, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			logger.Log.WithError(err).Warn("Failed to invalidate doctor directory cache")
		}
	}
	s.publishRegistered(ctx, doctor.ID, models.RoleDoctor)

	return doctor, nil
}

func (s *Service) RegisterPatient(ctx context.Context, req models.PatientSignup) (models.Patient, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validatePatientSignup(req); err != nil {
		return models.Patient{}, err
	}

	if err := s.ensureAvailable(ctx, models.RolePatient, req.Email, req.Phone); err != nil {
		return models.Patient{}, err
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return models.Patient{}, err
	}

	patient, err := s.repo.CreatePatient(ctx, CreatePatientInput{
		Name:             req.Name,
		Age:              req.Age,
		Email:            req.Email,
		Phone:            req.Phone,
		PasswordHash:     hash,
		ProfilePic:       req.ProfilePic,
		HistoryOfSurgery: req.HistoryOfSurgery,
		HistoryOfIllness: req.HistoryOfIllness,
	})
	if err != nil {
		return models.Patient{}, err
	}

	s.publishRegistered(ctx, patient.ID, models.RolePatient)
	return patient, nil
}

// Authenticate verifies a login for one actor kind. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, role models.Role, email, password string) (models.Actor, error) {
	if !validEmail(email) || password == "" {
		return models.Actor{}, apperr.ErrInvalidCredentials
	}

	creds, err := s.repo.GetCredentials(ctx, role, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.Actor{}, apperr.ErrInvalidCredentials
		}
		return models.Actor{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)) != nil {
		return models.Actor{}, apperr.ErrInvalidCredentials
	}

	return models.Actor{ID: creds.ID, Name: creds.Name, Role: role}, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (models.Doctor, error) {
	return s.repo.GetDoctorByID(ctx, id)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (models.Patient, error) {
	return s.repo.GetPatientByID(ctx, id)
}

func (s *Service) DoctorExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.repo.DoctorExists(ctx, id)
}

// ListDoctors serves the directory from cache when possible. Cache errors
// are logged and fall through to the database.
func (s *Service) ListDoctors(ctx context.Context) ([]models.DoctorSummary, error) {
	if s.cache != nil {
		doctors, ok, err := s.cache.GetDoctors(ctx)
		if err != nil {
			logger.Log.WithError(err).Warn("Doctor directory cache read failed")
		} else if ok {
			return doctors, nil
		}
	}

	doctors, err := s.repo.ListDoctors(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetDoctors(ctx, doctors); err != nil {
			logger.Log.WithError(err).Warn("Doctor directory cache write failed")
		}
	}
	return doctors, nil
}

func (s *Service) ensureAvailable(ctx context.Context, role models.Role, email, phone string) error {
	taken, err := s.repo.IdentityTaken(ctx, role, email, phone)
	if err != nil {
		return err
	}
	if taken {
		return apperr.ErrDuplicateIdentity
	}
	return nil
}

func (s *Service) publishRegistered(ctx context.Context, id uuid.UUID, role models.Role) {
	err := s.events.PublishEvent(ctx, models.EventActorRegistered, eventSource, map[string]interface{}{
		"actorId":  id.String(),
		"role":     string(role),
		"entity":   strings.ToLower(string(role)),
		"entityId": id.String(),
	})
	if err != nil {
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"actor_id": id,
			"role":     role,
		}).Warn("Failed to publish registration event")
	}
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
