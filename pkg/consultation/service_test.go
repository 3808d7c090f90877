package consultation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mediconnect/platform/pkg/common/apperr"
	"github.com/mediconnect/platform/pkg/common/database/dbtest"
	"github.com/mediconnect/platform/pkg/common/kafka"
	"github.com/mediconnect/platform/pkg/common/models"
	"github.com/mediconnect/platform/pkg/identity"
	"github.com/mediconnect/platform/pkg/prescription"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	events []map[string]interface{}
}

func (p *recordingPublisher) PublishEvent(_ context.Context, eventType, _ string, data map[string]interface{}) error {
	data["type"] = eventType
	p.events = append(p.events, data)
	return nil
}

type world struct {
	svc       *Service
	repo      *Repository
	rx        *prescription.Repository
	events    *recordingPublisher
	doctor    models.Doctor
	other     models.Doctor
	patient   models.Patient
	neighbour models.Patient
	clock     time.Time
}

func newWorld(t *testing.T) *world {
	t.Helper()
	ctx := context.Background()
	db := dbtest.Open(t)

	people := identity.NewRepository(db)
	repo := NewRepository(db)
	rx := prescription.NewRepository(db)
	require.NoError(t, people.AutoMigrate())
	require.NoError(t, repo.AutoMigrate())
	require.NoError(t, rx.AutoMigrate())

	surgery := "Appendectomy 2019"
	w := &world{repo: repo, rx: rx, events: &recordingPublisher{}, clock: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}

	var err error
	w.doctor, err = people.CreateDoctor(ctx, identity.CreateDoctorInput{
		Name: "Meera Iyer", Email: "meera@clinic.in", Phone: "9876543210",
		Specialty: "General Medicine", YearsOfExperience: 12, PasswordHash: "x",
	})
	require.NoError(t, err)
	w.other, err = people.CreateDoctor(ctx, identity.CreateDoctorInput{
		Name: "Rahul Sen", Email: "rahul@clinic.in", Phone: "9876543211",
		Specialty: "Dermatology", PasswordHash: "x",
	})
	require.NoError(t, err)
	w.patient, err = people.CreatePatient(ctx, identity.CreatePatientInput{
		Name: "Asha", Age: 30, Email: "asha@x.com", Phone: "9998887770",
		PasswordHash: "x", HistoryOfSurgery: &surgery,
	})
	require.NoError(t, err)
	w.neighbour, err = people.CreatePatient(ctx, identity.CreatePatientInput{
		Name: "Vikram", Age: 41, Email: "vikram@x.com", Phone: "9998887771", PasswordHash: "x",
	})
	require.NoError(t, err)

	w.svc = NewService(repo, identity.NewService(people, nil, nil), w.events)
	w.svc.nowFunc = func() time.Time {
		w.clock = w.clock.Add(time.Minute)
		return w.clock
	}
	return w
}

func intake(doctorID uuid.UUID, txn string) models.CreateConsultationRequest {
	diabetic := false
	return models.CreateConsultationRequest{
		DoctorID:              doctorID.String(),
		CurrentIllnessHistory: "Fever for three days",
		IsDiabetic:            &diabetic,
		TransactionID:         txn,
	}
}

func TestCreateConsultation(t *testing.T) {
	w := newWorld(t)

	allergies := "  Penicillin "
	req := intake(w.doctor.ID, "TXN000111222")
	req.Allergies = &allergies
	blank := "   "
	req.Others = &blank

	c, err := w.svc.Create(context.Background(), w.patient.ID, req)
	require.NoError(t, err)

	assert.Equal(t, w.patient.ID, c.PatientID)
	assert.Equal(t, w.doctor.ID, c.DoctorID)
	assert.Equal(t, "TXN000111222", c.TransactionID)
	require.NotNil(t, c.Allergies)
	assert.Equal(t, "Penicillin", *c.Allergies)
	assert.Nil(t, c.Others)
	assert.Nil(t, c.Prescription)

	require.Len(t, w.events.events, 1)
	assert.Equal(t, models.EventConsultationCreated, w.events.events[0]["type"])
	assert.Equal(t, c.ID.String(), w.events.events[0]["entityId"])
}

type stalledPublisher struct{}

func (stalledPublisher) PublishEvent(ctx context.Context, _, _ string, _ map[string]interface{}) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestCreateConsultationSurvivesStalledBroker(t *testing.T) {
	w := newWorld(t)
	w.svc.events = kafka.WithTimeout(stalledPublisher{}, 20*time.Millisecond)

	start := time.Now()
	c, err := w.svc.Create(context.Background(), w.patient.ID, intake(w.doctor.ID, "TXN000999888"))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	list, err := w.svc.ListForPatient(context.Background(), w.patient.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].ID)
}

func TestCreateConsultationRejectsUnknownDoctor(t *testing.T) {
	w := newWorld(t)

	_, err := w.svc.Create(context.Background(), w.patient.ID, intake(uuid.New(), "TXN1"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = w.svc.Create(context.Background(), w.patient.ID, intake(w.patient.ID, "TXN1"))
	assert.ErrorIs(t, err, apperr.ErrNotFound, "a patient id is not a doctor id")
}

func TestCreateConsultationValidation(t *testing.T) {
	w := newWorld(t)

	cases := map[string]func(*models.CreateConsultationRequest){
		"missing doctor":  func(r *models.CreateConsultationRequest) { r.DoctorID = "" },
		"bad doctor id":   func(r *models.CreateConsultationRequest) { r.DoctorID = "doc-1" },
		"missing illness": func(r *models.CreateConsultationRequest) { r.CurrentIllnessHistory = "" },
		"missing flag":    func(r *models.CreateConsultationRequest) { r.IsDiabetic = nil },
		"missing txn":     func(r *models.CreateConsultationRequest) { r.TransactionID = " " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := intake(w.doctor.ID, "TXN1")
			mutate(&req)
			_, err := w.svc.Create(context.Background(), w.patient.ID, req)
			assert.True(t, apperr.IsValidationError(err), "got %v", err)
		})
	}
}

func TestListForPatientNewestFirstAndScoped(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	first, err := w.svc.Create(ctx, w.patient.ID, intake(w.doctor.ID, "TXN-1"))
	require.NoError(t, err)
	second, err := w.svc.Create(ctx, w.patient.ID, intake(w.other.ID, "TXN-2"))
	require.NoError(t, err)
	_, err = w.svc.Create(ctx, w.neighbour.ID, intake(w.doctor.ID, "TXN-3"))
	require.NoError(t, err)

	list, err := w.svc.ListForPatient(ctx, w.patient.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	got := list[1]
	assert.Equal(t, w.patient.ID, got.PatientID)
	assert.Equal(t, w.doctor.ID, got.DoctorID)
	assert.Equal(t, "TXN-1", got.TransactionID)
	assert.Equal(t, first.CurrentIllnessHistory, got.CurrentIllnessHistory)
	assert.Equal(t, first.IsDiabetic, got.IsDiabetic)
	assert.Equal(t, first.Allergies, got.Allergies)
	assert.WithinDuration(t, first.CreatedAt, got.CreatedAt, time.Second)
	assert.Equal(t, "TXN-2", list[0].TransactionID)
	assert.Equal(t, models.ConsultationDoctor{Name: "Rahul Sen", Specialty: "Dermatology"}, list[0].Doctor)
	assert.Nil(t, list[0].Prescription)
}

func TestListForDoctorIncludesPatientAndPrescription(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	c, err := w.svc.Create(ctx, w.patient.ID, intake(w.doctor.ID, "TXN000111222"))
	require.NoError(t, err)
	_, err = w.svc.Create(ctx, w.neighbour.ID, intake(w.doctor.ID, "TXN000111223"))
	require.NoError(t, err)
	_, err = w.svc.Create(ctx, w.patient.ID, intake(w.other.ID, "TXN000111224"))
	require.NoError(t, err)

	rx, err := w.rx.Upsert(ctx, prescription.UpsertInput{
		ConsultationID: c.ID,
		CareToBeTaken:  "Rest and hydrate",
		Medicines:      "Paracetamol 500mg BD x3 days",
		Now:            time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, w.rx.SetPDFURL(ctx, rx.ID, "https://files.test/"+prescription.ObjectKey(rx.ID), time.Now().UTC()))

	list, err := w.svc.ListForDoctor(ctx, w.doctor.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)

	asha := list[1]
	assert.Equal(t, c.ID, asha.ID)
	assert.Equal(t, "Asha", asha.Patient.Name)
	assert.Equal(t, 30, asha.Patient.Age)
	assert.Equal(t, "asha@x.com", asha.Patient.Email)
	require.NotNil(t, asha.Patient.HistoryOfSurgery)
	assert.Equal(t, "Appendectomy 2019", *asha.Patient.HistoryOfSurgery)
	assert.Nil(t, asha.Patient.HistoryOfIllness)

	require.NotNil(t, asha.Prescription)
	assert.Equal(t, rx.ID, asha.Prescription.ID)
	assert.Equal(t, c.ID, asha.Prescription.ConsultationID)
	assert.Equal(t, "TXN000111222", asha.TransactionID)
	assert.Equal(t, w.patient.ID, asha.PatientID)
	assert.Equal(t, w.doctor.ID, asha.DoctorID)
	assert.Equal(t, "Paracetamol 500mg BD x3 days", asha.Prescription.Medicines)
	require.NotNil(t, asha.Prescription.PDFURL)
	assert.Contains(t, *asha.Prescription.PDFURL, rx.ID.String())

	assert.Equal(t, "Vikram", list[0].Patient.Name)
	assert.Nil(t, list[0].Prescription)
}

func TestGetParties(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	c, err := w.svc.Create(ctx, w.patient.ID, intake(w.doctor.ID, "TXN1"))
	require.NoError(t, err)

	parties, err := w.repo.GetParties(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, w.doctor.ID, parties.DoctorID)
	assert.Equal(t, "Meera Iyer", parties.DoctorName)
	assert.Equal(t, "General Medicine", parties.DoctorSpecialty)
	assert.Equal(t, "Asha", parties.PatientName)
	assert.Equal(t, 30, parties.PatientAge)

	_, err = w.repo.GetParties(ctx, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
