package prescription

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/mediconnect/platform/pkg/common/apperr"
	"github.com/mediconnect/platform/pkg/common/database/dbtest"
	"github.com/mediconnect/platform/pkg/common/models"
	"github.com/mediconnect/platform/pkg/consultation"
	"github.com/mediconnect/platform/pkg/identity"
	"github.com/mediconnect/platform/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc            *Service
	repo           *Repository
	store          *storage.MemoryStore
	doctorID       uuid.UUID
	otherDoctorID  uuid.UUID
	consultationID uuid.UUID
}

type failingStore struct{}

func (failingStore) Put(context.Context, string, []byte, string) (string, error) {
	return "", apperr.Upstream("supabase upload", errors.New("status 503"))
}

type failingRenderer struct{}

func (failingRenderer) Render(Document) ([]byte, error) {
	return nil, errors.New("font missing")
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := dbtest.Open(t)

	people := identity.NewRepository(db)
	consultations := consultation.NewRepository(db)
	repo := NewRepository(db)
	require.NoError(t, people.AutoMigrate())
	require.NoError(t, consultations.AutoMigrate())
	require.NoError(t, repo.AutoMigrate())

	doctor, err := people.CreateDoctor(ctx, identity.CreateDoctorInput{
		Name: "Meera Iyer", Email: "meera@clinic.in", Phone: "9876543210",
		Specialty: "General Medicine", YearsOfExperience: 12, PasswordHash: "x",
	})
	require.NoError(t, err)
	other, err := people.CreateDoctor(ctx, identity.CreateDoctorInput{
		Name: "Rahul Sen", Email: "rahul@clinic.in", Phone: "9876543211",
		Specialty: "Dermatology", PasswordHash: "x",
	})
	require.NoError(t, err)
	patient, err := people.CreatePatient(ctx, identity.CreatePatientInput{
		Name: "Asha", Age: 30, Email: "asha@x.com", Phone: "9998887770", PasswordHash: "x",
	})
	require.NoError(t, err)

	c, err := consultations.Create(ctx, consultation.CreateInput{
		PatientID:             patient.ID,
		DoctorID:              doctor.ID,
		CurrentIllnessHistory: "Fever for three days",
		TransactionID:         "TXN000111222",
	})
	require.NoError(t, err)

	renderer, err := NewPDFRenderer(DefaultTemplate())
	require.NoError(t, err)
	store := storage.NewMemoryStore("https://files.test/prescriptions")

	return &fixture{
		svc:            NewService(repo, consultations, renderer, store, nil),
		repo:           repo,
		store:          store,
		doctorID:       doctor.ID,
		otherDoctorID:  other.ID,
		consultationID: c.ID,
	}
}

func (f *fixture) request(care, medicines string) models.UpsertPrescriptionRequest {
	return models.UpsertPrescriptionRequest{
		ConsultationID: f.consultationID.String(),
		CareToBeTaken:  care,
		Medicines:      medicines,
	}
}

func TestUpsertCreatesAndStoresDocument(t *testing.T) {
	f := newFixture(t)

	rx, err := f.svc.Upsert(context.Background(), f.doctorID, f.request("Rest and hydrate", "Paracetamol 500mg BD x3 days"))
	require.NoError(t, err)

	require.NotNil(t, rx.PDFURL)
	assert.Equal(t, "https://files.test/prescriptions/"+ObjectKey(rx.ID), *rx.PDFURL)
	assert.Equal(t, f.consultationID, rx.ConsultationID)

	data, contentType, ok := f.store.Get(ObjectKey(rx.ID))
	require.True(t, ok)
	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	stored, err := f.repo.GetByConsultation(context.Background(), f.consultationID)
	require.NoError(t, err)
	assert.Equal(t, rx.PDFURL, stored.PDFURL)
}

func TestUpsertKeepsIDAndLastWriteWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Upsert(ctx, f.doctorID, f.request("Rest", "Paracetamol"))
	require.NoError(t, err)
	second, err := f.svc.Upsert(ctx, f.doctorID, f.request("Rest and hydrate", "Paracetamol 500mg BD x3 days"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, *first.PDFURL, *second.PDFURL)
	assert.Equal(t, "Rest and hydrate", second.CareToBeTaken)
	assert.Equal(t, 1, f.store.Len())

	stored, err := f.repo.GetByConsultation(ctx, f.consultationID)
	require.NoError(t, err)
	assert.Equal(t, "Paracetamol 500mg BD x3 days", stored.Medicines)
}

func TestUpsertOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upsert(ctx, f.otherDoctorID, f.request("Rest", "Paracetamol"))
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	req := f.request("Rest", "Paracetamol")
	req.ConsultationID = uuid.NewString()
	_, err = f.svc.Upsert(ctx, f.doctorID, req)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Zero(t, f.store.Len())
}

func TestUpsertRollsBackOnStorageFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.store = failingStore{}

	_, err := f.svc.Upsert(ctx, f.doctorID, f.request("Rest", "Paracetamol"))
	assert.ErrorIs(t, err, apperr.ErrUpstream)

	_, err = f.repo.GetByConsultation(ctx, f.consultationID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpsertFailureKeepsPreviousVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Upsert(ctx, f.doctorID, f.request("Rest", "Paracetamol"))
	require.NoError(t, err)

	f.svc.renderer = failingRenderer{}
	_, err = f.svc.Upsert(ctx, f.doctorID, f.request("Changed", "Changed"))
	require.Error(t, err)

	stored, err := f.repo.GetByConsultation(ctx, f.consultationID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, "Rest", stored.CareToBeTaken)
	assert.Equal(t, first.PDFURL, stored.PDFURL)
}

func TestUpsertValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bad := []models.UpsertPrescriptionRequest{
		{ConsultationID: "not-an-id", CareToBeTaken: "Rest", Medicines: "Paracetamol"},
		{ConsultationID: f.consultationID.String(), CareToBeTaken: " ", Medicines: "Paracetamol"},
		{ConsultationID: f.consultationID.String(), CareToBeTaken: "Rest"},
	}
	for _, req := range bad {
		_, err := f.svc.Upsert(ctx, f.doctorID, req)
		assert.True(t, apperr.IsValidationError(err), "%+v", req)
	}
}
