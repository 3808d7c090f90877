package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/mediconnect/platform/pkg/common/apperr"
	"github.com/mediconnect/platform/pkg/common/database/dbtest"
	"github.com/mediconnect/platform/pkg/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetDoctors(ctx context.Context) ([]models.DoctorSummary, bool, error) {
	args := m.Called(ctx)
	doctors, _ := args.Get(0).([]models.DoctorSummary)
	return doctors, args.Bool(1), args.Error(2)
}

func (m *mockCache) SetDoctors(ctx context.Context, doctors []models.DoctorSummary) error {
	return m.Called(ctx, doctors).Error(0)
}

func (m *mockCache) Invalidate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type recordingPublisher struct {
	types []string
}

func (p *recordingPublisher) PublishEvent(_ context.Context, eventType, _ string, _ map[string]interface{}) error {
	p.types = append(p.types, eventType)
	return nil
}

func newTestService(t *testing.T, cache DirectoryCache) (*Service, *Repository, *recordingPublisher) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	require.NoError(t, repo.AutoMigrate())
	events := &recordingPublisher{}
	return NewService(repo, cache, events), repo, events
}

func doctorSignup() models.DoctorSignup {
	return models.DoctorSignup{
		Name:              "Meera Iyer",
		Specialty:         "General Medicine",
		Email:             "meera@clinic.in",
		Phone:             "9876543210",
		YearsOfExperience: 12,
		Password:          "stethoscope",
	}
}

func patientSignup() models.PatientSignup {
	return models.PatientSignup{
		Name:     "Asha",
		Age:      30,
		Email:    "asha@x.com",
		Phone:    "9998887770",
		Password: "secret1",
	}
}

func TestRegisterDoctorThenLogin(t *testing.T) {
	svc, repo, events := newTestService(t, nil)
	ctx := context.Background()

	doctor, err := svc.RegisterDoctor(ctx, doctorSignup())
	require.NoError(t, err)
	assert.Equal(t, "meera@clinic.in", doctor.Email)
	assert.Equal(t, []string{models.EventActorRegistered}, events.types)

	creds, err := repo.GetCredentials(ctx, models.RoleDoctor, "meera@clinic.in")
	require.NoError(t, err)
	assert.NotEqual(t, "stethoscope", creds.PasswordHash)
	cost, err := bcrypt.Cost([]byte(creds.PasswordHash))
	require.NoError(t, err)
	assert.Equal(t, 10, cost)

	actor, err := svc.Authenticate(ctx, models.RoleDoctor, " Meera@Clinic.in ", "stethoscope")
	require.NoError(t, err)
	assert.Equal(t, doctor.ID, actor.ID)
	assert.Equal(t, models.RoleDoctor, actor.Role)
	assert.Equal(t, "Meera Iyer", actor.Name)
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.RegisterPatient(ctx, patientSignup())
	require.NoError(t, err)

	tests := []struct {
		name     string
		role     models.Role
		email    string
		password string
	}{
		{"wrong password", models.RolePatient, "asha@x.com", "secret2"},
		{"unknown email", models.RolePatient, "nobody@x.com", "secret1"},
		{"wrong actor kind", models.RoleDoctor, "asha@x.com", "secret1"},
		{"empty password", models.RolePatient, "asha@x.com", ""},
		{"malformed email", models.RolePatient, "asha", "secret1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Authenticate(ctx, tt.role, tt.email, tt.password)
			assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
		})
	}
}

func TestDuplicateIdentityIsScopedToActorKind(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.RegisterPatient(ctx, patientSignup())
	require.NoError(t, err)

	sameEmail := patientSignup()
	sameEmail.Phone = "9000000001"
	_, err = svc.RegisterPatient(ctx, sameEmail)
	assert.ErrorIs(t, err, apperr.ErrDuplicateIdentity)

	samePhone := patientSignup()
	samePhone.Email = "other@x.com"
	_, err = svc.RegisterPatient(ctx, samePhone)
	assert.ErrorIs(t, err, apperr.ErrDuplicateIdentity)

	// A doctor may reuse a patient's email and phone.
	doc := doctorSignup()
	doc.Email = "asha@x.com"
	doc.Phone = "9998887770"
	_, err = svc.RegisterDoctor(ctx, doc)
	assert.NoError(t, err)
}

func TestUniqueIndexBacksDuplicateCheck(t *testing.T) {
	_, repo, _ := newTestService(t, nil)
	ctx := context.Background()

	input := CreatePatientInput{Name: "Asha", Age: 30, Email: "asha@x.com", Phone: "9998887770", PasswordHash: "x"}
	_, err := repo.CreatePatient(ctx, input)
	require.NoError(t, err)

	input.Phone = "9000000001"
	_, err = repo.CreatePatient(ctx, input)
	assert.ErrorIs(t, err, apperr.ErrDuplicateIdentity)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	doctorCases := map[string]func(*models.DoctorSignup){
		"short name":         func(r *models.DoctorSignup) { r.Name = "M" },
		"missing specialty":  func(r *models.DoctorSignup) { r.Specialty = " " },
		"bad email":          func(r *models.DoctorSignup) { r.Email = "meera-at-clinic" },
		"short phone":        func(r *models.DoctorSignup) { r.Phone = "12345" },
		"negative years":     func(r *models.DoctorSignup) { r.YearsOfExperience = -1 },
		"short password":     func(r *models.DoctorSignup) { r.Password = "abc" },
		"display name email": func(r *models.DoctorSignup) { r.Email = "Meera <meera@clinic.in>" },
	}
	for name, mutate := range doctorCases {
		t.Run("doctor "+name, func(t *testing.T) {
			req := doctorSignup()
			mutate(&req)
			_, err := svc.RegisterDoctor(ctx, req)
			assert.True(t, apperr.IsValidationError(err), "got %v", err)
		})
	}

	patient := patientSignup()
	patient.Age = -3
	_, err := svc.RegisterPatient(ctx, patient)
	assert.True(t, apperr.IsValidationError(err))
}

func TestPatientHistoryIsOptional(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	surgery := "Appendectomy 2019"
	req := patientSignup()
	req.HistoryOfSurgery = &surgery

	created, err := svc.RegisterPatient(ctx, req)
	require.NoError(t, err)

	got, err := svc.GetPatient(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.HistoryOfSurgery)
	assert.Equal(t, surgery, *got.HistoryOfSurgery)
	assert.Nil(t, got.HistoryOfIllness)
	assert.Nil(t, got.ProfilePic)
}

func TestListDoctorsUsesCache(t *testing.T) {
	cache := &mockCache{}
	svc, _, _ := newTestService(t, cache)
	ctx := context.Background()

	cache.On("Invalidate", mock.Anything).Return(nil).Once()
	_, err := svc.RegisterDoctor(ctx, doctorSignup())
	require.NoError(t, err)

	cache.On("GetDoctors", mock.Anything).Return(nil, false, nil).Once()
	cache.On("SetDoctors", mock.Anything, mock.MatchedBy(func(d []models.DoctorSummary) bool {
		return len(d) == 1 && d[0].Name == "Meera Iyer"
	})).Return(nil).Once()

	doctors, err := svc.ListDoctors(ctx)
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Equal(t, 12, doctors[0].YearsOfExperience)

	cached := []models.DoctorSummary{{Name: "From Cache"}}
	cache.On("GetDoctors", mock.Anything).Return(cached, true, nil).Once()

	doctors, err = svc.ListDoctors(ctx)
	require.NoError(t, err)
	assert.Equal(t, cached, doctors)

	cache.AssertExpectations(t)
}

func TestListDoctorsSurvivesCacheFailure(t *testing.T) {
	cache := &mockCache{}
	svc, _, _ := newTestService(t, cache)
	ctx := context.Background()

	cache.On("GetDoctors", mock.Anything).Return(nil, false, errors.New("redis down"))
	cache.On("SetDoctors", mock.Anything, mock.Anything).Return(errors.New("redis down"))

	doctors, err := svc.ListDoctors(ctx)
	require.NoError(t, err)
	assert.Empty(t, doctors)
}

func TestGetDoctorNotFound(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	_, err := svc.GetDoctor(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	exists, err := svc.DoctorExists(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, exists)
}
