package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mediconnect/platform/pkg/common/apperr"
	"github.com/mediconnect/platform/pkg/common/logger"
	"github.com/mediconnect/platform/pkg/common/models"
	gatewayauth "github.com/mediconnect/platform/pkg/gateway/auth"
	"github.com/mediconnect/platform/pkg/identity"
	"github.com/mediconnect/platform/pkg/observability/metrics"
	"github.com/mediconnect/platform/pkg/storage"
	"github.com/sirupsen/logrus"
)

const (
	profilePicField   = "profilePic"
	maxMultipartMem   = 8 << 20
	maxProfilePicSize = 5 << 20
)

var safeExt = regexp.MustCompile(`^\.[a-zA-Z0-9]{1,8}$`)

type AuthHandler struct {
	service     *identity.Service
	tokenSigner *gatewayauth.JWTManager
	uploads     storage.ObjectStore
}

// NewAuthHandler wires signup and login. uploads receives profile pictures
// sent with multipart signups.
func NewAuthHandler(service *identity.Service, tokenSigner *gatewayauth.JWTManager, uploads storage.ObjectStore) *AuthHandler {
	return &AuthHandler{service: service, tokenSigner: tokenSigner, uploads: uploads}
}

func (h *AuthHandler) Register(r *mux.Router) {
	r.HandleFunc("/doctor/signup", h.handleDoctorSignup).Methods(http.MethodPost)
	r.HandleFunc("/doctor/login", h.handleLogin(models.RoleDoctor)).Methods(http.MethodPost)
	r.HandleFunc("/patient/signup", h.handlePatientSignup).Methods(http.MethodPost)
	r.HandleFunc("/patient/login", h.handleLogin(models.RolePatient)).Methods(http.MethodPost)
}

func (h *AuthHandler) handleDoctorSignup(w http.ResponseWriter, r *http.Request) {
	h.handleSignup(w, r, models.RoleDoctor, h.signupDoctor)
}

func (h *AuthHandler) handlePatientSignup(w http.ResponseWriter, r *http.Request) {
	h.handleSignup(w, r, models.RolePatient, h.signupPatient)
}

func (h *AuthHandler) handleSignup(w http.ResponseWriter, r *http.Request, role models.Role, signup func(*http.Request, signupForm) (models.Actor, error)) {
	form, err := h.readSignup(r)
	var actor models.Actor
	if err == nil {
		actor, err = signup(r, form)
	}
	metrics.ObserveAuthAttempt(string(role), "signup", err)
	if err != nil {
		logger.Log.WithError(err).WithField("role", role).Warn("signup failed")
		respondError(w, r, err)
		return
	}

	h.respondWithToken(w, http.StatusCreated, actor)
}

func (h *AuthHandler) signupDoctor(r *http.Request, form signupForm) (models.Actor, error) {
	years, err := form.number("yearsOfExperience", "Experience must be a positive number")
	if err != nil {
		return models.Actor{}, err
	}
	doctor, err := h.service.RegisterDoctor(r.Context(), models.DoctorSignup{
		Name:              form.get("name"),
		Specialty:         form.get("specialty"),
		Email:             form.get("email"),
		Phone:             form.get("phone"),
		YearsOfExperience: years,
		Password:          form.get("password"),
		ProfilePic:        form.profilePic(),
	})
	if err != nil {
		return models.Actor{}, err
	}
	return models.Actor{ID: doctor.ID, Name: doctor.Name, Role: models.RoleDoctor}, nil
}

func (h *AuthHandler) signupPatient(r *http.Request, form signupForm) (models.Actor, error) {
	age, err := form.number("age", "Age must be a positive number")
	if err != nil {
		return models.Actor{}, err
	}
	patient, err := h.service.RegisterPatient(r.Context(), models.PatientSignup{
		Name:             form.get("name"),
		Age:              age,
		Email:            form.get("email"),
		Phone:            form.get("phone"),
		Password:         form.get("password"),
		ProfilePic:       form.profilePic(),
		HistoryOfSurgery: form.optional("historyOfSurgery"),
		HistoryOfIllness: form.optional("historyOfIllness"),
	})
	if err != nil {
		return models.Actor{}, err
	}
	return models.Actor{ID: patient.ID, Name: patient.Name, Role: models.RolePatient}, nil
}

func (h *AuthHandler) handleLogin(role models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, err)
			return
		}

		actor, err := h.service.Authenticate(r.Context(), role, req.Email, req.Password)
		metrics.ObserveAuthAttempt(string(role), "login", err)
		if err != nil {
			// Emails stay out of auth logs.
			logger.Log.WithError(err).WithField("role", role).Info("login rejected")
			respondError(w, r, err)
			return
		}

		h.respondWithToken(w, http.StatusOK, actor)
	}
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, status int, actor models.Actor) {
	token, err := h.tokenSigner.IssueToken(actor.ID, actor.Role)
	if err != nil {
		logger.Log.WithError(err).Error("failed issuing token")
		respondMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, status, models.AuthResponse{Token: token, User: actor})
}

// signupForm holds the text fields of a signup, whichever encoding the
// client used.
type signupForm struct {
	fields map[string]string
	set    map[string]bool
	picURL string
}

func (f signupForm) get(key string) string {
	return f.fields[key]
}

func (f signupForm) optional(key string) *string {
	if !f.set[key] {
		return nil
	}
	v := f.fields[key]
	return &v
}

func (f signupForm) number(key, message string) (int, error) {
	raw := strings.TrimSpace(f.fields[key])
	if !f.set[key] || raw == "" {
		return 0, apperr.NewValidationError("%s", message)
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || n < 0 || n > math.MaxInt32 {
		return 0, apperr.NewValidationError("%s", message)
	}
	return int(n), nil
}

// profilePic prefers an uploaded file over a URL sent as a plain field.
func (f signupForm) profilePic() *string {
	if f.picURL != "" {
		return &f.picURL
	}
	return f.optional(profilePicField)
}

func (h *AuthHandler) readSignup(r *http.Request) (signupForm, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return h.readMultipartSignup(r)
	}

	var body map[string]json.RawMessage
	if err := decodeJSON(r, &body); err != nil {
		return signupForm{}, err
	}
	form := signupForm{fields: map[string]string{}, set: map[string]bool{}}
	for key, raw := range body {
		if string(raw) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			form.fields[key] = s
		} else {
			// Numbers arrive unquoted from JSON clients.
			form.fields[key] = strings.TrimSpace(string(raw))
		}
		form.set[key] = true
	}
	return form, nil
}

func (h *AuthHandler) readMultipartSignup(r *http.Request) (signupForm, error) {
	if err := r.ParseMultipartForm(maxMultipartMem); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return signupForm{}, apperr.NewValidationError("Request body too large")
		}
		return signupForm{}, apperr.NewValidationError("Invalid form data")
	}
	defer r.MultipartForm.RemoveAll()

	form := signupForm{fields: map[string]string{}, set: map[string]bool{}}
	for key, values := range r.MultipartForm.Value {
		if len(values) > 0 {
			form.fields[key] = values[0]
			form.set[key] = true
		}
	}

	file, header, err := r.FormFile(profilePicField)
	if errors.Is(err, http.ErrMissingFile) {
		return form, nil
	}
	if err != nil {
		return signupForm{}, apperr.NewValidationError("Invalid profile picture")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxProfilePicSize+1))
	if err != nil {
		return signupForm{}, fmt.Errorf("read profile picture: %w", err)
	}
	if len(data) > maxProfilePicSize {
		return signupForm{}, apperr.NewValidationError("Profile picture must be at most 5MB")
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return signupForm{}, apperr.NewValidationError("Profile picture must be an image")
	}

	url, err := h.uploads.Put(r.Context(), uploadName(header.Filename), data, contentType)
	if err != nil {
		return signupForm{}, fmt.Errorf("store profile picture: %w", err)
	}
	logger.Log.WithFields(logrus.Fields{
		"url":  url,
		"size": len(data),
	}).Debug("profile picture stored")
	form.picURL = url
	return form, nil
}

// uploadName generates a unique file name that keeps a sane extension from
// the client's file name.
func uploadName(original string) string {
	ext := filepath.Ext(filepath.Base(original))
	if !safeExt.MatchString(ext) {
		ext = ""
	}
	return fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString(), strings.ToLower(ext))
}
