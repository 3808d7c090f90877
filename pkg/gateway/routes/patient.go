package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mediconnect/platform/pkg/common/models"
	"github.com/mediconnect/platform/pkg/consultation"
	"github.com/mediconnect/platform/pkg/gateway/middleware"
	"github.com/mediconnect/platform/pkg/identity"
)

type PatientHandler struct {
	identity      *identity.Service
	consultations *consultation.Service
}

func NewPatientHandler(identities *identity.Service, consultations *consultation.Service) *PatientHandler {
	return &PatientHandler{identity: identities, consultations: consultations}
}

// Register expects r to be authenticated. The doctor directory is open to
// both roles, everything else is patient-only.
func (h *PatientHandler) Register(r *mux.Router) {
	r.HandleFunc("/doctors", h.handleDoctors).Methods(http.MethodGet)

	own := r.NewRoute().Subrouter()
	own.Use(middleware.Authorize(models.RolePatient))
	own.HandleFunc("/profile", h.handleProfile).Methods(http.MethodGet)
	own.HandleFunc("/consultation", h.handleCreateConsultation).Methods(http.MethodPost)
	own.HandleFunc("/consultations", h.handleConsultations).Methods(http.MethodGet)
}

func (h *PatientHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	patient, err := h.identity.GetPatient(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, patient)
}

func (h *PatientHandler) handleDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.identity.ListDoctors(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if doctors == nil {
		doctors = []models.DoctorSummary{}
	}
	respondJSON(w, http.StatusOK, doctors)
}

func (h *PatientHandler) handleCreateConsultation(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req models.CreateConsultationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	created, err := h.consultations.Create(r.Context(), claims.UserID, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *PatientHandler) handleConsultations(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	consultations, err := h.consultations.ListForPatient(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if consultations == nil {
		consultations = []models.PatientConsultation{}
	}
	respondJSON(w, http.StatusOK, consultations)
}
