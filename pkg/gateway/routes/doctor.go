package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mediconnect/platform/pkg/common/models"
	"github.com/mediconnect/platform/pkg/consultation"
	"github.com/mediconnect/platform/pkg/identity"
	"github.com/mediconnect/platform/pkg/prescription"
)

type DoctorHandler struct {
	identity      *identity.Service
	consultations *consultation.Service
	prescriptions *prescription.Service
}

func NewDoctorHandler(identities *identity.Service, consultations *consultation.Service, prescriptions *prescription.Service) *DoctorHandler {
	return &DoctorHandler{identity: identities, consultations: consultations, prescriptions: prescriptions}
}

// Register expects r to be already restricted to doctors.
func (h *DoctorHandler) Register(r *mux.Router) {
	r.HandleFunc("/profile", h.handleProfile).Methods(http.MethodGet)
	r.HandleFunc("/consultations", h.handleConsultations).Methods(http.MethodGet)
	r.HandleFunc("/prescription", h.handlePrescription).Methods(http.MethodPost)
}

func (h *DoctorHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	doctor, err := h.identity.GetDoctor(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, doctor)
}

func (h *DoctorHandler) handleConsultations(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	consultations, err := h.consultations.ListForDoctor(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if consultations == nil {
		consultations = []models.DoctorConsultation{}
	}
	respondJSON(w, http.StatusOK, consultations)
}

func (h *DoctorHandler) handlePrescription(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req models.UpsertPrescriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	rx, err := h.prescriptions.Upsert(r.Context(), claims.UserID, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rx)
}
