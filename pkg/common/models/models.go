package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleDoctor  Role = "DOCTOR"
	RolePatient Role = "PATIENT"
)

func (r Role) Valid() bool {
	return r == RoleDoctor || r == RolePatient
}

func ParseRole(value string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(value)))
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", value)
	}
	return role, nil
}

// Actors

type Doctor struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Phone             string    `json:"phone"`
	Specialty         string    `json:"specialty"`
	YearsOfExperience int       `json:"yearsOfExperience"`
	ProfilePic        *string   `json:"profilePic"`
	CreatedAt         time.Time `json:"-"`
	UpdatedAt         time.Time `json:"-"`
}

// DoctorSummary is the public directory entry shown to patients.
type DoctorSummary struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Specialty         string    `json:"specialty"`
	ProfilePic        *string   `json:"profilePic"`
	YearsOfExperience int       `json:"yearsOfExperience"`
}

type Patient struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Age              int       `json:"age"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	ProfilePic       *string   `json:"profilePic"`
	HistoryOfSurgery *string   `json:"historyOfSurgery"`
	HistoryOfIllness *string   `json:"historyOfIllness"`
	CreatedAt        time.Time `json:"-"`
	UpdatedAt        time.Time `json:"-"`
}

// Actor is the identity carried in tokens and auth responses.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role Role      `json:"role"`
}

type DoctorSignup struct {
	Name              string
	Specialty         string
	Email             string
	Phone             string
	YearsOfExperience int
	Password          string
	ProfilePic        *string
}

type PatientSignup struct {
	Name             string
	Age              int
	Email            string
	Phone            string
	Password         string
	ProfilePic       *string
	HistoryOfSurgery *string
	HistoryOfIllness *string
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  Actor  `json:"user"`
}

// Consultations

type Consultation struct {
	ID                    uuid.UUID     `json:"id"`
	PatientID             uuid.UUID     `json:"patientId"`
	DoctorID              uuid.UUID     `json:"doctorId"`
	CurrentIllnessHistory string        `json:"currentIllnessHistory"`
	RecentSurgery         *string       `json:"recentSurgery"`
	IsDiabetic            bool          `json:"isDiabetic"`
	Allergies             *string       `json:"allergies"`
	Others                *string       `json:"others"`
	TransactionID         string        `json:"transactionId"`
	CreatedAt             time.Time     `json:"createdAt"`
	Prescription          *Prescription `json:"prescription"`
}

type CreateConsultationRequest struct {
	DoctorID              string  `json:"doctorId"`
	CurrentIllnessHistory string  `json:"currentIllnessHistory"`
	RecentSurgery         *string `json:"recentSurgery,omitempty"`
	IsDiabetic            *bool   `json:"isDiabetic"`
	Allergies             *string `json:"allergies,omitempty"`
	Others                *string `json:"others,omitempty"`
	TransactionID         string  `json:"transactionId"`
}

type ConsultationDoctor struct {
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
}

type ConsultationPatient struct {
	Name             string  `json:"name"`
	Age              int     `json:"age"`
	Email            string  `json:"email"`
	Phone            string  `json:"phone"`
	HistoryOfSurgery *string `json:"historyOfSurgery"`
	HistoryOfIllness *string `json:"historyOfIllness"`
}

// PatientConsultation is a consultation as listed for its patient.
type PatientConsultation struct {
	Consultation
	Doctor ConsultationDoctor `json:"doctor"`
}

// DoctorConsultation is a consultation as listed for its doctor.
type DoctorConsultation struct {
	Consultation
	Patient ConsultationPatient `json:"patient"`
}

// ConsultationParties is what a prescription document needs to know about
// its consultation.
type ConsultationParties struct {
	ConsultationID  uuid.UUID
	DoctorID        uuid.UUID
	DoctorName      string
	DoctorSpecialty string
	PatientID       uuid.UUID
	PatientName     string
	PatientAge      int
}

// Prescriptions

type Prescription struct {
	ID             uuid.UUID `json:"id"`
	ConsultationID uuid.UUID `json:"consultationId"`
	CareToBeTaken  string    `json:"careToBeTaken"`
	Medicines      string    `json:"medicines"`
	PDFURL         *string   `json:"pdfUrl"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type UpsertPrescriptionRequest struct {
	ConsultationID string `json:"consultationId"`
	CareToBeTaken  string `json:"careToBeTaken"`
	Medicines      string `json:"medicines"`
}

// Event bus

const (
	EventActorRegistered     = "actor.registered"
	EventConsultationCreated = "consultation.created"
	EventPrescriptionIssued  = "prescription.issued"
)

type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

type AuditLog struct {
	ID        uuid.UUID              `json:"id"`
	EventID   string                 `json:"eventId"`
	ActorID   *uuid.UUID             `json:"actorId"`
	Role      Role                   `json:"role"`
	Action    string                 `json:"action"`
	Entity    string                 `json:"entity"`
	EntityID  string                 `json:"entityId"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"createdAt"`
}
