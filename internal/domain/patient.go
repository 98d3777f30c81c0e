package domain

import (
	"context"
	"time"
)

// PatientInfo is an intake record keyed by the 18-character national ID.
type PatientInfo struct {
	IDNumber          string     `json:"idNumber"`
	Name              string     `json:"name"`
	BirthDate         string     `json:"birthDate"`
	Age               string     `json:"age"`
	Gender            string     `json:"gender"`
	MaritalStatus     string     `json:"maritalStatus"`
	Occupation        string     `json:"occupation"`
	Phone             string     `json:"phone"`
	EmergencyContact  string     `json:"emergencyContact"`
	EmergencyPhone    string     `json:"emergencyPhone"`
	Address           string     `json:"address"`
	BloodType         string     `json:"bloodType"`
	AllergyHistory    string     `json:"allergyHistory"`
	FamilyHistory     string     `json:"familyHistory"`
	MedicalHistory    string     `json:"medicalHistory"`
	ChiefComplaint    string     `json:"chiefComplaint"`
	PresentIllness    string     `json:"presentIllness"`
	MedicationHistory string     `json:"medicationHistory"`
	Lifestyle         string     `json:"lifestyle"`
	OwnerUserID       string     `json:"userId,omitempty"`
	LastUpdated       *time.Time `json:"lastUpdated,omitempty"`
}

type PatientRepository interface {
	Get(ctx context.Context, idNumber string) (*PatientInfo, error)
	Put(ctx context.Context, patient *PatientInfo) error
	QueryByOwner(ctx context.Context, ownerUserID string) ([]PatientInfo, error)
}

type PatientUseCase interface {
	Save(ctx context.Context, session *Session, patient PatientInfo) (*PatientInfo, error)
	GetByIDNumber(ctx context.Context, session *Session, idNumber string) (*PatientInfo, error)
	GetLatestForCurrentUser(ctx context.Context, session *Session) (*PatientInfo, error)
	ListForCurrentUser(ctx context.Context, session *Session) ([]PatientInfo, error)
}
