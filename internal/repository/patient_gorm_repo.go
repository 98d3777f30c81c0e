package repository

import (
	"context"
	"errors"
	"fmt"
	"time"
	"triage_service/internal/domain"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// patientRecord is the row layout of the patients table.
type patientRecord struct {
	IDNumber          string `gorm:"primaryKey;type:varchar(18)"`
	OwnerUserID       string `gorm:"type:text;index;not null"`
	Name              string `gorm:"type:varchar(200)"`
	BirthDate         string `gorm:"type:varchar(32)"`
	Age               string `gorm:"type:varchar(8)"`
	Gender            string `gorm:"type:varchar(16)"`
	MaritalStatus     string `gorm:"type:varchar(32)"`
	Occupation        string `gorm:"type:varchar(100)"`
	Phone             string `gorm:"type:varchar(20)"`
	EmergencyContact  string `gorm:"type:varchar(200)"`
	EmergencyPhone    string `gorm:"type:varchar(20)"`
	Address           string `gorm:"type:text"`
	BloodType         string `gorm:"type:varchar(8)"`
	AllergyHistory    string `gorm:"type:text"`
	FamilyHistory     string `gorm:"type:text"`
	MedicalHistory    string `gorm:"type:text"`
	ChiefComplaint    string `gorm:"type:text"`
	PresentIllness    string `gorm:"type:text"`
	MedicationHistory string `gorm:"type:text"`
	Lifestyle         string `gorm:"type:text"`
	LastUpdated       *time.Time
}

func (patientRecord) TableName() string { return "patients" }

type gormPatientRepository struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewGormPatientRepository(db *gorm.DB, logger *logrus.Logger) domain.PatientRepository {
	return &gormPatientRepository{
		db:  db,
		log: logger,
	}
}

func MigratePatients(db *gorm.DB) error {
	if err := db.AutoMigrate(&patientRecord{}); err != nil {
		return fmt.Errorf("could not migrate patients table: %w", err)
	}
	return nil
}

func (r *gormPatientRepository) Get(ctx context.Context, idNumber string) (*domain.PatientInfo, error) {
	var rec patientRecord
	err := r.db.WithContext(ctx).Where("id_number = ?", idNumber).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("patient %s: %w", idNumber, domain.ErrNotFound)
		}
		r.log.Errorf("Repository: Failed to get patient %s: %v", idNumber, err)
		return nil, fmt.Errorf("could not get patient: %w", err)
	}
	p := toPatientInfo(rec)
	return &p, nil
}

func (r *gormPatientRepository) Put(ctx context.Context, patient *domain.PatientInfo) error {
	if patient.IDNumber == "" {
		return fmt.Errorf("patient id number cannot be empty")
	}
	rec := fromPatientInfo(*patient)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
	if err != nil {
		r.log.Errorf("Repository: Failed to store patient %s: %v", patient.IDNumber, err)
		return fmt.Errorf("could not store patient: %w", err)
	}
	r.log.Debugf("Repository: Patient %s stored for owner %s", patient.IDNumber, patient.OwnerUserID)
	return nil
}

func (r *gormPatientRepository) QueryByOwner(ctx context.Context, ownerUserID string) ([]domain.PatientInfo, error) {
	var recs []patientRecord
	err := r.db.WithContext(ctx).Where("owner_user_id = ?", ownerUserID).Find(&recs).Error
	if err != nil {
		r.log.Errorf("Repository: Failed to list patients for owner %s: %v", ownerUserID, err)
		return nil, fmt.Errorf("could not list patients: %w", err)
	}
	return lo.Map(recs, func(rec patientRecord, _ int) domain.PatientInfo {
		return toPatientInfo(rec)
	}), nil
}

func toPatientInfo(rec patientRecord) domain.PatientInfo {
	if rec.LastUpdated != nil {
		utc := rec.LastUpdated.UTC()
		rec.LastUpdated = &utc
	}
	return domain.PatientInfo{
		IDNumber:          rec.IDNumber,
		Name:              rec.Name,
		BirthDate:         rec.BirthDate,
		Age:               rec.Age,
		Gender:            rec.Gender,
		MaritalStatus:     rec.MaritalStatus,
		Occupation:        rec.Occupation,
		Phone:             rec.Phone,
		EmergencyContact:  rec.EmergencyContact,
		EmergencyPhone:    rec.EmergencyPhone,
		Address:           rec.Address,
		BloodType:         rec.BloodType,
		AllergyHistory:    rec.AllergyHistory,
		FamilyHistory:     rec.FamilyHistory,
		MedicalHistory:    rec.MedicalHistory,
		ChiefComplaint:    rec.ChiefComplaint,
		PresentIllness:    rec.PresentIllness,
		MedicationHistory: rec.MedicationHistory,
		Lifestyle:         rec.Lifestyle,
		OwnerUserID:       rec.OwnerUserID,
		LastUpdated:       rec.LastUpdated,
	}
}

func fromPatientInfo(p domain.PatientInfo) patientRecord {
	return patientRecord{
		IDNumber:          p.IDNumber,
		OwnerUserID:       p.OwnerUserID,
		Name:              p.Name,
		BirthDate:         p.BirthDate,
		Age:               p.Age,
		Gender:            p.Gender,
		MaritalStatus:     p.MaritalStatus,
		Occupation:        p.Occupation,
		Phone:             p.Phone,
		EmergencyContact:  p.EmergencyContact,
		EmergencyPhone:    p.EmergencyPhone,
		Address:           p.Address,
		BloodType:         p.BloodType,
		AllergyHistory:    p.AllergyHistory,
		FamilyHistory:     p.FamilyHistory,
		MedicalHistory:    p.MedicalHistory,
		ChiefComplaint:    p.ChiefComplaint,
		PresentIllness:    p.PresentIllness,
		MedicationHistory: p.MedicationHistory,
		Lifestyle:         p.Lifestyle,
		LastUpdated:       p.LastUpdated,
	}
}
