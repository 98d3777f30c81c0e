package repository

import (
	"context"
	"fmt"
	"sync"
	"triage_service/internal/domain"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

type memoryPatientRepository struct {
	mu       sync.RWMutex
	patients map[string]domain.PatientInfo
	log      *logrus.Logger
}

func NewMemoryPatientRepository(logger *logrus.Logger) domain.PatientRepository {
	return &memoryPatientRepository{
		patients: make(map[string]domain.PatientInfo),
		log:      logger,
	}
}

func (r *memoryPatientRepository) Get(_ context.Context, idNumber string) (*domain.PatientInfo, error) {
	r.mu.RLock()
	p, ok := r.patients[idNumber]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("patient %s: %w", idNumber, domain.ErrNotFound)
	}
	return &p, nil
}

// Put replaces whatever was stored under the same ID number.
func (r *memoryPatientRepository) Put(_ context.Context, patient *domain.PatientInfo) error {
	if patient.IDNumber == "" {
		return fmt.Errorf("patient id number cannot be empty")
	}
	r.mu.Lock()
	r.patients[patient.IDNumber] = *patient
	r.mu.Unlock()
	r.log.Debugf("Repository: Patient %s stored for owner %s", patient.IDNumber, patient.OwnerUserID)
	return nil
}

func (r *memoryPatientRepository) QueryByOwner(_ context.Context, ownerUserID string) ([]domain.PatientInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Filter(lo.Values(r.patients), func(p domain.PatientInfo, _ int) bool {
		return p.OwnerUserID == ownerUserID
	}), nil
}
