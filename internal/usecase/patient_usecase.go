package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"triage_service/internal/domain"

	"github.com/sirupsen/logrus"
)

const birthDateLayout = "2006-01-02"

type patientUseCase struct {
	repo domain.PatientRepository
	now  func() time.Time
	log  *logrus.Logger
}

func NewPatientUseCase(repo domain.PatientRepository, logger *logrus.Logger) domain.PatientUseCase {
	return &patientUseCase{repo: repo, now: time.Now, log: logger}
}

// Save stamps the caller as owner and replaces any record stored under the
// same ID number, whoever owned it before.
func (uc *patientUseCase) Save(ctx context.Context, session *domain.Session, patient domain.PatientInfo) (*domain.PatientInfo, error) {
	if session.UserID() == "" {
		uc.log.Warn("Use Case: Save patient rejected - no session")
		return nil, domain.ErrUnauthenticated
	}
	patient.IDNumber = strings.ToUpper(strings.TrimSpace(patient.IDNumber))
	if patient.IDNumber == "" {
		uc.log.Warn("Use Case: Save patient rejected - empty ID number")
		return nil, domain.NewValidationError("id number cannot be empty", "idNumber")
	}
	uc.log.Infof("Use Case: Saving patient %s for user %s", patient.IDNumber, session.UserID())

	if strings.TrimSpace(patient.Age) == "" {
		patient.Age = ageFromBirthDate(patient.BirthDate, uc.now())
	}
	now := uc.now().UTC().Truncate(time.Microsecond)
	patient.OwnerUserID = session.UserID()
	patient.LastUpdated = &now

	if err := uc.repo.Put(ctx, &patient); err != nil {
		uc.log.Errorf("Use Case: Failed to store patient %s: %v", patient.IDNumber, err)
		return nil, fmt.Errorf("failed to save patient: %w", err)
	}
	return &patient, nil
}

// GetByIDNumber answers not found both for missing records and for records
// owned by someone else.
func (uc *patientUseCase) GetByIDNumber(ctx context.Context, session *domain.Session, idNumber string) (*domain.PatientInfo, error) {
	if session.UserID() == "" {
		return nil, domain.ErrUnauthenticated
	}
	idNumber = strings.ToUpper(strings.TrimSpace(idNumber))

	p, err := uc.repo.Get(ctx, idNumber)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			uc.log.Debugf("Use Case: Patient %s not found", idNumber)
			return nil, err
		}
		uc.log.Errorf("Use Case: Failed to load patient %s: %v", idNumber, err)
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}
	if p.OwnerUserID != session.UserID() {
		uc.log.Warnf("Use Case: User %s requested patient %s owned by another user", session.UserID(), idNumber)
		return nil, fmt.Errorf("patient %s: %w", idNumber, domain.ErrNotFound)
	}
	return p, nil
}

func (uc *patientUseCase) GetLatestForCurrentUser(ctx context.Context, session *domain.Session) (*domain.PatientInfo, error) {
	list, err := uc.ListForCurrentUser(ctx, session)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("no patient records for user %s: %w", session.UserID(), domain.ErrNotFound)
	}
	return &list[0], nil
}

// ListForCurrentUser returns the caller's records, most recently updated
// first. Records without a timestamp come last.
func (uc *patientUseCase) ListForCurrentUser(ctx context.Context, session *domain.Session) ([]domain.PatientInfo, error) {
	if session.UserID() == "" {
		return nil, domain.ErrUnauthenticated
	}
	list, err := uc.repo.QueryByOwner(ctx, session.UserID())
	if err != nil {
		uc.log.Errorf("Use Case: Failed to list patients for user %s: %v", session.UserID(), err)
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	slices.SortStableFunc(list, func(a, b domain.PatientInfo) int {
		switch {
		case a.LastUpdated == nil && b.LastUpdated == nil:
			return strings.Compare(a.IDNumber, b.IDNumber)
		case a.LastUpdated == nil:
			return 1
		case b.LastUpdated == nil:
			return -1
		}
		return b.LastUpdated.Compare(*a.LastUpdated)
	})
	return list, nil
}

// ageFromBirthDate returns whole years as a string, or "" when the date
// cannot be parsed or lies in the future.
func ageFromBirthDate(birthDate string, now time.Time) string {
	born, err := time.Parse(birthDateLayout, strings.TrimSpace(birthDate))
	if err != nil {
		return ""
	}
	years := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		years--
	}
	if years < 0 {
		return ""
	}
	return strconv.Itoa(years)
}
