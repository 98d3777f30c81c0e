package delivery

import (
	"errors"
	"net/http"
	"triage_service/internal/domain"
	"triage_service/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type PatientHandler struct {
	patients domain.PatientUseCase
	log      *logrus.Logger
}

func NewPatientHandler(patients domain.PatientUseCase, logger *logrus.Logger) *PatientHandler {
	return &PatientHandler{patients: patients, log: logger}
}

// PatientRequest is the intake form. Only name and ID number are required.
type PatientRequest struct {
	IDNumber          string `json:"idNumber" binding:"required,cn_id_number"`
	Name              string `json:"name" binding:"required"`
	BirthDate         string `json:"birthDate" binding:"omitempty,datetime=2006-01-02"`
	Age               string `json:"age"`
	Gender            string `json:"gender" binding:"omitempty,oneof=male female other 男 女"`
	MaritalStatus     string `json:"maritalStatus"`
	Occupation        string `json:"occupation"`
	Phone             string `json:"phone" binding:"omitempty,cn_mobile"`
	EmergencyContact  string `json:"emergencyContact"`
	EmergencyPhone    string `json:"emergencyPhone" binding:"omitempty,cn_mobile"`
	Address           string `json:"address"`
	BloodType         string `json:"bloodType"`
	AllergyHistory    string `json:"allergyHistory"`
	FamilyHistory     string `json:"familyHistory"`
	MedicalHistory    string `json:"medicalHistory"`
	ChiefComplaint    string `json:"chiefComplaint"`
	PresentIllness    string `json:"presentIllness"`
	MedicationHistory string `json:"medicationHistory"`
	Lifestyle         string `json:"lifestyle"`
}

func (r PatientRequest) toDomain() domain.PatientInfo {
	return domain.PatientInfo{
		IDNumber:          r.IDNumber,
		Name:              r.Name,
		BirthDate:         r.BirthDate,
		Age:               r.Age,
		Gender:            r.Gender,
		MaritalStatus:     r.MaritalStatus,
		Occupation:        r.Occupation,
		Phone:             r.Phone,
		EmergencyContact:  r.EmergencyContact,
		EmergencyPhone:    r.EmergencyPhone,
		Address:           r.Address,
		BloodType:         r.BloodType,
		AllergyHistory:    r.AllergyHistory,
		FamilyHistory:     r.FamilyHistory,
		MedicalHistory:    r.MedicalHistory,
		ChiefComplaint:    r.ChiefComplaint,
		PresentIllness:    r.PresentIllness,
		MedicationHistory: r.MedicationHistory,
		Lifestyle:         r.Lifestyle,
	}
}

// SaveResult reports a save as a value; a failed save is still a 200 unless
// the request itself was unusable.
type SaveResult struct {
	Success bool                `json:"success"`
	Patient *domain.PatientInfo `json:"patient,omitempty"`
	Error   string              `json:"error,omitempty"`
}

func (h *PatientHandler) RegisterRoutes(router gin.IRouter, requireSession gin.HandlerFunc) {
	patients := router.Group("/patients", requireSession)
	{
		patients.POST("", h.Save)
		patients.GET("", h.List)
		patients.GET("/latest", h.Latest)
		patients.GET("/:idNumber", h.GetByIDNumber)
	}
}

func (h *PatientHandler) Save(c *gin.Context) {
	handlerLogger := h.log.WithField("handler", "SavePatient")
	var req PatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlerLogger.Warnf("Failed to bind patient request: %v", err)
		c.JSON(http.StatusBadRequest, SaveResult{Success: false, Error: "Invalid patient data: " + err.Error()})
		return
	}

	saved, err := h.patients.Save(c.Request.Context(), middleware.SessionFromContext(c), req.toDomain())
	if err != nil {
		handlerLogger.Errorf("Failed to save patient %s: %v", req.IDNumber, err)
		status := http.StatusOK
		var vErr *domain.ValidationError
		switch {
		case errors.As(err, &vErr):
			status = http.StatusBadRequest
		case errors.Is(err, domain.ErrUnauthenticated):
			status = http.StatusUnauthorized
		}
		c.JSON(status, SaveResult{Success: false, Error: err.Error()})
		return
	}

	handlerLogger.Infof("Patient %s saved", saved.IDNumber)
	c.JSON(http.StatusOK, SaveResult{Success: true, Patient: saved})
}

func (h *PatientHandler) GetByIDNumber(c *gin.Context) {
	handlerLogger := h.log.WithField("handler", "GetPatient")
	idNumber := c.Param("idNumber")
	if !idNumberPattern.MatchString(idNumber) {
		badRequest(c, handlerLogger, "Invalid ID number format", nil)
		return
	}

	p, err := h.patients.GetByIDNumber(c.Request.Context(), middleware.SessionFromContext(c), idNumber)
	if err != nil {
		respondError(c, handlerLogger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PatientHandler) Latest(c *gin.Context) {
	handlerLogger := h.log.WithField("handler", "LatestPatient")
	p, err := h.patients.GetLatestForCurrentUser(c.Request.Context(), middleware.SessionFromContext(c))
	if err != nil {
		respondError(c, handlerLogger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PatientHandler) List(c *gin.Context) {
	handlerLogger := h.log.WithField("handler", "ListPatients")
	list, err := h.patients.ListForCurrentUser(c.Request.Context(), middleware.SessionFromContext(c))
	if err != nil {
		respondError(c, handlerLogger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"patients": list, "count": len(list)})
}
