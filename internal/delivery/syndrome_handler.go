package delivery

import (
	"net/http"
	"triage_service/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type TreatmentLookup interface {
	List() []domain.Treatment
	Get(syndrome string) (*domain.Treatment, error)
}

type SyndromeHandler struct {
	syndrome   domain.SyndromeUseCase
	treatments TreatmentLookup
	log        *logrus.Logger
}

func NewSyndromeHandler(syndrome domain.SyndromeUseCase, treatments TreatmentLookup, logger *logrus.Logger) *SyndromeHandler {
	return &SyndromeHandler{syndrome: syndrome, treatments: treatments, log: logger}
}

func (h *SyndromeHandler) RegisterRoutes(router gin.IRouter) {
	router.POST("/syndrome/analysis", h.Analyze)

	treatments := router.Group("/treatments")
	{
		treatments.GET("", h.ListTreatments)
		treatments.GET("/:syndrome", h.GetTreatment)
	}
}

func (h *SyndromeHandler) Analyze(c *gin.Context) {
	handlerLogger := h.log.WithField("handler", "AnalyzeSyndrome")
	var form domain.SyndromeForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, handlerLogger, "Invalid request body", err)
		return
	}

	report, err := h.syndrome.Analyze(form)
	if err != nil {
		respondError(c, handlerLogger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *SyndromeHandler) ListTreatments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"treatments": h.treatments.List()})
}

func (h *SyndromeHandler) GetTreatment(c *gin.Context) {
	t, err := h.treatments.Get(c.Param("syndrome"))
	if err != nil {
		respondError(c, h.log.WithField("handler", "GetTreatment"), err)
		return
	}
	c.JSON(http.StatusOK, t)
}
