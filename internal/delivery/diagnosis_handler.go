package delivery

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
	"triage_service/internal/domain"
	"triage_service/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	maxBatchImages       = 10
	defaultMaxImageBytes = 10 << 20
)

type DiagnosisHandler struct {
	diagnosis     domain.DiagnosisUseCase
	apiKeySet     bool
	maxImageBytes int64
	log           *logrus.Logger
}

func NewDiagnosisHandler(diagnosis domain.DiagnosisUseCase, apiKeySet bool, maxImageBytes int64, logger *logrus.Logger) *DiagnosisHandler {
	if maxImageBytes <= 0 {
		maxImageBytes = defaultMaxImageBytes
	}
	return &DiagnosisHandler{
		diagnosis:     diagnosis,
		apiKeySet:     apiKeySet,
		maxImageBytes: maxImageBytes,
		log:           logger,
	}
}

// DiagnosisResponse keeps the flat fields older clients read and adds the
// structured result.
type DiagnosisResponse struct {
	Disease    domain.Disease          `json:"disease"`
	Confidence int                     `json:"confidence"`
	AIResponse string                  `json:"aiResponse"`
	Timestamp  string                  `json:"timestamp"`
	Result     *domain.DiagnosisResult `json:"result"`
}

type BatchItemResponse struct {
	Filename string                  `json:"filename"`
	Status   int                     `json:"status"`
	Result   *domain.DiagnosisResult `json:"result,omitempty"`
	Error    *ErrorResponse          `json:"error,omitempty"`
}

func (h *DiagnosisHandler) RegisterRoutes(router gin.IRouter) {
	diagnosis := router.Group("/diagnosis")
	{
		diagnosis.POST("/image", h.DiagnoseImage)
		diagnosis.POST("/batch", h.DiagnoseBatch)
	}
}

func (h *DiagnosisHandler) DiagnoseImage(c *gin.Context) {
	handlerLogger := h.log.WithField("handler", "DiagnoseImage")

	fh, err := c.FormFile("image")
	if err != nil {
		handlerLogger.Warnf("No image in request: %v", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No image file provided"})
		return
	}
	if !h.apiKeySet {
		handlerLogger.Error("Deepseek API key not configured")
		respondError(c, handlerLogger, domain.ErrNotConfigured)
		return
	}

	image, err := h.readImage(fh)
	if err != nil {
		respondError(c, handlerLogger, err)
		return
	}

	result, err := h.diagnosis.Diagnose(c.Request.Context(), image)
	if err != nil {
		respondError(c, handlerLogger, err)
		return
	}
	result.UserID = c.PostForm("userId")

	handlerLogger.Infof("Diagnosis %s for %s: %s (%d%%)", result.ID, image.Filename, result.Disease, result.Confidence)
	c.JSON(http.StatusOK, DiagnosisResponse{
		Disease:    result.Disease,
		Confidence: result.Confidence,
		AIResponse: result.AIResponse,
		Timestamp:  result.Timestamp.Format(time.RFC3339Nano),
		Result:     result,
	})
}

// DiagnoseBatch accepts several files under "images". Each file gets its
// own status; the request as a whole succeeds when it was well formed.
func (h *DiagnosisHandler) DiagnoseBatch(c *gin.Context) {
	handlerLogger := h.log.WithField("handler", "DiagnoseBatch")

	form, err := c.MultipartForm()
	if err != nil || len(form.File["images"]) == 0 {
		handlerLogger.Warnf("No images in batch request: %v", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No image files provided"})
		return
	}
	files := form.File["images"]
	if len(files) > maxBatchImages {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("At most %d images per batch", maxBatchImages)})
		return
	}
	if !h.apiKeySet {
		respondError(c, handlerLogger, domain.ErrNotConfigured)
		return
	}

	userID := c.PostForm("userId")
	out := make([]BatchItemResponse, len(files))
	var images []domain.Image
	var slots []int
	for i, fh := range files {
		out[i].Filename = fh.Filename
		image, err := h.readImage(fh)
		if err != nil {
			out[i].fail(err)
			continue
		}
		images = append(images, image)
		slots = append(slots, i)
	}

	for j, item := range h.diagnosis.BatchDiagnose(c.Request.Context(), images) {
		i := slots[j]
		if item.Err != nil {
			handlerLogger.Warnf("Batch item %s failed: %v", item.Filename, item.Err)
			out[i].fail(item.Err)
			continue
		}
		item.Result.UserID = userID
		out[i].Status = http.StatusOK
		out[i].Result = item.Result
	}

	c.JSON(http.StatusOK, gin.H{"results": out})
}

func (r *BatchItemResponse) fail(err error) {
	_, code, resp := httpError(err)
	r.Status = code
	r.Error = &resp
}

func (h *DiagnosisHandler) readImage(fh *multipart.FileHeader) (domain.Image, error) {
	if h.maxImageBytes > 0 && fh.Size > h.maxImageBytes {
		return domain.Image{}, domain.NewValidationError(
			fmt.Sprintf("image exceeds %d bytes", h.maxImageBytes), "image")
	}
	f, err := fh.Open()
	if err != nil {
		return domain.Image{}, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxImageBytes+1))
	if err != nil {
		return domain.Image{}, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err)
	}
	return usecase.PrepareImage(fh.Filename, data, fh.Header.Get("Content-Type"), h.maxImageBytes)
}
