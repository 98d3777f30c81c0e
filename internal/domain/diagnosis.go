package domain

import (
	"context"
	"time"
)

type Disease string

const (
	DiseasePsoriasis Disease = "psoriasis"
	DiseaseEczema    Disease = "eczema"
	DiseaseUnknown   Disease = "unknown"
)

type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

type DiagnosisDetails struct {
	Symptoms        []string `json:"symptoms"`
	Severity        Severity `json:"severity"`
	AffectedAreas   []string `json:"affectedAreas"`
	Recommendations []string `json:"recommendations"`
}

// DiagnosisResult lives only for the duration of a request; it is never
// written to a store.
type DiagnosisResult struct {
	ID         string           `json:"id"`
	UserID     string           `json:"userId,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
	Disease    Disease          `json:"disease"`
	Confidence int              `json:"confidence"`
	Details    DiagnosisDetails `json:"details"`
	ImageURLs  []string         `json:"imageUrls"`
	// AIResponse is the raw model text the result was extracted from.
	AIResponse string `json:"aiResponse,omitempty"`
}

// Image is an upload that already passed type and size checks.
type Image struct {
	Filename string
	MimeType string
	Data     []byte
}

type BatchItem struct {
	Filename string           `json:"filename"`
	Result   *DiagnosisResult `json:"result,omitempty"`
	Err      error            `json:"-"`
}

type DiagnosisUseCase interface {
	Diagnose(ctx context.Context, image Image) (*DiagnosisResult, error)
	BatchDiagnose(ctx context.Context, images []Image) []BatchItem
}

// ImageArchive keeps a copy of an uploaded image and returns where it can
// be fetched from.
type ImageArchive interface {
	Store(ctx context.Context, image Image) (string, error)
}
