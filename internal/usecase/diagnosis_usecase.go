package usecase

import (
	"context"
	"fmt"
	"time"
	"triage_service/internal/clients"
	"triage_service/internal/domain"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultBatchLimit = 4

type diagnosisUseCase struct {
	vision     clients.VisionClient
	archive    domain.ImageArchive
	batchLimit int
	now        func() time.Time
	log        *logrus.Logger
}

// NewDiagnosisUseCase wires the vision client to the parser. archive may be
// nil, in which case images are not kept and imageUrls stays empty.
func NewDiagnosisUseCase(vision clients.VisionClient, archive domain.ImageArchive, batchLimit int, logger *logrus.Logger) domain.DiagnosisUseCase {
	if batchLimit < 1 {
		batchLimit = defaultBatchLimit
	}
	return &diagnosisUseCase{
		vision:     vision,
		archive:    archive,
		batchLimit: batchLimit,
		now:        time.Now,
		log:        logger,
	}
}

func (uc *diagnosisUseCase) Diagnose(ctx context.Context, image domain.Image) (*domain.DiagnosisResult, error) {
	uc.log.Infof("Use Case: Diagnosing image %s (%s, %d bytes)", image.Filename, image.MimeType, len(image.Data))

	imageURLs := uc.archiveImage(ctx, image)

	text, err := uc.vision.AnalyzeImage(ctx, image)
	if err != nil {
		uc.log.Errorf("Use Case: Vision request for %s failed: %v", image.Filename, err)
		return nil, fmt.Errorf("failed to analyze image %s: %w", image.Filename, err)
	}

	result := ParseDiagnosis(text)
	result.ID = uuid.NewString()
	result.Timestamp = uc.now().UTC()
	result.ImageURLs = imageURLs

	uc.log.Infof("Use Case: Image %s diagnosed as %s (confidence %d, severity %s)",
		image.Filename, result.Disease, result.Confidence, result.Details.Severity)
	return &result, nil
}

// BatchDiagnose runs at most batchLimit diagnoses at a time. Items fail
// independently; the returned slice has one entry per input, in order.
func (uc *diagnosisUseCase) BatchDiagnose(ctx context.Context, images []domain.Image) []domain.BatchItem {
	uc.log.Infof("Use Case: Batch diagnosis of %d images", len(images))
	items := make([]domain.BatchItem, len(images))

	var g errgroup.Group
	g.SetLimit(uc.batchLimit)
	for i, img := range images {
		items[i].Filename = img.Filename
		g.Go(func() error {
			res, err := uc.Diagnose(ctx, img)
			items[i].Result = res
			items[i].Err = err
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, it := range items {
		if it.Err != nil {
			failed++
		}
	}
	uc.log.Infof("Use Case: Batch diagnosis finished, %d succeeded, %d failed", len(items)-failed, failed)
	return items
}

func (uc *diagnosisUseCase) archiveImage(ctx context.Context, image domain.Image) []string {
	if uc.archive == nil {
		return []string{}
	}
	url, err := uc.archive.Store(ctx, image)
	if err != nil {
		uc.log.Warnf("Use Case: Failed to archive image %s, continuing without it: %v", image.Filename, err)
		return []string{}
	}
	return []string{url}
}
