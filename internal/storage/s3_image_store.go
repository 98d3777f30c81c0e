package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
	"triage_service/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3ImageStore archives uploaded lesion images under
// <prefix>/YYYY/MM/DD/<uuid><ext> and identifies them as s3://bucket/key.
type S3ImageStore struct {
	client objectPutter
	bucket string
	prefix string
	now    func() time.Time
	log    *logrus.Logger
}

// NewS3Client builds a client from the default AWS credential chain.
// Path-style addressing keeps S3-compatible endpoints such as MinIO working.
func NewS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	return s3.New(s3.Options{
		Region:       cfg.Region,
		Credentials:  cfg.Credentials,
		HTTPClient:   cfg.HTTPClient,
		BaseEndpoint: cfg.BaseEndpoint,
		UsePathStyle: true,
	}), nil
}

func NewS3ImageStore(client objectPutter, bucket, prefix string, logger *logrus.Logger) *S3ImageStore {
	return &S3ImageStore{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
		log:    logger,
	}
}

func (s *S3ImageStore) Store(ctx context.Context, image domain.Image) (string, error) {
	key := s.keyFor(image)
	contentType := image.MimeType
	if contentType == "" {
		contentType = mimetype.Detect(image.Data).String()
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(image.Data),
		ContentLength: aws.Int64(int64(len(image.Data))),
		ContentType:   aws.String(contentType),
		ACL:           types.ObjectCannedACLPrivate,
		// user metadata must be US-ASCII
		Metadata: map[string]string{"original-filename": url.QueryEscape(image.Filename)},
	})
	if err != nil {
		s.log.Errorf("Storage: Failed to put %s to bucket %s: %v", key, s.bucket, err)
		return "", fmt.Errorf("failed to upload image to s3: %w", err)
	}

	location := fmt.Sprintf("s3://%s/%s", s.bucket, key)
	s.log.Infof("Storage: Archived image %s as %s", image.Filename, location)
	return location, nil
}

func (s *S3ImageStore) keyFor(image domain.Image) string {
	ext := path.Ext(image.Filename)
	if m := mimetype.Lookup(image.MimeType); m != nil && m.Extension() != "" {
		ext = m.Extension()
	}
	return path.Join(s.prefix, s.now().UTC().Format("2006/01/02"), uuid.NewString()+strings.ToLower(ext))
}
