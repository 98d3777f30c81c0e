package usecase

import (
	"fmt"
	"strings"
	"triage_service/internal/domain"

	"github.com/gabriel-vasile/mimetype"
)

// PrepareImage checks an upload before it is handed to the diagnosis use
// case. The content type is sniffed from the bytes; the declared type is
// only a fallback for formats the sniffer does not know.
func PrepareImage(filename string, data []byte, declaredType string, maxBytes int64) (domain.Image, error) {
	if len(data) == 0 {
		return domain.Image{}, domain.NewValidationError("no image file provided", "image")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return domain.Image{}, domain.NewValidationError(
			fmt.Sprintf("image exceeds %d bytes", maxBytes), "image")
	}

	mimeType := mimetype.Detect(data).String()
	if !strings.HasPrefix(mimeType, "image/") {
		declared := strings.ToLower(strings.TrimSpace(declaredType))
		if mimeType != "application/octet-stream" || !strings.HasPrefix(declared, "image/") {
			return domain.Image{}, domain.NewValidationError(
				fmt.Sprintf("unsupported file type %s, only images are accepted", mimeType), "image")
		}
		mimeType = declared
	}
	// drop parameters such as charset
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	return domain.Image{Filename: filename, MimeType: mimeType, Data: data}, nil
}
