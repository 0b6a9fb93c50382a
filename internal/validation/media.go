// Package validation holds input constraints shared by the HTTP layer and services.
package validation

import (
	"fmt"
	"strings"
)

const (
	// MaxUploadBytes caps every individual attachment.
	MaxUploadBytes int64 = 50 << 20
	// MaxImages is the number of files accepted in the image field.
	MaxImages = 3
	// MaxVideos is the number of files accepted in the video field.
	MaxVideos = 1
)

// Attachment fields.
const (
	FieldImage = "image"
	FieldVideo = "video"
)

var allowedMIMEs = map[string]string{
	"image/jpeg": FieldImage,
	"image/jpg":  FieldImage,
	"image/png":  FieldImage,
	"video/mp4":  FieldVideo,
	"video/mpeg": FieldVideo,
}

// FileMeta describes an uploaded file before its bytes are read.
type FileMeta struct {
	Name        string
	ContentType string
	Size        int64
}

// NormalizeMIME strips parameters and case from a Content-Type value.
func NormalizeMIME(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// ValidateAttachment checks one file against the whitelist and size cap and
// that its MIME family matches the field it was sent in.
func ValidateAttachment(field string, f FileMeta) error {
	mime := NormalizeMIME(f.ContentType)
	kind, ok := allowedMIMEs[mime]
	if !ok {
		return fmt.Errorf("invalid file type %q: only JPEG, PNG, MP4 and MPEG are allowed", f.ContentType)
	}
	if kind != field {
		return fmt.Errorf("file %q of type %s cannot be sent as %s", f.Name, mime, field)
	}
	if f.Size <= 0 {
		return fmt.Errorf("file %q is empty", f.Name)
	}
	if f.Size > MaxUploadBytes {
		return fmt.Errorf("file %q exceeds the %d MiB limit", f.Name, MaxUploadBytes>>20)
	}
	return nil
}

// ValidateAttachmentCounts enforces per-field multiplicity.
func ValidateAttachmentCounts(images, videos int) error {
	if images > MaxImages {
		return fmt.Errorf("at most %d images are allowed", MaxImages)
	}
	if videos > MaxVideos {
		return fmt.Errorf("at most %d video is allowed", MaxVideos)
	}
	return nil
}
