// Package media stores post attachments and hands back durable URLs.
package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"veritas/internal/validation"

	"github.com/google/uuid"
)

// Destination folders inside the media store.
const (
	ImageFolder = "posts/images"
	VideoFolder = "posts/videos"
)

// Object is one blob to store.
type Object struct {
	Body        io.Reader
	Name        string
	Folder      string
	ContentType string
	Size        int64
}

// Uploader persists an object and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, obj Object) (string, error)
}

// File is an attachment received from a client. Open is deferred so
// rejected requests never read their bodies.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// Attachments groups the files of one post by field.
type Attachments struct {
	Images []File
	Videos []File
}

// Empty reports whether no file was attached.
func (a Attachments) Empty() bool {
	return len(a.Images) == 0 && len(a.Videos) == 0
}

// Validate applies the per-field count limits and per-file constraints.
func (a Attachments) Validate() error {
	if err := validation.ValidateAttachmentCounts(len(a.Images), len(a.Videos)); err != nil {
		return err
	}
	for _, f := range a.Images {
		if err := validation.ValidateAttachment(validation.FieldImage, f.meta()); err != nil {
			return err
		}
	}
	for _, f := range a.Videos {
		if err := validation.ValidateAttachment(validation.FieldVideo, f.meta()); err != nil {
			return err
		}
	}
	return nil
}

func (f File) meta() validation.FileMeta {
	return validation.FileMeta{Name: f.Name, ContentType: f.ContentType, Size: f.Size}
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectKey builds a collision-free key "<folder>/<uuid>-<name>".
func ObjectKey(folder, name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.Trim(unsafeNameChars.ReplaceAllString(base, "-"), "-.")
	if base == "" {
		base = "file"
	}
	if len(base) > 80 {
		base = base[len(base)-80:]
	}
	return fmt.Sprintf("%s/%s-%s", strings.Trim(folder, "/"), uuid.NewString(), base)
}
