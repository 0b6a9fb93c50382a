package media

import (
	"context"
	"fmt"

	"veritas/internal/models"
	"veritas/internal/observability"

	"golang.org/x/sync/errgroup"
)

// Uploaded holds the URLs that made it to the store. A failed kind leaves
// its URL empty.
type Uploaded struct {
	ImageURL string
	VideoURL string
}

// Attacher uploads the attachments of a post.
type Attacher struct {
	uploader Uploader
}

// NewAttacher wraps an Uploader.
func NewAttacher(u Uploader) *Attacher {
	return &Attacher{uploader: u}
}

// UploadAll stores the first image and the first video concurrently. Each
// kind fails independently; failures are logged and never returned.
func (a *Attacher) UploadAll(ctx context.Context, att Attachments) Uploaded {
	var out Uploaded
	if a == nil || a.uploader == nil || att.Empty() {
		return out
	}

	var g errgroup.Group
	if len(att.Images) > 0 {
		g.Go(func() error {
			out.ImageURL = a.uploadOne(ctx, "image", ImageFolder, att.Images[0])
			return nil
		})
	}
	if len(att.Videos) > 0 {
		g.Go(func() error {
			out.VideoURL = a.uploadOne(ctx, "video", VideoFolder, att.Videos[0])
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (a *Attacher) uploadOne(ctx context.Context, kind, folder string, f File) string {
	url, err := a.store(ctx, folder, f)
	if err != nil {
		observability.MediaUploads.WithLabelValues(kind, "failed").Inc()
		observability.LogDegraded(ctx, "media.upload", models.NewUploadError(err), map[string]any{
			"kind": kind,
			"file": f.Name,
		})
		return ""
	}
	observability.MediaUploads.WithLabelValues(kind, "stored").Inc()
	return url
}

func (a *Attacher) store(ctx context.Context, folder string, f File) (string, error) {
	if f.Open == nil {
		return "", fmt.Errorf("attachment %q has no content", f.Name)
	}
	body, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open %q: %w", f.Name, err)
	}
	defer body.Close()

	return a.uploader.Upload(ctx, Object{
		Body:        body,
		Name:        f.Name,
		Folder:      folder,
		ContentType: f.ContentType,
		Size:        f.Size,
	})
}
