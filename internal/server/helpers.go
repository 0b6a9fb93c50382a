package server

import (
	"errors"
	"io"
	"mime/multipart"
	"strings"

	"veritas/internal/media"
	"veritas/internal/models"
	"veritas/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// Form fields carrying attachments.
const (
	imageField = "image"
	videoField = "video"
)

// parsePostID extracts the :id route parameter as a post UUID.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func parsePostID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid post ID"))
		return uuid.Nil, errResponseWritten
	}
	return id, nil
}

// parsePage reads page and limit, accepting pageSize as an alias for limit.
// Unparsable values fall back to the defaults.
func parsePage(c *fiber.Ctx) (page, pageSize int) {
	page = c.QueryInt("page", 1)
	pageSize = c.QueryInt("limit", 0)
	if pageSize == 0 {
		pageSize = c.QueryInt("pageSize", service.DefaultPageSize)
	}
	return service.NormalizePage(page, pageSize)
}

// parseAttachments collects image and video parts of a multipart request.
// Requests of any other content type carry no attachments.
func parseAttachments(c *fiber.Ctx) (media.Attachments, error) {
	var att media.Attachments
	if !strings.HasPrefix(strings.ToLower(string(c.Request().Header.ContentType())), fiber.MIMEMultipartForm) {
		return att, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return att, models.NewValidationError("Invalid multipart form")
	}
	att.Images = toFiles(form.File[imageField])
	att.Videos = toFiles(form.File[videoField])
	return att, nil
}

func toFiles(headers []*multipart.FileHeader) []media.File {
	files := make([]media.File, 0, len(headers))
	for _, fh := range headers {
		fh := fh
		files = append(files, media.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Size:        fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return files
}

// postView is the transport shape of a post.
type postView struct {
	*models.Post
	UpvoteCount int `json:"upvoteCount"`
	FlagCount   int `json:"flagCount"`
}

func viewOf(p *models.Post) postView {
	return postView{Post: p, UpvoteCount: p.UpvoteCount(), FlagCount: p.FlagCount()}
}

func viewsOf(posts []*models.Post) []postView {
	out := make([]postView, 0, len(posts))
	for _, p := range posts {
		out = append(out, viewOf(p))
	}
	return out
}
