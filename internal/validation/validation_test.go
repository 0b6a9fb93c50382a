package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAttachment(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		field   string
		file    FileMeta
		wantErr bool
	}{
		{"JPEG image", FieldImage, FileMeta{"a.jpg", "image/jpeg", 1024}, false},
		{"legacy jpg mime", FieldImage, FileMeta{"a.jpg", "image/jpg", 1024}, false},
		{"PNG with params", FieldImage, FileMeta{"a.png", "Image/PNG; charset=binary", 1024}, false},
		{"MP4 video", FieldVideo, FileMeta{"v.mp4", "video/mp4", 10 << 20}, false},
		{"MPEG video", FieldVideo, FileMeta{"v.mpg", "video/mpeg", 1}, false},
		{"exactly max size", FieldVideo, FileMeta{"v.mp4", "video/mp4", MaxUploadBytes}, false},
		{"over max size", FieldVideo, FileMeta{"v.mp4", "video/mp4", MaxUploadBytes + 1}, true},
		{"gif rejected", FieldImage, FileMeta{"a.gif", "image/gif", 10}, true},
		{"pdf rejected", FieldImage, FileMeta{"a.pdf", "application/pdf", 10}, true},
		{"video in image field", FieldImage, FileMeta{"v.mp4", "video/mp4", 10}, true},
		{"image in video field", FieldVideo, FileMeta{"a.png", "image/png", 10}, true},
		{"empty file", FieldImage, FileMeta{"a.png", "image/png", 0}, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateAttachment(tt.field, tt.file)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAttachmentCounts(t *testing.T) {
	assert.NoError(t, ValidateAttachmentCounts(0, 0))
	assert.NoError(t, ValidateAttachmentCounts(3, 1))
	assert.Error(t, ValidateAttachmentCounts(4, 0))
	assert.Error(t, ValidateAttachmentCounts(1, 2))
}

func TestValidateText(t *testing.T) {
	assert.NoError(t, ValidatePostText(""))
	assert.NoError(t, ValidatePostText(strings.Repeat("é", MaxPostTextLen)))
	assert.Error(t, ValidatePostText(strings.Repeat("a", MaxPostTextLen+1)))

	assert.Error(t, ValidateCommentText(NormalizeText("   \n\t ")))
	assert.NoError(t, ValidateCommentText(NormalizeText("  nice  ")))
	assert.Error(t, ValidateCommentText(strings.Repeat("a", MaxCommentTextLen+1)))
}
