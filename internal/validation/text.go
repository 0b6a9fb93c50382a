package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxPostTextLen    = 5000
	MaxCommentTextLen = 10000
)

// NormalizeText trims surrounding whitespace.
func NormalizeText(s string) string {
	return strings.TrimSpace(s)
}

// ValidatePostText checks already-normalized post text. Empty text is allowed
// here because a post may consist of media only.
func ValidatePostText(text string) error {
	if n := utf8.RuneCountInString(text); n > MaxPostTextLen {
		return fmt.Errorf("text too long (max %d characters)", MaxPostTextLen)
	}
	return nil
}

// ValidateCommentText checks already-normalized comment text.
func ValidateCommentText(text string) error {
	if text == "" {
		return fmt.Errorf("comment text is required")
	}
	if n := utf8.RuneCountInString(text); n > MaxCommentTextLen {
		return fmt.Errorf("comment too long (max %d characters)", MaxCommentTextLen)
	}
	return nil
}
