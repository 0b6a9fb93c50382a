package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment is an append-only reply attached to a post.
type Comment struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PostID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"-"`
	AuthorID  string         `gorm:"type:text;not null" json:"authorId"`
	Author    *PublicProfile `gorm:"-" json:"author,omitempty"`
	Text      string         `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
}
