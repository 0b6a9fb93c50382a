// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Label is the trust classification attached to a post.
type Label string

const (
	LabelUnverified Label = "unverified"
	LabelSuspect    Label = "suspect"
	LabelMixed      Label = "mixed"
	LabelVerified   Label = "verified"
)

// Valid reports whether l is one of the four known labels.
func (l Label) Valid() bool {
	switch l {
	case LabelUnverified, LabelSuspect, LabelMixed, LabelVerified:
		return true
	}
	return false
}

// Post represents an authored feed entry.
type Post struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AuthorID string    `gorm:"type:text;not null;index" json:"authorId"`
	Text     string    `gorm:"type:text;not null;default:''" json:"text"`
	ImageURL string    `gorm:"type:text" json:"imageUrl,omitempty"`
	VideoURL string    `gorm:"type:text" json:"videoUrl,omitempty"`

	// Upvotes and Flags are hydrated from post_reactions in the relational store
	// and embedded directly in the document store.
	Upvotes []string `gorm:"-" json:"upvotes"`
	Flags   []string `gorm:"-" json:"flags"`

	Comments []Comment `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"comments"`

	FactCheckScore *int  `json:"factCheckScore"`
	FactCheckLabel Label `gorm:"size:16;not null;default:'unverified';index" json:"factCheckLabel"`

	// ScoreAttemptedAt is the last time the classifier looked at the post;
	// nil means never.
	ScoreAttemptedAt *time.Time `gorm:"index" json:"-"`

	// Author is resolved at read time from the profile store.
	Author *PublicProfile `gorm:"-" json:"author,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UpvoteCount returns the number of distinct upvoters.
func (p *Post) UpvoteCount() int { return len(p.Upvotes) }

// FlagCount returns the number of distinct flaggers.
func (p *Post) FlagCount() int { return len(p.Flags) }

// ReactionKind distinguishes the two independent membership sets on a post.
type ReactionKind string

const (
	ReactionUpvote ReactionKind = "upvote"
	ReactionFlag   ReactionKind = "flag"
)

// Valid reports whether k is a known reaction kind.
func (k ReactionKind) Valid() bool {
	return k == ReactionUpvote || k == ReactionFlag
}

// Reaction is one member of a post's upvote or flag set. The composite primary
// key makes membership idempotent.
type Reaction struct {
	PostID    uuid.UUID    `gorm:"type:uuid;primaryKey" json:"postId"`
	UserID    string       `gorm:"primaryKey;type:text" json:"userId"`
	Kind      ReactionKind `gorm:"primaryKey;size:16" json:"kind"`
	CreatedAt time.Time    `json:"createdAt"`
}

// TableName pins the reactions table name.
func (Reaction) TableName() string { return "post_reactions" }
