package models

import "time"

// User is the read-only projection of accounts owned by the identity provider.
// This service never writes credentials; it only resolves display fields.
type User struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Username  string    `gorm:"size:64;index" json:"username"`
	Name      string    `gorm:"size:128" json:"name"`
	Avatar    string    `gorm:"type:text" json:"avatar"`
	Bio       string    `gorm:"type:text" json:"bio,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// PublicProfile is the subset of a user exposed next to posts and comments.
type PublicProfile struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// Profile projects u onto its public fields.
func (u *User) Profile() PublicProfile {
	return PublicProfile{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}
