// Package model defines the records stored by the application.
//
// The structs double as gorm models: the `gorm` tags describe columns and
// indexes for AutoMigrate, the `json` tags describe the API shape.
package model

import "time"

// User is a registered account.
//
// PasswordHash is a bcrypt hash and never leaves the server. Accounts created
// through GitHub sign-in have an empty hash and a GitHubID instead.
type User struct {
	ID           string    `gorm:"primaryKey;size:20" json:"id"`
	Username     string    `gorm:"size:64;not null;uniqueIndex" json:"username"`
	PasswordHash string    `gorm:"size:255;not null;default:''" json:"-"`
	GitHubID     *int64    `gorm:"column:github_id;uniqueIndex" json:"githubId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasPassword reports whether the account can sign in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}
