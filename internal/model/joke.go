package model

import "time"

// Joke is a user-authored joke. JokesterID references the owning User; only
// the jokester may delete it.
type Joke struct {
	ID         string    `gorm:"primaryKey;size:20" json:"id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	JokesterID string    `gorm:"size:20;not null;index" json:"jokesterId"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// OwnedBy reports whether userID is the joke's jokester.
func (j *Joke) OwnedBy(userID string) bool {
	return userID != "" && j.JokesterID == userID
}
