package model

import "time"

// Comment is a reply attached to a Joke.
//
// Username is a plain label copied from the submitted form, not a reference
// to a User row: authorship is not verifiable after the fact.
type Comment struct {
	ID        string    `gorm:"primaryKey;size:20" json:"id"`
	JokeID    string    `gorm:"size:20;not null;index" json:"jokeId"`
	Username  string    `gorm:"size:64;not null" json:"username"`
	Body      string    `gorm:"column:comment;type:text;not null" json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}
