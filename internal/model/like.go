package model

import "time"

// LikedJoke records that a user likes a joke. The composite unique index keeps
// at most one row per (user, joke).
type LikedJoke struct {
	ID        string    `gorm:"primaryKey;size:20" json:"id"`
	UserID    string    `gorm:"size:20;not null;uniqueIndex:idx_liked_jokes_user_joke" json:"userId"`
	JokeID    string    `gorm:"size:20;not null;uniqueIndex:idx_liked_jokes_user_joke;index" json:"jokeId"`
	CreatedAt time.Time `json:"createdAt"`
}

// LikeResult is the outcome of a like toggle.
type LikeResult int

const (
	LikeAdded LikeResult = iota + 1
	LikeRemoved
)

func (r LikeResult) String() string {
	switch r {
	case LikeAdded:
		return "added"
	case LikeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}
