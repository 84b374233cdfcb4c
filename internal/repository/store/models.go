package store

import "time"

type User struct {
	Id       string `json:"user_id"`
	Username string `json:"username"`
}

type Movie struct {
	Id    int    `json:"movie_id"`
	Title string `json:"title"`
	Path  string `json:"path"`
}

// AccessCode is stored once and never updated. ExpiresAt is always UTC.
type AccessCode struct {
	Code      string    `json:"code"`
	MovieId   int       `json:"movie_id"`
	UserId    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
