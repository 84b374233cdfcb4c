package store

import "time"

type InsertAccessCodeParams struct {
	Code      string
	MovieId   int
	UserId    string
	ExpiresAt time.Time
}

type SetUserParams struct {
	UserId   string
	Username string
}

type SetMovieParams struct {
	MovieId int
	Title   string
	Path    string
}
