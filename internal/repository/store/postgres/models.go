package postgres

import "time"

type userRow struct {
	UserId   string `gorm:"column:user_id;primaryKey;size:64"`
	Username string `gorm:"column:username;size:64;not null"`
}

func (userRow) TableName() string { return "users" }

type movieRow struct {
	MovieId int    `gorm:"column:movie_id;primaryKey;autoIncrement"`
	Title   string `gorm:"column:title;size:256;not null"`
	Path    string `gorm:"column:path;not null"`
}

func (movieRow) TableName() string { return "movies" }

type accessCodeRow struct {
	CodeId    string    `gorm:"column:code_id;primaryKey;size:10"`
	MovieId   int       `gorm:"column:movie_id;index;not null"`
	UserId    string    `gorm:"column:user_id;index;size:64;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
}

func (accessCodeRow) TableName() string { return "access_codes" }
