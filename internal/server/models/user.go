package models

import "time"

type User struct {
	ID           string
	UserName     string
	Email        string
	PasswordHash []byte
	MobileNumber *string
	Roles        []string
	CreatedAt    time.Time
}
