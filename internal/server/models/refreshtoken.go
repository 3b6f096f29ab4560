package models

import "time"

type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	Expires   time.Time
	Revoked   bool
	CreatedAt time.Time
}

// UsableAt reports whether the record may still be rotated at now.
func (r *RefreshToken) UsableAt(now time.Time) bool {
	return !r.Revoked && now.Before(r.Expires)
}
