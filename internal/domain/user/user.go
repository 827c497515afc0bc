package user

import "time"

type User struct {
	ID           int64
	Username     string
	PasswordHash []byte
	Admin        bool
	CreatedAt    time.Time
}

// CanEdit reports whether u may modify a record owned by ownerID.
func (u User) CanEdit(ownerID int64) bool {
	return u.Admin || (u.ID != 0 && u.ID == ownerID)
}
