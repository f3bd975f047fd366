package auth

import "time"

// Claims representa la información extraída del token.
type Claims struct {
	UserID   string
	Username string
	Email    string
	IsStaff  bool

	ExpiresAt time.Time
}
