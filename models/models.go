package models

import "time"

// Account is a registered identity, independent of any live connection.
type Account struct {
	ID       int64
	Username string
	Password string // bcrypt digest, never plaintext
	Online   bool
	LastSeen time.Time
}
