package auth

import (
	"time"

	"github.com/crewdesk/crewdesk/internal/capabilities"
)

// User represents a staff account that can sign in.
type User struct {
	UID          string
	Email        string
	DisplayName  string
	PasswordHash string
	Caps         capabilities.Set
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
