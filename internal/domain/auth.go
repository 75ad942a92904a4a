package domain

import "time"

// Token represents issued access token metadata.
type Token struct {
	Value     string
	SubjectID string
	Roles     []string
	ExpiresAt time.Time
	IssuedAt  time.Time
}
