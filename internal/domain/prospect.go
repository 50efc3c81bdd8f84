package domain

import "time"

// Prospect is a client's interest in a property, created by lead intake.
type Prospect struct {
	ID         string
	PropertyID string
	CreatedAt  time.Time
}
