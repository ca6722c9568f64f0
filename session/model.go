package session

import "time"

// Record defines a public type used by authcore APIs.
//
// Record instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Record struct {
	SessionID   string    `json:"session_id"`
	PrincipalID string    `json:"principal_id"`
	Role        string    `json:"role"`
	Origin      string    `json:"origin,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}
