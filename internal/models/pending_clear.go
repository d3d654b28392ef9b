package models

import "time"

// PendingClear is a purge request waiting for its requester to confirm it.
// Matches is already truncated to the requested percentage. ID changes with
// every new request, so a confirmation can name the request it approves.
type PendingClear struct {
	ID          string
	RequesterID string
	Matches     []MessageRef
	SearchText  string
	Percentage  int
	CreatedAt   time.Time
}

// ExpiresAt returns the moment after which the operation can no longer be confirmed
func (p *PendingClear) ExpiresAt(ttl time.Duration) time.Time {
	return p.CreatedAt.Add(ttl)
}

// IsExpired reports whether more than ttl has elapsed since creation
func (p *PendingClear) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.CreatedAt) > ttl
}
