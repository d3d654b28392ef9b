package pending

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-purge/internal/models"
)

var (
	// ErrNoPendingOperation means the requester has nothing waiting for confirmation
	ErrNoPendingOperation = errors.New("no pending operation")
	// ErrExpired means the pending operation outlived its TTL and was discarded
	ErrExpired = errors.New("pending operation expired")
	// ErrReplaced means the confirmation names a request that a newer one replaced
	ErrReplaced = errors.New("pending operation was replaced by a newer request")
)

// DefaultTTL is how long a purge request can wait for confirmation
const DefaultTTL = 300 * time.Second

// Store keeps at most one pending purge per requester. Expiry is checked when
// the entry is next accessed; there is no background sweep.
type Store struct {
	ttl     time.Duration
	entries map[string]*models.PendingClear
	mu      sync.Mutex
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:     ttl,
		entries: make(map[string]*models.PendingClear),
	}
}

// TTL returns the confirmation window
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Truncate returns the first floor(len*percentage/100) refs when percentage < 100
func Truncate(matches []models.MessageRef, percentage int) []models.MessageRef {
	if percentage >= 100 {
		return matches
	}
	if percentage <= 0 {
		return matches[:0]
	}
	return matches[:len(matches)*percentage/100]
}

// newOperationID is short enough to fit in Telegram's 64-byte callback data
func newOperationID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Open stores a new pending operation for requesterID, replacing any earlier one.
// The match list is truncated to the percentage before it is stored.
func (s *Store) Open(requesterID string, matches []models.MessageRef, searchText string, percentage int, now time.Time) *models.PendingClear {
	kept := Truncate(matches, percentage)
	op := &models.PendingClear{
		ID:          newOperationID(),
		RequesterID: requesterID,
		Matches:     append([]models.MessageRef(nil), kept...),
		SearchText:  searchText,
		Percentage:  percentage,
		CreatedAt:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[requesterID] = op
	return op
}

// Confirm consumes the pending operation and returns its matches
func (s *Store) Confirm(requesterID string, now time.Time) ([]models.MessageRef, error) {
	op, err := s.Claim(requesterID, "", now)
	if err != nil {
		return nil, err
	}
	return op.Matches, nil
}

// Claim consumes the pending operation if its ID is opID, or whatever is
// pending when opID is empty. A mismatched ID leaves the newer entry in place.
func (s *Store) Claim(requesterID, opID string, now time.Time) (models.PendingClear, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.entries[requesterID]
	if !ok {
		return models.PendingClear{}, ErrNoPendingOperation
	}
	if opID != "" && op.ID != opID {
		return models.PendingClear{}, ErrReplaced
	}
	delete(s.entries, requesterID)

	if op.IsExpired(now, s.ttl) {
		return models.PendingClear{}, ErrExpired
	}
	return *op, nil
}

// Cancel discards the pending operation without returning it
func (s *Store) Cancel(requesterID string) error {
	return s.Discard(requesterID, "")
}

// Discard removes the pending operation if its ID is opID, or whatever is
// pending when opID is empty
func (s *Store) Discard(requesterID, opID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.entries[requesterID]
	if !ok {
		return ErrNoPendingOperation
	}
	if opID != "" && op.ID != opID {
		return ErrReplaced
	}
	delete(s.entries, requesterID)
	return nil
}

// Peek returns a copy of the pending operation without consuming it.
// Expired entries are reported as ErrExpired but left for Confirm to discard.
func (s *Store) Peek(requesterID string, now time.Time) (models.PendingClear, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.entries[requesterID]
	if !ok {
		return models.PendingClear{}, ErrNoPendingOperation
	}
	if op.IsExpired(now, s.ttl) {
		return models.PendingClear{}, ErrExpired
	}
	return *op, nil
}

// Len returns the number of stored entries, expired ones included
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
