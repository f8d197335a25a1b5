package audit

import (
	"context"

	"github.com/google/uuid"
)

// Repository manages the append-only audit trail. There are no update or
// delete operations.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	GetByEntryID(ctx context.Context, entryID uuid.UUID) (*Entry, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Entry, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	ListByAuction(ctx context.Context, auctionID uuid.UUID, limit, offset int) ([]*Entry, error)
}

// ErrEntryNotFound indicates a missing audit entry
type ErrEntryNotFound struct {
	EntryID uuid.UUID
}

func (e ErrEntryNotFound) Error() string {
	return "audit entry not found: " + e.EntryID.String()
}

// Is implements the errors.Is interface for ErrEntryNotFound
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	if t.EntryID == uuid.Nil {
		return true
	}
	return e.EntryID == t.EntryID
}

// ErrDuplicateEntry indicates an entry-ID uniqueness violation. The outbox
// publisher treats it as already-delivered.
type ErrDuplicateEntry struct {
	EntryID uuid.UUID
}

func (e ErrDuplicateEntry) Error() string {
	return "duplicate audit entry: " + e.EntryID.String()
}

// Is implements the errors.Is interface for ErrDuplicateEntry
func (e ErrDuplicateEntry) Is(target error) bool {
	t, ok := target.(ErrDuplicateEntry)
	if !ok {
		return false
	}
	if t.EntryID == uuid.Nil {
		return true
	}
	return e.EntryID == t.EntryID
}
