// Package mongo provides the MongoDB implementation of the append-only
// audit trail repository.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/multiround-auction/internal/domain/audit"
)

const (
	// AuditCollectionName is the name of the audit trail collection in MongoDB
	AuditCollectionName = "audit_entries"
)

// AuditRepository implements the audit.Repository interface for MongoDB
type AuditRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewAuditRepository creates a new MongoDB audit repository
func NewAuditRepository(logger *slog.Logger, db *mongo.Database) audit.Repository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a new audit entry after checking for duplicates.
// Returns ErrDuplicateEntry if an entry with the same entry ID exists,
// which lets the outbox publisher deliver at-least-once safely.
func (r *AuditRepository) Create(ctx context.Context, entry *audit.Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid audit entry: %w", err)
	}

	collection := r.db.Collection(AuditCollectionName)

	existing, err := r.GetByEntryID(ctx, entry.ID)
	if err != nil && !errors.Is(err, audit.ErrEntryNotFound{}) {
		r.logger.Error("Failed to check for existing audit entry",
			"entry_id", entry.ID.String(),
			"error", err)
		return fmt.Errorf("failed to check for existing audit entry: %w", err)
	}

	if existing != nil {
		return audit.ErrDuplicateEntry{EntryID: entry.ID}
	}

	_, err = collection.InsertOne(ctx, entry)
	if err != nil {
		r.logger.Error("Failed to create audit entry",
			"entry_id", entry.ID.String(),
			"error", err)
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	return nil
}

// GetByEntryID retrieves an audit entry by its entry ID.
// Returns ErrEntryNotFound if no entry exists.
func (r *AuditRepository) GetByEntryID(ctx context.Context, entryID uuid.UUID) (*audit.Entry, error) {
	collection := r.db.Collection(AuditCollectionName)

	filter := bson.M{"entry_id": entryID}
	var entry audit.Entry
	err := collection.FindOne(ctx, filter).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, audit.ErrEntryNotFound{EntryID: entryID}
		}
		r.logger.Error("Failed to get audit entry",
			"entry_id", entryID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get audit entry: %w", err)
	}

	return &entry, nil
}

// ListByUser retrieves paginated audit entries for a user, newest first
func (r *AuditRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*audit.Entry, error) {
	return r.list(ctx, bson.M{"user_id": userID}, limit, offset)
}

// CountByUser counts the total number of audit entries for a user
func (r *AuditRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	collection := r.db.Collection(AuditCollectionName)

	count, err := collection.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		r.logger.Error("Failed to count audit entries",
			"user_id", userID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	return count, nil
}

// ListByAuction retrieves paginated audit entries for an auction, newest first
func (r *AuditRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID, limit, offset int) ([]*audit.Entry, error) {
	return r.list(ctx, bson.M{"auction_id": auctionID}, limit, offset)
}

func (r *AuditRepository) list(ctx context.Context, filter bson.M, limit, offset int) ([]*audit.Entry, error) {
	collection := r.db.Collection(AuditCollectionName)

	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to list audit entries", "error", err)
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*audit.Entry
	if err := cursor.All(ctx, &entries); err != nil {
		r.logger.Error("Failed to decode audit entries", "error", err)
		return nil, fmt.Errorf("failed to decode audit entries: %w", err)
	}

	return entries, nil
}
