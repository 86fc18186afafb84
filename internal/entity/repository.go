package entity

import "context"

// Repository is the persistent store consumed by the harvester. Every method
// is its own transaction.
type Repository interface {
	ListEntities(ctx context.Context) ([]TrackedEntity, error)
	UpsertEntity(ctx context.Context, code string, marker Marker) error
	// UpdateMarker reports false when no entity with the code exists.
	UpdateMarker(ctx context.Context, code string, marker Marker) (bool, error)
	// InsertRecord ignores a record whose (code, trade date) already exists.
	InsertRecord(ctx context.Context, rec HistoricalRecord) error
	ListRecordsByCode(ctx context.Context, code string) ([]HistoricalRecord, error)
	DeleteRecordsForCodes(ctx context.Context, codes []string) (int64, error)
	DeleteEntitiesWithMarker(ctx context.Context, marker Marker) (int64, error)
}
