package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fleetops/fleet-dashboard/internal/core/domain"
	"github.com/fleetops/fleet-dashboard/internal/core/ports"
)

const historyCollection = "location_history"

// HistoryRepository implements ports.HistoryRepository using MongoDB.
type HistoryRepository struct {
	coll *mongo.Collection
}

func NewHistoryRepository(db *mongo.Database) *HistoryRepository {
	return &HistoryRepository{coll: db.Collection(historyCollection)}
}

type mongoLocationRecord struct {
	DriverID   string             `bson:"driver_id"`
	Location   domain.Coordinates `bson:"location"`
	Source     string             `bson:"source"`
	RecordedAt time.Time          `bson:"recorded_at"`
}

func (r *HistoryRepository) RecordLocation(ctx context.Context, rec ports.LocationRecord) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := mongoLocationRecord{
		DriverID:   rec.DriverID,
		Location:   rec.Location,
		Source:     rec.Source,
		RecordedAt: rec.RecordedAt.UTC(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert location record: %w", err)
	}
	return nil
}

// TrackForDriver returns the driver's most recent records, newest first.
func (r *HistoryRepository) TrackForDriver(ctx context.Context, driverID string, limit int64) ([]ports.LocationRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "recorded_at", Value: -1}}).
		SetLimit(limit)

	cur, err := r.coll.Find(ctx, bson.M{"driver_id": driverID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find location records: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoLocationRecord
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode location records: %w", err)
	}

	out := make([]ports.LocationRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, ports.LocationRecord{
			DriverID:   d.DriverID,
			Location:   d.Location,
			Source:     d.Source,
			RecordedAt: d.RecordedAt,
		})
	}
	return out, nil
}

// EnsureIndexes creates the lookup index on driver id and recency.
func (r *HistoryRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "driver_id", Value: 1}, {Key: "recorded_at", Value: -1}},
	})
	return err
}
