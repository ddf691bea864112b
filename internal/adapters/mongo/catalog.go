package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tablewise/seatcore/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FloorPlanRepository stores table and seat geometry for floor-plan views.
// The layout designer writes here; the hold engine never reads it, so it
// lives apart from the postgres ledger.
type FloorPlanRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewFloorPlanRepository(db *mongo.Database, logger observability.Logger) *FloorPlanRepository {
	return &FloorPlanRepository{
		coll:   db.Collection("floorplans"),
		logger: logger,
	}
}

type TableDoc struct {
	ID        uuid.UUID `bson:"_id" json:"table_id"`
	Venue     string    `bson:"venue" json:"venue"`
	Name      string    `bson:"name" json:"name"`
	Capacity  int       `bson:"capacity" json:"capacity"`
	Seats     []SeatDoc `bson:"seats" json:"seats"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

type SeatDoc struct {
	Number int     `bson:"number" json:"number"`
	X      float64 `bson:"x" json:"x"`
	Y      float64 `bson:"y" json:"y"`
}

func (r *FloorPlanRepository) GetTable(ctx context.Context, id uuid.UUID) (*TableDoc, error) {
	var doc TableDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *FloorPlanRepository) UpsertTable(ctx context.Context, doc TableDoc) error {
	doc.UpdatedAt = time.Now()
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		r.logger.Error("failed to upsert floor plan", err)
		return err
	}
	return nil
}
