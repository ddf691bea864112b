package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tablewise/seatcore/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// AuditLogger records administrative overrides and cancellations. Admin
// actions evict paying customers, so every one leaves a trail.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	Actor     string    `bson:"actor"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action, actor string, data map[string]interface{}) error {
	entry := AuditLog{
		ID:        uuid.New(),
		Action:    action,
		Actor:     actor,
		Timestamp: time.Now(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, entry)
	if err != nil {
		a.logger.Error("failed to insert audit log", err)
		return err
	}
	return nil
}

func (a *AuditLogger) LogSeatOverride(ctx context.Context, actor string, seatID, holdID uuid.UUID) error {
	return a.LogEvent(ctx, "seat.override", actor, map[string]interface{}{
		"seat_id": seatID,
		"hold_id": holdID,
	})
}

func (a *AuditLogger) LogBookingCancelled(ctx context.Context, actor string, bookingID uuid.UUID) error {
	return a.LogEvent(ctx, "booking.cancelled", actor, map[string]interface{}{
		"booking_id": bookingID,
	})
}
