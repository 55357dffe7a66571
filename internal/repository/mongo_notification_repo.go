package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/notifyhub/notification-dispatcher/internal/domain"
)

type mongoNotificationRepository struct {
	coll      *mongo.Collection
	opTimeout time.Duration
}

// NewMongoNotificationRepository returns a NotificationRepository backed by
// the given MongoDB collection. opTimeout is the per-operation deadline
// applied to every store call.
func NewMongoNotificationRepository(coll *mongo.Collection, opTimeout time.Duration) NotificationRepository {
	return &mongoNotificationRepository{coll: coll, opTimeout: opTimeout}
}

func (r *mongoNotificationRepository) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	stored := *n
	stored.ID = primitive.NewObjectID().Hex()

	if _, err := r.coll.InsertOne(ctx, &stored); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrDuplicateKey
		}
		return nil, fmt.Errorf("%w: insert notification: %v", domain.ErrRepository, err)
	}
	return &stored, nil
}

func (r *mongoNotificationRepository) Find(ctx context.Context, opts domain.QueryOptions) (Iterator, error) {
	aggCtx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	cursor, err := r.coll.Aggregate(aggCtx, buildFindPipeline(opts))
	if err != nil {
		return nil, fmt.Errorf("%w: aggregate notifications: %v", domain.ErrRepository, err)
	}
	return &cursorIterator{cursor: cursor}, nil
}

func (r *mongoNotificationRepository) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	// Filtering on status=pending makes the pending→terminal rule a property
	// of the single atomic update: a concurrent transition leaves nothing to
	// match and the caller sees the zero-match error.
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "status", Value: domain.StatusPending},
	}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "status", Value: status}}}}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("%w: update status: %v", domain.ErrRepository, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: no documents matched id %s", domain.ErrRepository, id)
	}
	return nil
}

// buildFindPipeline translates QueryOptions into an aggregation pipeline.
// The quiet-hours stage computes the recipient-local hour of the upper bound
// server-side: the signed hour prefix of the timezone offset ("+05" of
// "+05:30") is added to the upper bound's UTC hour, normalised modulo 24.
// Malformed offsets convert to 0.
func buildFindPipeline(opts domain.QueryOptions) mongo.Pipeline {
	match := bson.D{}
	pipeline := mongo.Pipeline{}

	if opts.Priority != nil {
		match = append(match, bson.E{Key: "priority", Value: string(*opts.Priority)})
	}
	if opts.Status != nil {
		match = append(match, bson.E{Key: "status", Value: string(*opts.Status)})
	}

	if opts.ScheduledBefore != nil {
		upper := opts.ScheduledBefore.UTC()
		match = append(match, bson.E{
			Key:   "scheduledTime",
			Value: bson.D{{Key: "$lte", Value: primitive.NewDateTimeFromTime(upper)}},
		})

		if opts.RespectNighttime {
			offsetHours := bson.D{{Key: "$convert", Value: bson.D{
				{Key: "input", Value: bson.D{{Key: "$substrBytes", Value: bson.A{"$recipient.timezone_offset", 0, 3}}}},
				{Key: "to", Value: "int"},
				{Key: "onError", Value: 0},
			}}}
			localHour := bson.D{{Key: "$mod", Value: bson.A{
				bson.D{{Key: "$add", Value: bson.A{upper.Hour() + 24, offsetHours}}},
				24,
			}}}

			pipeline = append(pipeline,
				bson.D{{Key: "$addFields", Value: bson.D{{Key: "recipientLocalHour", Value: localHour}}}},
				bson.D{{Key: "$match", Value: bson.D{{Key: "recipientLocalHour", Value: bson.D{
					{Key: "$gte", Value: domain.WakingStartHour},
					{Key: "$lt", Value: domain.WakingEndHour},
				}}}}},
			)
		}
	}

	pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})
	if opts.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: opts.Limit}})
	}
	return pipeline
}

// cursorIterator adapts mongo.Cursor to the Iterator interface, classifying
// decode failures as serialization errors.
type cursorIterator struct {
	cursor *mongo.Cursor
}

func (it *cursorIterator) Next(ctx context.Context) bool {
	return it.cursor.Next(ctx)
}

func (it *cursorIterator) Decode(n *domain.Notification) error {
	if err := it.cursor.Decode(n); err != nil {
		return fmt.Errorf("%w: decode notification: %v", domain.ErrSerial, err)
	}
	return nil
}

func (it *cursorIterator) Err() error {
	if err := it.cursor.Err(); err != nil {
		return fmt.Errorf("%w: cursor: %v", domain.ErrRepository, err)
	}
	return nil
}

func (it *cursorIterator) Close(ctx context.Context) error {
	return it.cursor.Close(ctx)
}
