package history

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sallich/PixelHub/pkg/canvas"
	"github.com/sallich/PixelHub/pkg/logger"
	"github.com/sallich/PixelHub/pkg/metrics"
)

// MongoStore implements Store on an insert-only MongoDB collection. ObjectID
// insertion order carries the placed_at tie-break.
type MongoStore struct {
	collection *mongo.Collection
	logger     *logger.Logger
	seq        atomic.Int64
}

type mongoPlacement struct {
	X        int       `bson:"x"`
	Y        int       `bson:"y"`
	Color    int       `bson:"color"`
	Nickname string    `bson:"nickname"`
	PlacedAt time.Time `bson:"placed_at"`
	Seq      int64     `bson:"seq"`
}

// NewMongoStore wraps the placements collection. The position sequence is
// seeded from the clock so it keeps increasing across restarts.
func NewMongoStore(coll *mongo.Collection, l *logger.Logger) *MongoStore {
	s := &MongoStore{collection: coll, logger: l}
	s.seq.Store(time.Now().UnixNano())
	return s
}

// nextSeq hands out log positions. Two appends never share one, even inside
// the same nanosecond.
func (s *MongoStore) nextSeq() int64 {
	return s.seq.Add(1)
}

// Append inserts the placement and returns its assigned log position.
// Projection order does not depend on the position; it uses (placed_at, _id).
func (s *MongoStore) Append(ctx context.Context, p canvas.Placement) (int64, error) {
	start := time.Now()
	doc := mongoPlacement{
		X:        p.X,
		Y:        p.Y,
		Color:    p.Color,
		Nickname: p.Nickname,
		PlacedAt: p.PlacedAt,
		Seq:      s.nextSeq(),
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return 0, fmt.Errorf("failed to append placement: %w", err)
	}
	metrics.AppendLatency.Observe(time.Since(start).Seconds())
	return doc.Seq, nil
}

// Board projects the current board.
func (s *MongoStore) Board(ctx context.Context) ([]Cell, error) {
	return s.aggregate(ctx, bson.D{})
}

// SnapshotAsOf projects the board as of t.
func (s *MongoStore) SnapshotAsOf(ctx context.Context, t time.Time) ([]Cell, error) {
	return s.aggregate(ctx, bson.D{{Key: "placed_at", Value: bson.D{{Key: "$lte", Value: t}}}})
}

// aggregate groups qualifying records by coordinate keeping the last one in
// (placed_at, _id) order, which is exactly last-write-wins per cell.
func (s *MongoStore) aggregate(ctx context.Context, match bson.D) ([]Cell, error) {
	start := time.Now()
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "placed_at", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "x", Value: "$x"}, {Key: "y", Value: "$y"}}},
			{Key: "color", Value: bson.D{{Key: "$last", Value: "$color"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id.x", Value: 1}, {Key: "_id.y", Value: 1}}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate board state: %w", err)
	}
	defer cursor.Close(ctx)

	var cells []Cell
	for cursor.Next(ctx) {
		var row struct {
			ID struct {
				X int `bson:"x"`
				Y int `bson:"y"`
			} `bson:"_id"`
			Color int `bson:"color"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode board row: %w", err)
		}
		cells = append(cells, Cell{X: row.ID.X, Y: row.ID.Y, Color: row.Color})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("board aggregation error: %w", err)
	}
	metrics.SnapshotLatency.Observe(time.Since(start).Seconds())
	return cells, nil
}

// Close disconnects the underlying client.
func (s *MongoStore) Close() error {
	return s.collection.Database().Client().Disconnect(context.Background())
}
