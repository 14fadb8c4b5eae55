package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iraqaf/assurance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoDatabase = "assurance"

// Mongo stores each entity as its own collection of append-only
// documents. The entity struct is the document; a wrapper adds the
// natural ID and timestamp fields the reads filter on.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

type mongoDoc[T any] struct {
	EntityID   string    `bson:"entity_id"`
	Stamp      time.Time `bson:"stamp"`
	InsertedAt time.Time `bson:"inserted_at"`
	Doc        T         `bson:"doc"`
}

// NewMongo connects, verifies the connection and ensures the indexes.
func NewMongo(ctx context.Context, uri string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(mongoDatabase)
	indexed := []string{"scores", "gaps", "gap_closures", "changes", "drift", "notifications", "reports"}
	for _, name := range indexed {
		_, err := db.Collection(name).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "entity_id", Value: 1}, {Key: "stamp", Value: -1}},
		})
		if err != nil {
			client.Disconnect(ctx)
			return nil, fmt.Errorf("failed to ensure index on %s: %w", name, err)
		}
	}

	return &Mongo{client: client, db: db}, nil
}

func insertMongo[T any](ctx context.Context, coll *mongo.Collection, op, id string, stamp time.Time, doc T) error {
	_, err := coll.InsertOne(ctx, mongoDoc[T]{
		EntityID:   id,
		Stamp:      stamp,
		InsertedAt: time.Now().UTC(),
		Doc:        doc,
	})
	if err != nil {
		return &models.TransientError{Op: op, Err: err}
	}
	return nil
}

func (m *Mongo) SaveScore(ctx context.Context, score *models.RequirementScore) error {
	return insertMongo(ctx, m.db.Collection("scores"), "persist score",
		score.RequirementID, score.ComputedAt, score)
}

func (m *Mongo) SaveGap(ctx context.Context, gap *models.ComplianceGap) error {
	return insertMongo(ctx, m.db.Collection("gaps"), "persist gap",
		gap.GapID, gap.CreatedAt, gap)
}

func (m *Mongo) SaveChange(ctx context.Context, change *models.RegulatoryChange) error {
	return insertMongo(ctx, m.db.Collection("changes"), "persist change",
		change.ChangeID, change.DetectedAt, change)
}

func (m *Mongo) SaveDrift(ctx context.Context, drift *models.ComplianceDriftRecord) error {
	return insertMongo(ctx, m.db.Collection("drift"), "persist drift",
		drift.ChangeID, drift.AssessedAt, drift)
}

func (m *Mongo) SaveNotification(ctx context.Context, n *models.Notification) error {
	return insertMongo(ctx, m.db.Collection("notifications"), "persist notification",
		n.NotificationID, n.CreatedAt, n)
}

func (m *Mongo) SaveReport(ctx context.Context, report *models.MonitoringCycleReport) error {
	return insertMongo(ctx, m.db.Collection("reports"), "persist report",
		report.CycleID, report.CompletedAt, report)
}

func (m *Mongo) LatestScores(ctx context.Context) (map[string]*models.RequirementScore, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "stamp", Value: -1}, {Key: "inserted_at", Value: -1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$entity_id"},
			{Key: "doc", Value: bson.D{{Key: "$first", Value: "$doc"}}},
		}}},
	}
	cursor, err := m.db.Collection("scores").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, &models.TransientError{Op: "load scores", Err: err}
	}
	defer cursor.Close(ctx)

	latest := make(map[string]*models.RequirementScore)
	for cursor.Next(ctx) {
		var row struct {
			Doc models.RequirementScore `bson:"doc"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode score: %w", err)
		}
		score := row.Doc
		latest[score.RequirementID] = &score
	}
	return latest, cursor.Err()
}

func (m *Mongo) OpenGaps(ctx context.Context) ([]*models.ComplianceGap, error) {
	closedIDs, err := m.db.Collection("gap_closures").Distinct(ctx, "entity_id", bson.D{})
	if err != nil {
		return nil, &models.TransientError{Op: "load gap closures", Err: err}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "entity_id", Value: bson.D{{Key: "$nin", Value: closedIDs}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "stamp", Value: -1}, {Key: "inserted_at", Value: -1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$entity_id"},
			{Key: "doc", Value: bson.D{{Key: "$first", Value: "$doc"}}},
		}}},
	}
	cursor, err := m.db.Collection("gaps").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, &models.TransientError{Op: "load open gaps", Err: err}
	}
	defer cursor.Close(ctx)

	var gaps []*models.ComplianceGap
	for cursor.Next(ctx) {
		var row struct {
			Doc models.ComplianceGap `bson:"doc"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode gap: %w", err)
		}
		gap := row.Doc
		gaps = append(gaps, &gap)
	}
	return gaps, cursor.Err()
}

func (m *Mongo) CloseGap(ctx context.Context, gapID string, closedAt time.Time) error {
	_, err := m.db.Collection("gap_closures").InsertOne(ctx, bson.D{
		{Key: "entity_id", Value: gapID},
		{Key: "stamp", Value: closedAt},
		{Key: "inserted_at", Value: time.Now().UTC()},
	})
	if err != nil {
		return &models.TransientError{Op: "close gap", Err: err}
	}
	return nil
}

func (m *Mongo) RecentChanges(ctx context.Context, since time.Time) ([]*models.RegulatoryChange, error) {
	opts := options.Find().SetSort(bson.D{{Key: "stamp", Value: -1}})
	cursor, err := m.db.Collection("changes").Find(ctx,
		bson.D{{Key: "stamp", Value: bson.D{{Key: "$gte", Value: since}}}}, opts)
	if err != nil {
		return nil, &models.TransientError{Op: "load changes", Err: err}
	}
	defer cursor.Close(ctx)

	var changes []*models.RegulatoryChange
	for cursor.Next(ctx) {
		var row struct {
			Doc models.RegulatoryChange `bson:"doc"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode change: %w", err)
		}
		change := row.Doc
		changes = append(changes, &change)
	}
	return changes, cursor.Err()
}

func (m *Mongo) LatestReport(ctx context.Context) (*models.MonitoringCycleReport, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "inserted_at", Value: -1}})
	var row struct {
		Doc models.MonitoringCycleReport `bson:"doc"`
	}
	err := m.db.Collection("reports").FindOne(ctx, bson.D{}, opts).Decode(&row)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, &models.TransientError{Op: "load latest report", Err: err}
	}
	return &row.Doc, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
