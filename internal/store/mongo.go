package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/alouzou/sondage/backend/internal/models"
)

// MongoActivityLog appends survey activity entries to a MongoDB collection.
type MongoActivityLog struct {
	col *mongo.Collection
}

func NewMongoActivityLog(db *mongo.Database) *MongoActivityLog {
	return &MongoActivityLog{col: db.Collection("survey_activity")}
}

// EnsureIndexes creates the (survey_id, at) index used by ListBySurvey.
func (l *MongoActivityLog) EnsureIndexes(ctx context.Context) error {
	_, err := l.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "survey_id", Value: 1}, {Key: "at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("mongo index: %w", err)
	}
	return nil
}

func (l *MongoActivityLog) Record(ctx context.Context, a models.SurveyActivity) error {
	if _, err := l.col.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("mongo insert: %w", err)
	}
	return nil
}

func (l *MongoActivityLog) ListBySurvey(ctx context.Context, surveyID int64) ([]models.SurveyActivity, error) {
	opts := options.Find().SetSort(bson.D{{Key: "at", Value: -1}})
	cur, err := l.col.Find(ctx, bson.M{"survey_id": surveyID}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	defer cur.Close(ctx)

	entries := make([]models.SurveyActivity, 0)
	if err := cur.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("mongo decode: %w", err)
	}
	return entries, nil
}
