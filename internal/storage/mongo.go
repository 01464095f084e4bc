package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jihyekim/newsharvest/internal/types"
)

// MongoGateway stores runs and articles in MongoDB. The canonical link
// carries a unique index, and inserts run unordered so duplicate-key errors
// skip only the colliding documents.
type MongoGateway struct {
	client   *mongo.Client
	articles *mongo.Collection
	runs     *mongo.Collection
	logger   *slog.Logger
}

// NewMongoGateway connects and ensures the link index exists.
func NewMongoGateway(uri, database, collection string, logger *slog.Logger) (*MongoGateway, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	db := client.Database(database)
	articles := db.Collection(collection)
	_, err = articles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "link", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("mongodb link index: %w", err)
	}

	return &MongoGateway{
		client:   client,
		articles: articles,
		runs:     db.Collection(collection + "_runs"),
		logger:   logger.With("component", "mongo_storage"),
	}, nil
}

func (g *MongoGateway) SaveRun(ctx context.Context, meta RunMeta) (int64, error) {
	// Mongo has no autoincrement; the start timestamp is unique enough per
	// deployment to serve as the run id.
	runID := meta.StartedAt.UnixMilli()
	_, err := g.runs.InsertOne(ctx, bson.M{
		"run_id":         runID,
		"mode":           meta.Mode,
		"sources":        meta.Sources,
		"started_at":     meta.StartedAt,
		"finished_at":    meta.FinishedAt,
		"total_articles": meta.TotalArticles,
	})
	if err != nil {
		return 0, fmt.Errorf("mongodb insert run: %w", err)
	}
	return runID, nil
}

func (g *MongoGateway) SaveArticles(ctx context.Context, runID int64, articles []types.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	docs := make([]any, len(articles))
	for i, a := range articles {
		doc := bson.M{
			"run_id":       runID,
			"source_key":   a.SourceKey,
			"title":        a.Title,
			"link":         a.Link,
			"collected_at": a.CollectedAt,
		}
		if a.OriginalLink != "" {
			doc["original_link"] = a.OriginalLink
		}
		if a.Summary != "" {
			doc["summary"] = a.Summary
		}
		if a.BodyText != "" {
			doc["body_text"] = a.BodyText
		}
		if a.Byline != "" {
			doc["byline"] = a.Byline
		}
		if a.Category != "" {
			doc["category"] = a.Category
		}
		if a.Keyword != "" {
			doc["keyword"] = a.Keyword
		}
		if a.PublishedAt != nil {
			doc["published_at"] = *a.PublishedAt
		}
		docs[i] = doc
	}

	res, err := g.articles.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return 0, fmt.Errorf("mongodb insert articles: %w", err)
	}

	inserted := 0
	if res != nil {
		inserted = len(res.InsertedIDs)
	}
	g.logger.Info("articles stored",
		"run_id", runID, "inserted", inserted, "duplicates", len(articles)-inserted)
	return inserted, nil
}

func (g *MongoGateway) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.client.Disconnect(ctx)
}
