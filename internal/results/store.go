// Package results reads detection result records from the document store
// and renders them for chat delivery.
package results

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Store reads detection results from a single Mongo collection.
type Store struct {
	collection *mongo.Collection
	timeout    time.Duration
	logger     *slog.Logger
}

func NewStore(log *slog.Logger, collection *mongo.Collection, timeout time.Duration) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		collection: collection,
		timeout:    timeout,
		logger:     log.With(slog.String("component", "results")),
	}
}

// Get looks up a detection result by exact prediction id.
func (s *Store) Get(ctx context.Context, predictionID string) (DetectionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var result DetectionResult
	err := s.collection.FindOne(ctx, bson.M{"_id": predictionID}).Decode(&result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return DetectionResult{}, ErrNotFound
	}
	if err != nil {
		return DetectionResult{}, fmt.Errorf("find prediction %s: %w", predictionID, err)
	}
	return result, nil
}
