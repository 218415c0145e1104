package persist

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// DeleteLiquidationsOlderThan removes liquidation documents with Time before
// cutoff and returns the number deleted. Invoked by the scheduler's daily
// retention job rather than running its own ticker. The Archiver
// (archive.go) separately deletes the documents it has archived, on its own
// interval.
func (s *Store) DeleteLiquidationsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.Collection(collLiquidations).DeleteMany(ctx, bson.M{
		"time": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("delete liquidations older than %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return result.DeletedCount, nil
}
