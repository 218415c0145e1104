package persist

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Archiver periodically moves liquidation events older than maxAge from
// MongoDB to local gzipped NDJSON files, deleting the oldest archive files
// once total size exceeds maxBytes. This runs ahead of retention's hard
// delete so cold history survives on disk after the live collection is
// pruned.
type Archiver struct {
	store    *Store
	dir      string
	maxBytes int64
	interval time.Duration
	maxAge   time.Duration
}

// NewArchiver creates an Archiver writing under dir.
func NewArchiver(store *Store, dir string, maxGB, intervalHours, afterHours int) *Archiver {
	return &Archiver{
		store:    store,
		dir:      dir,
		maxBytes: int64(maxGB) * 1 << 30,
		interval: time.Duration(intervalHours) * time.Hour,
		maxAge:   time.Duration(afterHours) * time.Hour,
	}
}

// Run starts the periodic archive loop. Blocks until ctx is cancelled.
func (a *Archiver) Run(ctx context.Context) {
	log.Printf("liquidation archiver: dir=%s max=%dGB interval=%v age=%v",
		a.dir, a.maxBytes>>30, a.interval, a.maxAge)

	a.cycle(ctx)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.cycle(ctx)
		}
	}
}

func (a *Archiver) cycle(ctx context.Context) {
	cursor, err := a.loadCursor(ctx)
	if err != nil {
		log.Printf("liquidation archiver: load cursor: %v", err)
		return
	}

	cutoff := time.Now().Add(-a.maxAge)
	if !cursor.Before(cutoff) {
		return
	}

	docs, err := a.queryLiquidations(ctx, cursor, cutoff)
	if err != nil {
		log.Printf("liquidation archiver: query: %v", err)
		return
	}
	if len(docs) == 0 {
		a.saveCursor(ctx, cutoff)
		return
	}

	batches := groupByDay(docs)

	for day, batch := range batches {
		if err := a.writeBatch(day, batch); err != nil {
			log.Printf("liquidation archiver: write %s: %v", day, err)
			return
		}

		if err := a.deleteBatch(ctx, batch); err != nil {
			log.Printf("liquidation archiver: delete %s: %v", day, err)
			return
		}

		log.Printf("liquidation archiver: archived %d liquidations for %s", len(batch), day)
	}

	a.saveCursor(ctx, cutoff)
	a.rotate()
}

// archiveDoc mirrors a liquidations collection document, including the
// Mongo-assigned _id needed to delete it after archival.
type archiveDoc struct {
	ID       bson.ObjectID `bson:"_id"      json:"id"`
	Symbol   string        `bson:"symbol"   json:"symbol"`
	Side     string        `bson:"side"     json:"side"`
	Price    float64       `bson:"price"    json:"price"`
	Quantity float64       `bson:"quantity" json:"quantity"`
	Time     time.Time     `bson:"time"     json:"time"`
}

func (a *Archiver) loadCursor(ctx context.Context) (time.Time, error) {
	var doc struct {
		ValueTime time.Time `bson:"value_time"`
	}
	err := a.store.db.Collection(collState).FindOne(ctx, bson.M{"key": "archive_cursor"}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return doc.ValueTime, nil
}

func (a *Archiver) saveCursor(ctx context.Context, t time.Time) {
	_, err := a.store.db.Collection(collState).UpdateOne(ctx,
		bson.M{"key": "archive_cursor"},
		bson.M{"$set": bson.M{
			"key":        "archive_cursor",
			"value_time": t,
			"updated_at": time.Now(),
		}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		log.Printf("liquidation archiver: save cursor: %v", err)
	}
}

func (a *Archiver) queryLiquidations(ctx context.Context, from, to time.Time) ([]archiveDoc, error) {
	filter := bson.M{
		"time": bson.M{"$gte": from, "$lt": to},
	}
	opts := options.Find().SetSort(bson.D{{Key: "time", Value: 1}})

	cur, err := a.store.db.Collection(collLiquidations).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find liquidations: %w", err)
	}
	defer cur.Close(ctx)

	var docs []archiveDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode liquidations: %w", err)
	}
	return docs, nil
}

func groupByDay(docs []archiveDoc) map[string][]archiveDoc {
	batches := make(map[string][]archiveDoc)
	for _, d := range docs {
		day := d.Time.UTC().Format("2006/01/02")
		batches[day] = append(batches[day], d)
	}
	return batches
}

// writeBatch writes events as gzipped NDJSON to dir/liquidations/YYYY/MM/DD.jsonl.gz.
func (a *Archiver) writeBatch(day string, docs []archiveDoc) error {
	path := filepath.Join(a.dir, "liquidations", day+".jsonl.gz")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := json.NewEncoder(gz)
	for _, d := range docs {
		if err := enc.Encode(d); err != nil {
			gz.Close()
			return fmt.Errorf("encode: %w", err)
		}
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("gzip close: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (a *Archiver) deleteBatch(ctx context.Context, docs []archiveDoc) error {
	ids := make([]bson.ObjectID, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}

	_, err := a.store.db.Collection(collLiquidations).DeleteMany(ctx, bson.M{
		"_id": bson.M{"$in": ids},
	})
	if err != nil {
		return fmt.Errorf("delete archived liquidations: %w", err)
	}
	return nil
}

// rotate deletes the oldest archive files until total size is under maxBytes.
func (a *Archiver) rotate() {
	root := filepath.Join(a.dir, "liquidations")

	type entry struct {
		path string
		size int64
	}

	var files []entry
	var total int64

	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		files = append(files, entry{path: path, size: info.Size()})
		total += info.Size()
		return nil
	})

	if total <= a.maxBytes {
		return
	}

	// Sort oldest first (path is YYYY/MM/DD so lexicographic = chronological).
	sort.Slice(files, func(i, j int) bool {
		return files[i].path < files[j].path
	})

	for _, f := range files {
		if total <= a.maxBytes {
			break
		}
		if err := os.Remove(f.path); err != nil {
			log.Printf("liquidation archiver: remove %s: %v", f.path, err)
			continue
		}
		total -= f.size
		log.Printf("liquidation archiver: rotated out %s (%d bytes)", f.path, f.size)
	}
}
