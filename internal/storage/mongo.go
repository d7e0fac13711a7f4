package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/config"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
)

const (
	productsCollection = "products"
	historyCollection  = "price_history"
)

// MongoStore keeps snapshots in a products collection keyed by identifier
// and history in a price_history collection. Writes are not transactional.
type MongoStore struct {
	client   *mongo.Client
	products *mongo.Collection
	history  *mongo.Collection
	logger   *slog.Logger
}

// NewMongoStore connects to MongoDB and ensures the history index exists.
func NewMongoStore(ctx context.Context, cfg config.MongoConfig, logger *slog.Logger) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &MongoStore{
		client:   client,
		products: db.Collection(productsCollection),
		history:  db.Collection(historyCollection),
		logger:   logger.With("component", "mongo_store"),
	}

	_, err = s.history.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "identifier", Value: 1}, {Key: "captured_at", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb create index: %w", err)
	}
	return s, nil
}

func (s *MongoStore) Name() string { return "mongodb" }

func (s *MongoStore) UpsertProduct(ctx context.Context, rec *types.SanitizedRecord) error {
	if rec == nil || rec.Identifier == "" {
		return storageErr(s.Name(), "upsert", errors.New("record has no identifier"))
	}

	snap := types.SnapshotFromRecord(rec, time.Now().UTC())
	_, err := s.products.ReplaceOne(ctx, bson.M{"_id": snap.Identifier}, snap, options.Replace().SetUpsert(true))
	if err != nil {
		return storageErr(s.Name(), "upsert", err)
	}

	if rec.CurrentPrice != nil {
		_, err = s.history.InsertOne(ctx, types.HistoryPoint{
			Identifier:   rec.Identifier,
			CapturedAt:   rec.CapturedAt,
			Price:        *rec.CurrentPrice,
			Availability: rec.Availability,
		})
		if err != nil {
			return storageErr(s.Name(), "insert history", err)
		}
	}
	s.logger.Debug("product upserted", "identifier", rec.Identifier)
	return nil
}

func (s *MongoStore) GetCurrentSnapshot(ctx context.Context, id string) (*types.Snapshot, error) {
	var snap types.Snapshot
	err := s.products.FindOne(ctx, bson.M{"_id": id}).Decode(&snap)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, storageErr(s.Name(), "get snapshot", err)
	}
	return &snap, nil
}

func (s *MongoStore) GetHistory(ctx context.Context, id string, since time.Time) ([]types.HistoryPoint, error) {
	series, err := s.HistorySeries(ctx, []string{id}, since)
	if err != nil {
		return nil, err
	}
	return series[id], nil
}

func (s *MongoStore) HistorySeries(ctx context.Context, ids []string, since time.Time) (map[string][]types.HistoryPoint, error) {
	filter := bson.M{
		"identifier":  bson.M{"$in": ids},
		"captured_at": bson.M{"$gte": since},
	}
	opts := options.Find().SetSort(bson.D{{Key: "identifier", Value: 1}, {Key: "captured_at", Value: 1}})
	cur, err := s.history.Find(ctx, filter, opts)
	if err != nil {
		return nil, storageErr(s.Name(), "history", err)
	}

	var points []types.HistoryPoint
	if err := cur.All(ctx, &points); err != nil {
		return nil, storageErr(s.Name(), "history", err)
	}

	out := make(map[string][]types.HistoryPoint, len(ids))
	for _, id := range ids {
		out[id] = []types.HistoryPoint{}
	}
	for _, p := range points {
		out[p.Identifier] = append(out[p.Identifier], p)
	}
	return out, nil
}

func (s *MongoStore) ListSnapshots(ctx context.Context, filter types.SnapshotFilter) ([]*types.Snapshot, error) {
	query := bson.M{}
	if filter.Availability != "" {
		query["availability"] = filter.Availability
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
		query["$or"] = bson.A{bson.M{"_id": pattern}, bson.M{"title": pattern}}
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if filter.SortBy == types.SortByPrice {
		query["current_price"] = bson.M{"$ne": nil}
		opts.SetSort(bson.D{{Key: "current_price", Value: 1}, {Key: "_id", Value: 1}})
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cur, err := s.products.Find(ctx, query, opts)
	if err != nil {
		return nil, storageErr(s.Name(), "list", err)
	}
	var out []*types.Snapshot
	if err := cur.All(ctx, &out); err != nil {
		return nil, storageErr(s.Name(), "list", err)
	}
	return out, nil
}

func (s *MongoStore) Stats(ctx context.Context) (*types.Stats, error) {
	st := &types.Stats{ByAvailability: make(map[types.Availability]int)}

	cur, err := s.products.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$availability"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "priced", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$gt", Value: bson.A{"$current_price", nil}}}, 1, 0,
			}}}}}},
			{Key: "sum", Value: bson.D{{Key: "$sum", Value: "$current_price"}}},
			{Key: "min", Value: bson.D{{Key: "$min", Value: "$current_price"}}},
			{Key: "max", Value: bson.D{{Key: "$max", Value: "$current_price"}}},
		}}},
	})
	if err != nil {
		return nil, storageErr(s.Name(), "stats", err)
	}
	var groups []struct {
		Availability types.Availability `bson:"_id"`
		Count        int                `bson:"count"`
		Priced       int                `bson:"priced"`
		Sum          float64            `bson:"sum"`
		Min          *float64           `bson:"min"`
		Max          *float64           `bson:"max"`
	}
	if err := cur.All(ctx, &groups); err != nil {
		return nil, storageErr(s.Name(), "stats", err)
	}

	var sum float64
	for _, g := range groups {
		st.TotalProducts += g.Count
		st.ByAvailability[g.Availability] = g.Count
		st.PricedProducts += g.Priced
		sum += g.Sum
		if g.Min != nil && (st.MinPrice == nil || *g.Min < *st.MinPrice) {
			st.MinPrice = types.Ptr(*g.Min)
		}
		if g.Max != nil && (st.MaxPrice == nil || *g.Max > *st.MaxPrice) {
			st.MaxPrice = types.Ptr(*g.Max)
		}
	}
	if st.PricedProducts > 0 {
		st.AveragePrice = types.Ptr(sum / float64(st.PricedProducts))
	}

	rows, err := s.history.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, storageErr(s.Name(), "stats", err)
	}
	today, err := s.history.CountDocuments(ctx, bson.M{"captured_at": bson.M{"$gte": startOfDay(time.Now())}})
	if err != nil {
		return nil, storageErr(s.Name(), "stats", err)
	}
	st.HistoryRows = int(rows)
	st.ObservationsToday = int(today)
	return st, nil
}

func (s *MongoStore) DailySummary(ctx context.Context, since time.Time) ([]types.DailySummary, error) {
	cur, err := s.history.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "captured_at", Value: bson.D{{Key: "$gte", Value: since}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "day", Value: bson.D{{Key: "$dateToString", Value: bson.D{
					{Key: "format", Value: "%Y-%m-%d"},
					{Key: "date", Value: "$captured_at"},
				}}}},
				{Key: "identifier", Value: "$identifier"},
			}},
			{Key: "avg_price", Value: bson.D{{Key: "$avg", Value: "$price"}}},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$_id.day"},
			{Key: "products", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "avg_price", Value: bson.D{{Key: "$avg", Value: "$avg_price"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	})
	if err != nil {
		return nil, storageErr(s.Name(), "daily summary", err)
	}
	out := []types.DailySummary{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, storageErr(s.Name(), "daily summary", err)
	}
	return out, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("mongodb store closing")
	return s.client.Disconnect(ctx)
}
