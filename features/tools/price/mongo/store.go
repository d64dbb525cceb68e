// Package mongo implements the get_coin_price tool (§4.1) against a Mongo
// "document store" of OHLC/daily-close price points, mongo-driver/v2-backed
// the way the teacher's features/session/mongo client wraps its collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/keyveloper/coin-news-go/runtime/query"
	"github.com/keyveloper/coin-news-go/runtime/toolregistry"
)

const (
	defaultCollection = "price_points"
	defaultOpTimeout   = 5 * time.Second
	hourWindow         = 3600
)

// Options configures the Store.
type Options struct {
	Client     *mongo.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// Store implements the get_coin_price tool.
type Store struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// New returns a Store backed by opts.Client, indexing (coin, epoch) for the
// range queries get_coin_price issues.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}

	coll := opts.Client.Database(opts.Database).Collection(collName)
	idxCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	idx := mongo.IndexModel{Keys: bson.D{{Key: "coin", Value: 1}, {Key: "epoch", Value: 1}}}
	if _, err := coll.Indexes().CreateOne(idxCtx, idx); err != nil {
		return nil, fmt.Errorf("ensure price_points index: %w", err)
	}

	return &Store{coll: coll, timeout: timeout}, nil
}

// priceDocument is the Mongo document shape for one price point.
type priceDocument struct {
	Coin  string  `bson:"coin"`
	Epoch int64   `bson:"epoch"`
	Open  float64 `bson:"open"`
	High  float64 `bson:"high"`
	Low   float64 `bson:"low"`
	Close float64 `bson:"close"`
}

// Handler implements toolregistry.Handler for get_coin_price.
func (s *Store) Handler(ctx context.Context, args map[string]any) (any, error) {
	a, err := toolregistry.DecodeGetCoinPriceArgs(args)
	if err != nil {
		return nil, err
	}

	lo, hi := window(a.PivotDateEpoch, a.RangeType, a.Direction)
	filter := bson.M{
		"coin":  a.CoinName,
		"epoch": bson.M{"$gte": lo, "$lte": hi},
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "epoch", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("get_coin_price: %w", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []toolregistry.PricePoint
	for cur.Next(ctx) {
		var doc priceDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("get_coin_price: decode: %w", err)
		}
		out = append(out, toolregistry.PricePoint{
			Epoch: doc.Epoch, Open: doc.Open, High: doc.High, Low: doc.Low, Close: doc.Close,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("get_coin_price: %w", err)
	}
	return out, nil
}

// window computes the [lo, hi] epoch bound for a get_coin_price call, per
// §4.1: range_type=hour is always a fixed ±1h window regardless of
// direction; otherwise the range_type's offset is applied before/after/both
// around the pivot.
func window(pivot int64, rangeType query.RangeType, direction query.Direction) (lo, hi int64) {
	if rangeType == query.RangeHour {
		return pivot - hourWindow, pivot + hourWindow
	}
	offset := rangeType.Offset()
	switch direction {
	case query.DirectionAfter:
		return pivot, pivot + offset
	case query.DirectionBoth:
		return pivot - offset, pivot + offset
	default:
		return pivot - offset, pivot
	}
}
