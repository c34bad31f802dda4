// Package app opens the shared infrastructure used by the API, the worker and
// the tools: Postgres, Redis and the optional Mongo cart store.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/noah-isme/backend-resto/internal/cart"
	"github.com/noah-isme/backend-resto/internal/config"
	"github.com/noah-isme/backend-resto/internal/db"
	"github.com/noah-isme/backend-resto/internal/health"
)

const cartsCollection = "carts"

// Dependencies groups the connections shared across modules.
type Dependencies struct {
	Config *config.Config
	Logger zerolog.Logger
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Mongo  *mongo.Client
}

// Options tunes Open.
type Options struct {
	AppName      string
	RedisMetrics bool
}

// Open connects to every backing store the configuration names. On failure
// the connections opened so far are closed.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	deps := &Dependencies{Config: cfg, Logger: logger}

	pool, err := db.Connect(ctx, cfg.DatabaseURL, opts.AppName)
	if err != nil {
		return nil, err
	}
	deps.DB = pool

	rdb, err := NewRedis(ctx, cfg.RedisURL, opts.RedisMetrics, logger)
	if err != nil {
		deps.Close(context.Background())
		return nil, err
	}
	deps.Redis = rdb

	if cfg.CartStore == config.CartStoreMongo {
		client, err := NewMongo(ctx, cfg.MongoURL)
		if err != nil {
			deps.Close(context.Background())
			return nil, err
		}
		deps.Mongo = client
	}
	return deps, nil
}

// NewRedis parses url, instruments the client and verifies connectivity.
func NewRedis(ctx context.Context, url string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewMongo connects to MongoDB and pings the primary.
func NewMongo(ctx context.Context, url string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// CartRepository returns the cart store selected by CART_STORE. The Mongo
// store gets its TTL index created on first use.
func (d *Dependencies) CartRepository(ctx context.Context) (cart.Repository, error) {
	switch d.Config.CartStore {
	case config.CartStoreMongo:
		if d.Mongo == nil {
			return nil, errors.New("app: mongo client not connected")
		}
		repo := &cart.MongoRepository{Coll: d.Mongo.Database(d.Config.MongoDatabase).Collection(cartsCollection)}
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("ensure cart indexes: %w", err)
		}
		return repo, nil
	case config.CartStorePostgres, "":
		if d.DB == nil {
			return nil, errors.New("app: database not connected")
		}
		return &cart.PostgresRepository{DB: d.DB}, nil
	default:
		return nil, fmt.Errorf("app: unsupported cart store %q", d.Config.CartStore)
	}
}

// HealthChecks lists the readiness checks for the connected stores.
func (d *Dependencies) HealthChecks() []health.Check {
	checks := []health.Check{
		{Name: "db", Timeout: d.Config.StorageTimeout, Ping: func(ctx context.Context) error {
			if d.DB == nil {
				return errors.New("db not configured")
			}
			return d.DB.Ping(ctx)
		}},
		{Name: "redis", Timeout: d.Config.StorageTimeout, Ping: func(ctx context.Context) error {
			if d.Redis == nil {
				return errors.New("redis not configured")
			}
			return d.Redis.Ping(ctx).Err()
		}},
	}
	if d.Config.CartStore == config.CartStoreMongo {
		checks = append(checks, health.Check{Name: "mongo", Timeout: d.Config.StorageTimeout, Ping: func(ctx context.Context) error {
			if d.Mongo == nil {
				return errors.New("mongo not configured")
			}
			return d.Mongo.Ping(ctx, readpref.Primary())
		}})
	}
	return checks
}

// Close releases every open connection.
func (d *Dependencies) Close(ctx context.Context) {
	if d.Mongo != nil {
		if err := d.Mongo.Disconnect(ctx); err != nil {
			d.Logger.Error().Err(err).Msg("disconnect mongo")
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close redis")
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
