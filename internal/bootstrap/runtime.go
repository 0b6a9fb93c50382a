// Package bootstrap builds the runtime dependency graph from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"veritas/internal/cache"
	"veritas/internal/config"
	"veritas/internal/database"
	"veritas/internal/media"
	"veritas/internal/repository"
	"veritas/internal/scoring"
	"veritas/internal/seed"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo fills an empty store with generated posts.
	SeedDemo bool
	// SkipMedia leaves the uploader unset, for tools that never accept uploads.
	SkipMedia bool
}

// Runtime is the set of live collaborators shared by the server and tools.
type Runtime struct {
	Posts      repository.PostRepository
	Profiles   repository.ProfileRepository
	Redis      *redis.Client
	Uploader   media.Uploader
	MediaDir   string
	Classifier scoring.Classifier

	// StorePing checks the record store for readiness.
	StorePing func(context.Context) error

	closers []func(context.Context) error
}

// Close releases every connection opened by InitRuntime.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i](ctx))
	}
	return errors.Join(errs...)
}

// InitRuntime connects the record store and Redis, selects the media store
// and scoring oracle, and optionally seeds demo data.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	rt := &Runtime{}

	if err := connectStore(ctx, cfg, rt); err != nil {
		return nil, err
	}

	// Redis is optional; a nil client disables the feed cache.
	rt.Redis = cache.InitRedis(cfg.RedisURL)
	if rt.Redis != nil {
		rdb := rt.Redis
		rt.closers = append(rt.closers, func(context.Context) error { return rdb.Close() })
	}

	if !opts.SkipMedia {
		uploader, dir, err := newUploader(cfg)
		if err != nil {
			_ = rt.Close(ctx)
			return nil, err
		}
		rt.Uploader, rt.MediaDir = uploader, dir
	}

	rt.Classifier = scoring.New(scoring.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Timeout: time.Duration(cfg.ScoringTimeoutSeconds) * time.Second,
	})

	if opts.SeedDemo {
		if err := seed.Demo(ctx, rt.Posts, rt.Profiles, seed.DefaultOptions()); err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return rt, nil
}

func connectStore(ctx context.Context, cfg *config.Config, rt *Runtime) error {
	if cfg.StoreDriver == config.StoreMongo {
		client, db, err := database.ConnectMongo(ctx, cfg)
		if err != nil {
			return fmt.Errorf("mongo connection failed: %w", err)
		}
		if err := repository.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return fmt.Errorf("mongo index setup failed: %w", err)
		}
		rt.Posts = repository.NewMongoPostRepository(db)
		rt.Profiles = repository.NewMongoProfileRepository(db)
		rt.StorePing = func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) }
		rt.closers = append(rt.closers, client.Disconnect)
		return nil
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	rt.Posts = repository.NewPostRepository(db)
	rt.Profiles = repository.NewProfileRepository(db)
	rt.StorePing = func(ctx context.Context) error { return database.Ping(ctx, db) }
	rt.closers = append(rt.closers, func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	return nil
}

func newUploader(cfg *config.Config) (media.Uploader, string, error) {
	switch cfg.MediaDriver {
	case config.MediaS3:
		u, err := media.NewS3Uploader(media.S3Config{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			PublicBaseURL: cfg.MediaPublicBaseURL,
		})
		if err != nil {
			return nil, "", fmt.Errorf("s3 media store: %w", err)
		}
		log.Printf("media: storing uploads in s3 bucket %s", cfg.S3Bucket)
		return u, "", nil
	default:
		u, err := media.NewDiskUploader(cfg.MediaDir, cfg.MediaPublicBaseURL)
		if err != nil {
			return nil, "", fmt.Errorf("disk media store: %w", err)
		}
		log.Printf("media: storing uploads under %s", u.Root())
		return u, u.Root(), nil
	}
}
