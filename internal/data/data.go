package data

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/jackc/pgx/v5/pgxpool"

	"moderation/internal/biz"
	"moderation/internal/conf"
	"moderation/internal/data/postgres/sqlc"
	"moderation/internal/pkg/moderator"
)

//go:generate sqlc generate -f postgres/sqlc.yaml

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData,
	NewRedis,
	NewImageVerdictRepo,
	NewDocumentRegistry,
	NewTextModerator,
	NewImageModerator,
	wire.Bind(new(biz.TextClassifier), new(*moderator.TextModerator)),
	wire.Bind(new(biz.ImageClassifier), new(*moderator.ImageModerator)),
)

// Data holds the Postgres pool. Pool and Queries are nil for the memory verdict store.
type Data struct {
	Pool    *pgxpool.Pool // pgxpool for sqlc (pgx/v5)
	Queries *sqlc.Queries // sqlc generated queries
}

// NewData connects to Postgres when the verdict store needs it and applies
// migrations if configured to.
func NewData(c *conf.Data, logger log.Logger) (*Data, func(), error) {
	helper := log.NewHelper(log.With(logger, "module", "data"))
	if c.VerdictStore != "postgres" {
		helper.Infof("verdict store %q, no database", c.VerdictStore)
		return &Data{}, func() {}, nil
	}

	if c.Database.AutoMigrate {
		if err := RunMigrate(c); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}

	cfg, err := newPgxPoolConfig(c)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}

	cleanup := func() {
		helper.Info("closing db connections")
		pool.Close()
	}
	return &Data{
		Pool:    pool,
		Queries: sqlc.New(pool),
	}, cleanup, nil
}

// newPgxPoolConfig creates a pgxpool.Config from conf.Data
func newPgxPoolConfig(c *conf.Data) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(c.Database.Source)
	if err != nil {
		return nil, err
	}
	pool := c.Database.Pool
	if pool.MaxOpenConns > 0 {
		cfg.MaxConns = pool.MaxOpenConns
	}
	if pool.MinIdleConns > 0 {
		cfg.MinConns = pool.MinIdleConns
	}
	if pool.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = pool.MaxConnLifetime.Std()
	}
	if pool.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pool.MaxConnIdleTime.Std()
	}
	return cfg, nil
}
