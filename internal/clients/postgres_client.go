package clients

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	POSTGRES_MAX_CONNS        = 10
	POSTGRES_CONN_MAX_IDLE    = 5 * time.Minute
	POSTGRES_CONNECT_DEADLINE = 5 * time.Second
)

var (
	postgresInstance Postgres
	postgresOnce     sync.Once
)

type Postgres struct {
	DB *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return Postgres{}, fmt.Errorf("[PostgresClient] invalid dsn: %w", err)
	}
	cfg.MaxConns = POSTGRES_MAX_CONNS
	cfg.MaxConnIdleTime = POSTGRES_CONN_MAX_IDLE

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return Postgres{}, fmt.Errorf("[PostgresClient] failed to create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, POSTGRES_CONNECT_DEADLINE)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return Postgres{}, fmt.Errorf("[PostgresClient] failed to ping PostgreSQL: %w", err)
	}

	slog.Info("[PostgresClient] Connected", slog.String("host", cfg.ConnConfig.Host))
	return Postgres{DB: pool}, nil
}

func GetPostgresClient(ctx context.Context, dsn string) Postgres {
	postgresOnce.Do(func() {
		p, err := NewPostgres(ctx, dsn)
		if err != nil {
			log.Fatalf("%v", err)
		}
		postgresInstance = p
	})

	return postgresInstance
}

func (p Postgres) Close() {
	if p.DB != nil {
		p.DB.Close()
	}
}

func (p Postgres) IsHealthy(ctx context.Context) bool {
	return p.DB != nil && p.DB.Ping(ctx) == nil
}
