// Package backend opens the odm.Store selected by a config.Config.
package backend

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/sirupsen/logrus"

	"github.com/tsanga/musty/internal/config"
	"github.com/tsanga/musty/odm"
	"github.com/tsanga/musty/stores/memory"
	mongostore "github.com/tsanga/musty/stores/mongo"
	"github.com/tsanga/musty/stores/mssql"
	"github.com/tsanga/musty/stores/postgres"
)

// Open connects to the configured backend. The returned func releases the
// connection and must be called once the store is no longer used.
func Open(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (odm.Store, func(), error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	switch cfg.Backend {
	case config.BackendMemory:
		return memory.NewStore(memory.StoreOptions{Logger: logger}), func() {}, nil

	case config.BackendMongo:
		client, err := mongostore.Connect(ctx, mongostore.ClientOptions{URI: cfg.Mongo.URI})
		if err != nil {
			return nil, nil, err
		}
		closeClient := func() { _ = client.Disconnect(context.Background()) }
		store, err := mongostore.NewStore(client.Database(cfg.Mongo.Database), mongostore.StoreOptions{Logger: logger})
		if err != nil {
			closeClient()
			return nil, nil, err
		}
		return store, closeClient, nil

	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		store, err := postgres.NewStore(pool, postgres.StoreOptions{Schema: cfg.Postgres.Schema, Logger: logger})
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil

	case config.BackendMSSQL:
		db, err := sql.Open("sqlserver", cfg.MSSQL.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mssql: %w", err)
		}
		closeDB := func() { _ = db.Close() }
		if err := db.PingContext(ctx); err != nil {
			closeDB()
			return nil, nil, fmt.Errorf("ping mssql: %w", err)
		}
		store, err := mssql.NewStore(db, mssql.StoreOptions{Schema: cfg.MSSQL.Schema, Logger: logger})
		if err != nil {
			closeDB()
			return nil, nil, err
		}
		return store, closeDB, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
