//go:build integration

// Package dbtest starts a throwaway Postgres for repository integration
// tests and loads the service schema into it.
package dbtest

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lesionscan/lesionscan/internal/platform/db"
)

const image = "postgres:16-alpine"

// Start runs a Postgres container, applies the schema and returns a pool
// together with a cleanup function that closes the pool and removes the
// container.
func Start(ctx context.Context) (*pgxpool.Pool, func(), error) {
	ctr, err := postgres.Run(ctx, image,
		postgres.WithDatabase("lesionscan"),
		postgres.WithUsername("lesionscan"),
		postgres.WithPassword("lesionscan"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("start postgres container: %w", err)
	}
	terminate := func() { _ = testcontainers.TerminateContainer(ctr) }

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		terminate()
		return nil, nil, fmt.Errorf("connection string: %w", err)
	}

	pool, err := db.NewPool(ctx, connStr, 5, 0)
	if err != nil {
		terminate()
		return nil, nil, err
	}

	stmts, err := db.SchemaStatements()
	if err != nil {
		pool.Close()
		terminate()
		return nil, nil, err
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			terminate()
			return nil, nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	return pool, func() {
		pool.Close()
		terminate()
	}, nil
}

// Main is a TestMain body: it starts the database, stores the pool in *dst,
// runs the tests and exits.
func Main(m *testing.M, dst **pgxpool.Pool) {
	ctx := context.Background()
	pool, cleanup, err := Start(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up postgres: %v\n", err)
		os.Exit(1)
	}
	*dst = pool
	code := m.Run()
	cleanup()
	os.Exit(code)
}

// Reset empties both tables between tests.
func Reset(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(context.Background(), `TRUNCATE diagnoses, patients`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
}
