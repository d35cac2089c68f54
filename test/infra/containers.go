package infra

import (
	"context"
	"os"

	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// PGContainer wraps the disposable Postgres behind the integration and stress
// tests. A zero value stands in for an externally managed database that the
// tests must not terminate.
type PGContainer struct {
	C *postgres.PostgresContainer
}

// StartPostgres16 boots a throwaway Postgres 16 container for one test run.
// overrideDSN or CREDITFLOW_TEST_PG_DSN short-circuit to an existing server
// so CI and local runs can share one instance across packages.
func StartPostgres16(ctx context.Context, overrideDSN string) (*PGContainer, string, error) {
	if overrideDSN != "" {
		return &PGContainer{}, overrideDSN, nil
	}
	if dsn := os.Getenv("CREDITFLOW_TEST_PG_DSN"); dsn != "" {
		return &PGContainer{}, dsn, nil
	}

	pgC, err := postgres.Run(ctx,
		"postgres:16",
		postgres.WithDatabase("creditflow"),
		postgres.WithUsername("creditflow"),
		postgres.WithPassword("creditflow"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, "", err
	}

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgC.Terminate(ctx)
		return nil, "", err
	}
	return &PGContainer{C: pgC}, dsn, nil
}

func (p *PGContainer) Terminate(ctx context.Context) error {
	if p == nil || p.C == nil {
		return nil
	}
	return p.C.Terminate(ctx)
}
