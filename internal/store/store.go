package store

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store wraps a PostgreSQL connection pool.
type Store struct {
	db     *pgxpool.Pool
	dsn    string
	logger *zap.Logger
}

// New creates a Store with a pgx connection pool.
func New(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("PostgreSQL connected")
	return &Store{db: pool, dsn: dsn, logger: logger}, nil
}

// Migrate applies all pending embedded up-migrations. It is safe to run
// on every start.
func (s *Store) Migrate() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, s.dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}

	ver, dirty, _ := m.Version()
	s.logger.Info("Database migrations applied", zap.Uint("version", ver), zap.Bool("dirty", dirty))
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.db.Close()
}

// Turns returns the conversation repository.
func (s *Store) Turns() *TurnStore { return &TurnStore{db: s.db} }

// Facts returns the memory repository.
func (s *Store) Facts() *FactStore { return &FactStore{db: s.db} }

// Protocols returns the protocol repository.
func (s *Store) Protocols() *ProtocolStore { return &ProtocolStore{db: s.db} }

// Users returns the user repository.
func (s *Store) Users() *UserStore { return &UserStore{db: s.db} }

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
