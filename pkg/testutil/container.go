// Package testutil provides testing utilities for the warehouse service.
// It includes a testcontainers PostgreSQL instance with the warehouse
// schema, sqlmock factories, and common test fixtures.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// PostgresContainerConfig configures the test PostgreSQL container
type PostgresContainerConfig struct {
	Database string
	Username string
	Password string
	Image    string // Optional: defaults to postgres:15-alpine
}

// DefaultPostgresConfig returns sensible defaults for test containers
func DefaultPostgresConfig() PostgresContainerConfig {
	return PostgresContainerConfig{
		Database: "pharmstock_test",
		Username: "test",
		Password: "test",
		Image:    "postgres:15-alpine",
	}
}

// NewPostgresContainer creates a new PostgreSQL test container.
//
// Usage:
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    container, err := testutil.NewPostgresContainer(ctx, testutil.DefaultPostgresConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer container.Terminate(ctx)
//
//	    code := m.Run()
//	    os.Exit(code)
//	}
func NewPostgresContainer(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	if cfg.Image == "" {
		cfg.Image = "postgres:15-alpine"
	}
	if cfg.Database == "" {
		cfg.Database = "pharmstock_test"
	}
	if cfg.Username == "" {
		cfg.Username = "test"
	}
	if cfg.Password == "" {
		cfg.Password = "test"
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(cfg.Image),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: container,
		DSN:               dsn,
	}, nil
}

// Connect returns a sqlx.DB connection to the container
func (c *PostgresContainer) Connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	return c.PostgresContainer.Terminate(ctx)
}

// CreateWarehouseSchema creates the warehouse tables. Mirrors the
// production migrations, including the constraints the error mapping
// relies on.
func (c *PostgresContainer) CreateWarehouseSchema(ctx context.Context, db *sqlx.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS drugs (
			id UUID PRIMARY KEY,
			code VARCHAR(50) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			unit VARCHAR(20) NOT NULL DEFAULT 'box',
			manufacturer VARCHAR(255),
			is_special BOOLEAN NOT NULL DEFAULT FALSE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS stock_batches (
			id UUID PRIMARY KEY,
			drug_id UUID NOT NULL REFERENCES drugs(id),
			batch_number VARCHAR(100) NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 0,
			expiry_date DATE,
			production_date DATE,
			manufacturer VARCHAR(255),
			storage_location VARCHAR(100),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT stock_batches_drug_batch_key UNIQUE (drug_id, batch_number),
			CONSTRAINT stock_batches_quantity_non_negative CHECK (quantity >= 0)
		);

		CREATE TABLE IF NOT EXISTS purchase_orders (
			id UUID PRIMARY KEY,
			document_number VARCHAR(50) UNIQUE NOT NULL,
			supplier VARCHAR(255),
			status VARCHAR(20) NOT NULL DEFAULT 'CREATED',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS purchase_order_lines (
			id UUID PRIMARY KEY,
			order_id UUID NOT NULL REFERENCES purchase_orders(id),
			drug_id UUID NOT NULL REFERENCES drugs(id),
			ordered_quantity INTEGER NOT NULL,
			CONSTRAINT purchase_order_lines_order_drug_key UNIQUE (order_id, drug_id)
		);

		CREATE TABLE IF NOT EXISTS inbound_records (
			id UUID PRIMARY KEY,
			document_number VARCHAR(50) UNIQUE NOT NULL,
			order_id UUID REFERENCES purchase_orders(id),
			drug_id UUID NOT NULL REFERENCES drugs(id),
			batch_number VARCHAR(100) NOT NULL,
			quantity INTEGER NOT NULL,
			expiry_date DATE,
			production_date DATE,
			arrival_date DATE,
			manufacturer VARCHAR(255),
			storage_location VARCHAR(100),
			delivery_note_ref VARCHAR(100),
			admission_tier VARCHAR(20) NOT NULL,
			warning_acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
			force_reason TEXT,
			status VARCHAR(20) NOT NULL,
			operator_id VARCHAR(100) NOT NULL,
			second_operator_id VARCHAR(100),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS outbound_applications (
			id UUID PRIMARY KEY,
			document_number VARCHAR(50) UNIQUE NOT NULL,
			applicant_id VARCHAR(100) NOT NULL,
			department VARCHAR(100) NOT NULL,
			purpose TEXT,
			status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
			approver_id VARCHAR(100),
			second_approver_id VARCHAR(100),
			reject_reason TEXT,
			approved_at TIMESTAMPTZ,
			executed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS outbound_application_lines (
			id UUID PRIMARY KEY,
			application_id UUID NOT NULL REFERENCES outbound_applications(id),
			drug_id UUID NOT NULL REFERENCES drugs(id),
			batch_number VARCHAR(100),
			requested_quantity INTEGER NOT NULL,
			actual_quantity INTEGER
		);

		CREATE TABLE IF NOT EXISTS inventory_adjustments (
			id UUID PRIMARY KEY,
			document_number VARCHAR(50) UNIQUE NOT NULL,
			drug_id UUID NOT NULL REFERENCES drugs(id),
			batch_number VARCHAR(100) NOT NULL,
			quantity_before INTEGER NOT NULL,
			quantity_after INTEGER NOT NULL,
			adjustment_quantity INTEGER NOT NULL,
			reason TEXT NOT NULL,
			operator_id VARCHAR(100) NOT NULL,
			second_operator_id VARCHAR(100),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS document_sequences (
			doc_type VARCHAR(10) NOT NULL,
			seq_date DATE NOT NULL,
			last_value INTEGER NOT NULL,
			PRIMARY KEY (doc_type, seq_date)
		);

		CREATE TABLE IF NOT EXISTS system_settings (
			key VARCHAR(100) PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create warehouse schema: %w", err)
	}

	return nil
}

// TruncateAll empties every warehouse table so tests start clean
func (c *PostgresContainer) TruncateAll(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		TRUNCATE TABLE
			inventory_adjustments,
			outbound_application_lines,
			outbound_applications,
			inbound_records,
			purchase_order_lines,
			purchase_orders,
			stock_batches,
			document_sequences,
			system_settings,
			drugs
		CASCADE
	`)
	if err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	return nil
}
