package migrations

import (
	"database/sql"
	"fmt"
	"log"
)

type Migration struct {
	Version     int
	Description string
	Func        func(*sql.DB) error
}

var Migrations = []Migration{
	{
		Version:     1,
		Description: "Create core schema",
		Func:        CreateCoreSchema,
	},
	{
		Version:     2,
		Description: "Add watchlist",
		Func:        AddWatchlist,
	},
	// Add future migrations here
}

// CreateMigrationsTable creates the migrations table if it doesn't exist
func CreateMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS schema_migrations (
            version INTEGER PRIMARY KEY,
            description TEXT NOT NULL,
            applied_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
    `)
	return err
}

// RunMigrations runs all pending migrations
func RunMigrations(db *sql.DB) error {
	if err := CreateMigrationsTable(db); err != nil {
		return fmt.Errorf("failed to create migrations table: %v", err)
	}

	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %v", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return fmt.Errorf("failed to scan migration version: %v", err)
		}
		applied[version] = true
	}

	for _, migration := range Migrations {
		if !applied[migration.Version] {
			log.Printf("Running migration %d: %s", migration.Version, migration.Description)

			if err := migration.Func(db); err != nil {
				return fmt.Errorf("migration %d failed: %v", migration.Version, err)
			}

			_, err := db.Exec(
				"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
				migration.Version,
				migration.Description,
			)
			if err != nil {
				return fmt.Errorf("failed to record migration %d: %v", migration.Version, err)
			}

			log.Printf("Migration %d completed successfully", migration.Version)
		}
	}

	return nil
}

// CreateCoreSchema creates the users, portfolios, transactions and holdings
// tables. Monetary columns are NUMERIC(19,6); the transactions seq column
// breaks ordering ties between rows sharing a created_at timestamp.
func CreateCoreSchema(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS users (
            id UUID PRIMARY KEY,
            auth_uid TEXT NOT NULL UNIQUE,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );

        CREATE TABLE IF NOT EXISTS portfolios (
            id UUID PRIMARY KEY,
            user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            cash_balance NUMERIC(19,6) NOT NULL DEFAULT 0 CHECK (cash_balance >= 0),
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );

        CREATE TABLE IF NOT EXISTS transactions (
            id UUID PRIMARY KEY,
            seq BIGSERIAL,
            portfolio_id UUID NOT NULL REFERENCES portfolios(id) ON DELETE CASCADE,
            ticker VARCHAR(20) NOT NULL,
            shares NUMERIC(19,6) NOT NULL CHECK (shares > 0),
            price NUMERIC(19,6) NOT NULL CHECK (price > 0),
            transaction_type VARCHAR(10) NOT NULL CHECK (transaction_type IN ('buy', 'sell')),
            created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
        );

        CREATE INDEX IF NOT EXISTS idx_transactions_portfolio
            ON transactions(portfolio_id, created_at, seq);
        CREATE INDEX IF NOT EXISTS idx_transactions_portfolio_ticker
            ON transactions(portfolio_id, ticker, created_at, seq);

        CREATE TABLE IF NOT EXISTS holdings (
            portfolio_id UUID NOT NULL REFERENCES portfolios(id) ON DELETE CASCADE,
            ticker VARCHAR(20) NOT NULL,
            shares NUMERIC(19,6) NOT NULL CHECK (shares > 0),
            average_cost NUMERIC(19,6) NOT NULL,
            book_value NUMERIC(19,6) NOT NULL,
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (portfolio_id, ticker)
        );
    `)
	return err
}

// AddWatchlist creates the per-user watchlist table.
func AddWatchlist(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS watchlist (
            id UUID PRIMARY KEY,
            user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            ticker VARCHAR(20) NOT NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            UNIQUE (user_id, ticker)
        );
    `)
	return err
}

// RollbackLastMigration drops the objects created by the most recent
// migration and removes its record.
func RollbackLastMigration(db *sql.DB) error {
	var lastVersion int
	err := db.QueryRow(`
        SELECT version FROM schema_migrations
        ORDER BY version DESC LIMIT 1
    `).Scan(&lastVersion)
	if err != nil {
		return fmt.Errorf("failed to get last migration: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	switch lastVersion {
	case 2:
		_, err = tx.Exec(`DROP TABLE IF EXISTS watchlist;`)
	case 1:
		_, err = tx.Exec(`
            DROP TABLE IF EXISTS holdings;
            DROP TABLE IF EXISTS transactions;
            DROP TABLE IF EXISTS portfolios;
            DROP TABLE IF EXISTS users;
        `)
	default:
		return fmt.Errorf("no rollback defined for migration %d", lastVersion)
	}
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        DELETE FROM schema_migrations
        WHERE version = $1
    `, lastVersion)
	if err != nil {
		return err
	}

	return tx.Commit()
}
