package main

import (
	"database/sql"

	_ "github.com/lib/pq"

	"stockr/internal/api"
	"stockr/internal/ledger"
	"stockr/internal/marketdata"
	"stockr/internal/migrations"
	"stockr/internal/store"
	"stockr/internal/utils"
)

func main() {
	logger := utils.NewAppLogger()

	config, err := utils.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", config.Database.DSN)
	if err != nil {
		logger.Fatal("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	logger.Info("Connected to database %s", config.Database.DBName)

	if err := migrations.RunMigrations(db); err != nil {
		logger.Fatal("Failed to run migrations: %v", err)
	}

	pg := store.NewPostgres(db)
	engine := ledger.NewEngine(pg.Transactions(), pg.Holdings())
	engine.IncrementalReversal = config.Ledger.IncrementalReversal

	quotes := marketdata.NewClient(config.MarketData, logger)

	server := api.NewServer(logger, config, db, engine, quotes)
	if err := server.Start(); err != nil {
		logger.Fatal("Server failed: %v", err)
	}
}
