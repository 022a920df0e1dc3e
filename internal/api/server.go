package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"

	"stockr/internal/ledger"
	"stockr/internal/marketdata"
	"stockr/internal/utils"
)

// Server represents the API server instance
// It handles HTTP requests and manages connections to the database
type Server struct {
	router *mux.Router      // HTTP request router
	logger *utils.AppLogger // Application logger
	config *utils.Config    // Application configuration
	db     *sql.DB          // Database connection
	engine *ledger.Engine   // Transaction ledger engine
	quotes *marketdata.Client
	cron   *cron.Cron
	ctx    context.Context
}

// NewServer creates and initializes a new API server instance
// It configures the HTTP router and starts the quote refresh job
func NewServer(logger *utils.AppLogger, config *utils.Config, db *sql.DB, engine *ledger.Engine, quotes *marketdata.Client) *Server {
	server := &Server{
		router: mux.NewRouter(),
		logger: logger,
		config: config,
		db:     db,
		engine: engine,
		quotes: quotes,
		ctx:    context.Background(),
	}

	server.setupRouter()
	server.setupRoutes()
	server.startQuoteRefresher()
	return server
}

// setupRouter configures the health endpoint and CORS middleware.
func (s *Server) setupRouter() {
	s.router.HandleFunc("/health", s.healthCheck).Methods("GET")
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-User-ID")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// Request logging middleware
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			s.logger.Debug("Request started: %s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
			s.logger.Debug("Request completed: %s %s (%v)", r.Method, r.URL.Path, time.Since(start))
		})
	})
}

// setupRoutes configures APIs for the server.
func (s *Server) setupRoutes() {
	s.logger.Debug("Setting up routes...")

	apiRouter := s.router.PathPrefix("/api").Subrouter()

	// User bootstrap
	apiRouter.HandleFunc("/users", s.CreateUser).Methods("POST")

	// Portfolio routes
	portfolioRouter := apiRouter.PathPrefix("/portfolio").Subrouter()
	routes := []struct {
		path    string
		handler http.HandlerFunc
		methods []string
	}{
		{"/id", s.GetPortfolioID, []string{"GET"}},
		{"/graph/{id}", s.GetPortfolioGraph, []string{"GET"}},
		{"/buy", s.Buy, []string{"POST"}},
		{"/sell", s.Sell, []string{"POST"}},
		{"/{id}/add-asset", s.AddAsset, []string{"POST"}},
		{"/{id}/sell-asset", s.SellAsset, []string{"POST"}},
		{"/{id}/upload-transactions", s.UploadTransactions, []string{"POST"}},
		{"/{id}/history", s.GetPortfolioHistory, []string{"GET"}},
		{"/{id}/deposit", s.Deposit, []string{"POST"}},
		{"/{id}/withdraw", s.Withdraw, []string{"POST"}},
		{"/{id}/cash", s.GetCashBalance, []string{"GET"}},
		{"/{id}", s.GetPortfolio, []string{"GET"}},
	}
	for _, route := range routes {
		portfolioRouter.HandleFunc(route.path, route.handler).Methods(route.methods...)
		s.logger.Debug("Registered route: %s /api/portfolio%s", route.methods[0], route.path)
	}

	// Transaction routes
	apiRouter.HandleFunc("/transactions", s.GetTransactions).Methods("GET")
	apiRouter.HandleFunc("/transactions/{id}", s.DeleteTransaction).Methods("DELETE")

	// Watchlist routes
	apiRouter.HandleFunc("/watchlist", s.GetWatchlist).Methods("GET")
	apiRouter.HandleFunc("/watchlist", s.AddToWatchlist).Methods("POST")
	apiRouter.HandleFunc("/watchlist/{ticker}", s.RemoveFromWatchlist).Methods("DELETE")

	// Market data routes
	apiRouter.HandleFunc("/stock/current/{ticker}", s.GetCurrentPrice).Methods("GET")

	s.logger.Info("Routes setup completed")
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("Starting API server on port %s", s.config.Server.Port)

	srv := &http.Server{
		Addr:         ":" + s.config.Server.Port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP server starting on http://localhost:%s", s.config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error: %v", err)
			errChan <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-stop:
		s.logger.Info("Shutdown signal received")
	}

	s.logger.Info("Shutting down server...")
	if s.cron != nil {
		s.cron.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("Server shutdown failed: %v", err)
		return err
	}

	s.logger.Info("Server stopped gracefully")
	return nil
}

// startQuoteRefresher schedules a periodic warm-up of the quote cache for
// every watchlisted ticker so dashboard reads stay inside the TTL.
func (s *Server) startQuoteRefresher() {
	spec := s.config.MarketData.RefreshSpec
	if spec == "" || s.quotes == nil {
		return
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(spec, func() {
		tickers, err := s.watchedTickers()
		if err != nil {
			s.logger.Error("Quote refresh skipped: %v", err)
			return
		}
		s.logger.Debug("Refreshing quotes for %d tickers", len(tickers))
		ctx, cancel := context.WithTimeout(s.ctx, 2*time.Minute)
		defer cancel()
		s.quotes.Refresh(ctx, tickers)
	})
	if err != nil {
		s.logger.Error("Failed to schedule quote refresh (%q): %v", spec, err)
		return
	}
	s.cron.Start()
	s.logger.Info("Quote refresh scheduled: %s", spec)
}

// watchedTickers returns the distinct tickers across watchlists and holdings.
func (s *Server) watchedTickers() ([]string, error) {
	rows, err := s.db.Query(`
        SELECT ticker FROM watchlist
        UNION
        SELECT ticker FROM holdings
    `)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %v", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %v", err)
		}
		tickers = append(tickers, ticker)
	}
	return tickers, rows.Err()
}

// respondWithError sends an error response with the specified status code and message
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithJSON sends a JSON response with the specified status code and payload
func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

// respondWithLedgerError maps the ledger error taxonomy onto HTTP statuses:
// bad input is the caller's fault, a corrupt log is ours.
func (s *Server) respondWithLedgerError(w http.ResponseWriter, err error) {
	var verr *ledger.ValidationError
	var cerr *ledger.ConsistencyError
	switch {
	case ledger.IsNotFound(err):
		s.respondWithError(w, http.StatusNotFound, "Not found")
	case errors.As(err, &verr):
		s.respondWithError(w, http.StatusBadRequest, verr.Error())
	case errors.As(err, &cerr):
		s.logger.Error("Ledger consistency failure: %v", cerr)
		s.respondWithError(w, http.StatusInternalServerError, "Transaction log is inconsistent; contact support")
	default:
		s.logger.Error("Request failed: %v", err)
		s.respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	s.respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": "1.0.0",
	})
}

// Router exposes the handler tree, used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}
