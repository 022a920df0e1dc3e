package api

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// CreateUser bootstraps the caller: a users row keyed by their auth uid plus
// a default portfolio. Calling it again for a known uid returns the existing
// pair instead of failing, so clients can call it on every login.
func (s *Server) CreateUser(w http.ResponseWriter, r *http.Request) {
	authUID := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if authUID == "" {
		s.respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var userID string
	err := s.db.QueryRow(`SELECT id FROM users WHERE auth_uid = $1`, authUID).Scan(&userID)
	if err == nil {
		portfolioID, err := s.portfolioForUser(userID)
		if err != nil {
			s.logger.Error("Portfolio lookup failed: %v", err)
			s.respondWithError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		s.respondWithJSON(w, http.StatusOK, UserResponse{
			UserID:      userID,
			PortfolioID: portfolioID,
			Created:     false,
		})
		return
	}
	if err != sql.ErrNoRows {
		s.logger.Error("User lookup failed: %v", err)
		s.respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		s.respondWithError(w, http.StatusInternalServerError, "Failed to start transaction")
		return
	}
	defer tx.Rollback()

	userID = uuid.NewString()
	portfolioID := uuid.NewString()

	if _, err := tx.Exec(`INSERT INTO users (id, auth_uid) VALUES ($1, $2)`, userID, authUID); err != nil {
		s.logger.Error("Failed to create user: %v", err)
		s.respondWithError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}
	if _, err := tx.Exec(`INSERT INTO portfolios (id, user_id) VALUES ($1, $2)`, portfolioID, userID); err != nil {
		s.logger.Error("Failed to create portfolio: %v", err)
		s.respondWithError(w, http.StatusInternalServerError, "Failed to create portfolio")
		return
	}
	if err := tx.Commit(); err != nil {
		s.respondWithError(w, http.StatusInternalServerError, "Failed to commit transaction")
		return
	}

	s.logger.Info("Created user %s with portfolio %s", userID, portfolioID)
	s.respondWithJSON(w, http.StatusCreated, UserResponse{
		UserID:      userID,
		PortfolioID: portfolioID,
		Created:     true,
	})
}

// GetPortfolioID returns the caller's portfolio id.
func (s *Server) GetPortfolioID(w http.ResponseWriter, r *http.Request) {
	userID, err := s.currentUserID(r)
	if err == errNoUser {
		s.respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err != nil {
		s.logger.Error("User lookup failed: %v", err)
		s.respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	portfolioID, err := s.portfolioForUser(userID)
	if err != nil {
		s.respondWithError(w, http.StatusNotFound, "Portfolio not found")
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]string{"portfolio_id": portfolioID})
}

// GetPortfolio returns the portfolio's current holdings.
func (s *Server) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	portfolioID := mux.Vars(r)["id"]
	if _, ok := s.authorizePortfolio(w, r, portfolioID); !ok {
		return
	}

	holdings, err := s.engine.Holdings(r.Context(), portfolioID)
	if err != nil {
		s.respondWithLedgerError(w, err)
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio_id": portfolioID,
		"holdings":     holdings,
	})
}

// GetPortfolioGraph returns ticker/book-value pairs for composition charts.
func (s *Server) GetPortfolioGraph(w http.ResponseWriter, r *http.Request) {
	portfolioID := mux.Vars(r)["id"]
	if _, ok := s.authorizePortfolio(w, r, portfolioID); !ok {
		return
	}

	holdings, err := s.engine.Holdings(r.Context(), portfolioID)
	if err != nil {
		s.respondWithLedgerError(w, err)
		return
	}

	points := make([]GraphPoint, 0, len(holdings))
	for _, h := range holdings {
		points = append(points, GraphPoint{Ticker: h.Ticker, BookValue: h.BookValue})
	}
	s.respondWithJSON(w, http.StatusOK, points)
}

// Deposit adds cash to the portfolio balance.
func (s *Server) Deposit(w http.ResponseWriter, r *http.Request) {
	s.adjustCash(w, r, false)
}

// Withdraw removes cash from the portfolio balance, rejecting overdrafts.
func (s *Server) Withdraw(w http.ResponseWriter, r *http.Request) {
	s.adjustCash(w, r, true)
}

func (s *Server) adjustCash(w http.ResponseWriter, r *http.Request, withdraw bool) {
	portfolioID := mux.Vars(r)["id"]
	if _, ok := s.authorizePortfolio(w, r, portfolioID); !ok {
		return
	}

	var req CashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !req.Amount.IsPositive() {
		s.respondWithError(w, http.StatusBadRequest, "Amount must be positive")
		return
	}

	delta := req.Amount
	if withdraw {
		delta = delta.Neg()
	}

	balance, err := s.applyCashDelta(portfolioID, delta)
	if err != nil {
		if err == errInsufficientCash {
			s.respondWithError(w, http.StatusBadRequest, "Insufficient cash balance")
			return
		}
		s.logger.Error("Cash update failed: %v", err)
		s.respondWithError(w, http.StatusInternalServerError, "Failed to update cash balance")
		return
	}

	s.respondWithJSON(w, http.StatusOK, CashResponse{PortfolioID: portfolioID, CashBalance: balance})
}

var errInsufficientCash = fmt.Errorf("insufficient cash balance")

// applyCashDelta updates the balance inside a transaction so the sufficiency
// check and the write see the same row.
func (s *Server) applyCashDelta(portfolioID string, delta decimal.Decimal) (decimal.Decimal, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to start transaction: %v", err)
	}
	defer tx.Rollback()

	var balance decimal.Decimal
	err = tx.QueryRow(`
        SELECT cash_balance FROM portfolios WHERE id = $1 FOR UPDATE
    `, portfolioID).Scan(&balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read cash balance: %v", err)
	}

	balance = balance.Add(delta)
	if balance.IsNegative() {
		return decimal.Zero, errInsufficientCash
	}

	if _, err := tx.Exec(`
        UPDATE portfolios SET cash_balance = $1 WHERE id = $2
    `, balance, portfolioID); err != nil {
		return decimal.Zero, fmt.Errorf("failed to update cash balance: %v", err)
	}
	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to commit transaction: %v", err)
	}
	return balance, nil
}

// GetCashBalance returns the portfolio's current cash balance.
func (s *Server) GetCashBalance(w http.ResponseWriter, r *http.Request) {
	portfolioID := mux.Vars(r)["id"]
	if _, ok := s.authorizePortfolio(w, r, portfolioID); !ok {
		return
	}

	var balance decimal.Decimal
	err := s.db.QueryRow(`SELECT cash_balance FROM portfolios WHERE id = $1`, portfolioID).Scan(&balance)
	if err != nil {
		s.logger.Error("Failed to read cash balance: %v", err)
		s.respondWithError(w, http.StatusInternalServerError, "Failed to read cash balance")
		return
	}
	s.respondWithJSON(w, http.StatusOK, CashResponse{PortfolioID: portfolioID, CashBalance: balance})
}
