package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"stockr/internal/ledger"
)

// transactionsPageSize caps the recent-transactions listing.
const transactionsPageSize = 15

// AddAsset records a buy for the portfolio in the path.
func (s *Server) AddAsset(w http.ResponseWriter, r *http.Request) {
	s.recordTrade(w, r, mux.Vars(r)["id"], ledger.Buy)
}

// SellAsset records a sell for the portfolio in the path.
func (s *Server) SellAsset(w http.ResponseWriter, r *http.Request) {
	s.recordTrade(w, r, mux.Vars(r)["id"], ledger.Sell)
}

// Buy records a buy for the portfolio named in the request body.
func (s *Server) Buy(w http.ResponseWriter, r *http.Request) {
	s.recordTrade(w, r, "", ledger.Buy)
}

// Sell records a sell for the portfolio named in the request body.
func (s *Server) Sell(w http.ResponseWriter, r *http.Request) {
	s.recordTrade(w, r, "", ledger.Sell)
}

func (s *Server) recordTrade(w http.ResponseWriter, r *http.Request, portfolioID string, typ ledger.TransactionType) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if portfolioID == "" {
		portfolioID = req.PortfolioID
	}
	if portfolioID == "" {
		s.respondWithError(w, http.StatusBadRequest, "portfolio_id is required")
		return
	}
	if _, ok := s.authorizePortfolio(w, r, portfolioID); !ok {
		return
	}

	txn, holding, err := s.engine.RecordTrade(r.Context(), portfolioID, req.Ticker, req.Shares, req.Price, typ, time.Time{})
	if err != nil {
		s.respondWithLedgerError(w, err)
		return
	}

	s.logger.Info("Recorded %s of %s %s for portfolio %s", typ, req.Shares, txn.Ticker, portfolioID)
	s.respondWithJSON(w, http.StatusCreated, TradeResponse{Transaction: txn, Holding: holding})
}

// GetTransactions returns the portfolio's most recent transactions,
// newest first.
func (s *Server) GetTransactions(w http.ResponseWriter, r *http.Request) {
	portfolioID := r.URL.Query().Get("portfolio_id")
	if portfolioID == "" {
		s.respondWithError(w, http.StatusBadRequest, "portfolio_id is required")
		return
	}
	if _, ok := s.authorizePortfolio(w, r, portfolioID); !ok {
		return
	}

	txns, err := s.engine.Transactions(r.Context(), portfolioID)
	if err != nil {
		s.respondWithLedgerError(w, err)
		return
	}

	// The engine returns oldest first; take the tail and flip it.
	if len(txns) > transactionsPageSize {
		txns = txns[len(txns)-transactionsPageSize:]
	}
	recent := make([]ledger.Transaction, 0, len(txns))
	for i := len(txns) - 1; i >= 0; i-- {
		recent = append(recent, txns[i])
	}
	s.respondWithJSON(w, http.StatusOK, recent)
}

// DeleteTransaction removes a transaction from the log and restores the
// affected holding to the state it would have without it.
func (s *Server) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	txnID := mux.Vars(r)["id"]
	portfolioID := r.URL.Query().Get("portfolio_id")
	if portfolioID == "" {
		s.respondWithError(w, http.StatusBadRequest, "portfolio_id is required")
		return
	}
	if _, ok := s.authorizePortfolio(w, r, portfolioID); !ok {
		return
	}

	holding, err := s.engine.DeleteTransaction(r.Context(), portfolioID, txnID)
	if err != nil {
		s.respondWithLedgerError(w, err)
		return
	}

	s.logger.Info("Deleted transaction %s from portfolio %s", txnID, portfolioID)
	s.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"deleted": txnID,
		"holding": holding,
	})
}

// UploadTransactions imports a CSV of historical transactions. A clean import
// responds 201; when some rows imported and some failed the response is 207
// with the per-row error list; when nothing imported it is a 400.
func (s *Server) UploadTransactions(w http.ResponseWriter, r *http.Request) {
	portfolioID := mux.Vars(r)["id"]
	if _, ok := s.authorizePortfolio(w, r, portfolioID); !ok {
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Missing file upload")
		return
	}
	defer file.Close()

	result, err := s.engine.ImportCSV(r.Context(), portfolioID, file)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := ImportResponse{Imported: result.Imported, Errors: result.Errors}
	if resp.Errors == nil {
		resp.Errors = []string{}
	}

	status := http.StatusCreated
	switch {
	case result.Imported == 0 && len(result.Errors) > 0:
		status = http.StatusBadRequest
	case len(result.Errors) > 0:
		status = http.StatusMultiStatus
	}

	s.logger.Info("Imported %d transactions into portfolio %s (%d errors)",
		result.Imported, portfolioID, len(result.Errors))
	s.respondWithJSON(w, status, resp)
}

// GetPortfolioHistory returns the daily portfolio valuation series.
func (s *Server) GetPortfolioHistory(w http.ResponseWriter, r *http.Request) {
	portfolioID := mux.Vars(r)["id"]
	if _, ok := s.authorizePortfolio(w, r, portfolioID); !ok {
		return
	}

	points, err := s.engine.BuildHistory(r.Context(), portfolioID)
	if err != nil {
		s.respondWithLedgerError(w, err)
		return
	}
	s.respondWithJSON(w, http.StatusOK, points)
}
