package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/lib/pq"

	"stockr/internal/ledger"
)

// GetWatchlist returns the caller's watched tickers, oldest first.
func (s *Server) GetWatchlist(w http.ResponseWriter, r *http.Request) {
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

	rows, err := s.db.Query(`
        SELECT ticker, created_at FROM watchlist
        WHERE user_id = $1
        ORDER BY created_at ASC
    `, userID)
	if err != nil {
		s.logger.Error("Failed to query watchlist: %v", err)
		s.respondWithError(w, http.StatusInternalServerError, "Failed to load watchlist")
		return
	}
	defer rows.Close()

	entries := []WatchlistEntry{}
	for rows.Next() {
		var e WatchlistEntry
		if err := rows.Scan(&e.Ticker, &e.AddedAt); err != nil {
			s.logger.Error("Failed to scan watchlist row: %v", err)
			s.respondWithError(w, http.StatusInternalServerError, "Failed to load watchlist")
			return
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("Watchlist iteration failed: %v", err)
		s.respondWithError(w, http.StatusInternalServerError, "Failed to load watchlist")
		return
	}

	s.respondWithJSON(w, http.StatusOK, entries)
}

// AddToWatchlist adds a ticker to the caller's watchlist. Adding a ticker
// that is already watched is a no-op success.
func (s *Server) AddToWatchlist(w http.ResponseWriter, r *http.Request) {
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

	var req WatchlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	ticker := ledger.NormalizeTicker(req.Ticker)
	if ticker == "" {
		s.respondWithError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	_, err = s.db.Exec(`
        INSERT INTO watchlist (id, user_id, ticker) VALUES ($1, $2, $3)
    `, uuid.NewString(), userID, ticker)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			s.respondWithJSON(w, http.StatusOK, WatchlistEntry{Ticker: ticker})
			return
		}
		s.logger.Error("Failed to add watchlist entry: %v", err)
		s.respondWithError(w, http.StatusInternalServerError, "Failed to update watchlist")
		return
	}

	s.respondWithJSON(w, http.StatusCreated, WatchlistEntry{Ticker: ticker})
}

// RemoveFromWatchlist removes a ticker from the caller's watchlist.
func (s *Server) RemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
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

	ticker := ledger.NormalizeTicker(mux.Vars(r)["ticker"])
	result, err := s.db.Exec(`
        DELETE FROM watchlist WHERE user_id = $1 AND ticker = $2
    `, userID, ticker)
	if err != nil {
		s.logger.Error("Failed to remove watchlist entry: %v", err)
		s.respondWithError(w, http.StatusInternalServerError, "Failed to update watchlist")
		return
	}
	affected, err := result.RowsAffected()
	if err != nil {
		s.logger.Error("Error checking delete result: %v", err)
		s.respondWithError(w, http.StatusInternalServerError, "Failed to update watchlist")
		return
	}
	if affected == 0 {
		s.respondWithError(w, http.StatusNotFound, "Ticker not on watchlist")
		return
	}

	s.respondWithJSON(w, http.StatusOK, map[string]string{"removed": ticker})
}
