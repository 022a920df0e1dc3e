package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"stockr/internal/marketdata"
)

// GetCurrentPrice proxies the cached market quote for a ticker. Quotes are
// display data only; nothing in the ledger reads them.
func (s *Server) GetCurrentPrice(w http.ResponseWriter, r *http.Request) {
	if _, err := s.currentUserID(r); err != nil {
		s.respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ticker := mux.Vars(r)["ticker"]
	quote, err := s.quotes.GetQuote(r.Context(), ticker)
	if err != nil {
		switch {
		case errors.Is(err, marketdata.ErrQuoteNotFound):
			s.respondWithError(w, http.StatusNotFound, "Quote not found")
		case errors.Is(err, marketdata.ErrRateLimited):
			s.respondWithError(w, http.StatusServiceUnavailable, "Quote provider rate limited")
		default:
			s.logger.Error("Quote fetch for %s failed: %v", ticker, err)
			s.respondWithError(w, http.StatusBadGateway, "Quote provider unavailable")
		}
		return
	}

	s.respondWithJSON(w, http.StatusOK, quote)
}
