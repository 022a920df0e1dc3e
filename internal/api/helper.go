package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var errNoUser = errors.New("no authenticated user")

// currentUserID resolves the authenticated caller to a users row. The
// upstream gateway verifies identity and forwards the stable auth uid in
// the X-User-ID header; this service only maps it to its own user id.
func (s *Server) currentUserID(r *http.Request) (string, error) {
	authUID := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if authUID == "" {
		return "", errNoUser
	}

	var userID string
	err := s.db.QueryRow(`SELECT id FROM users WHERE auth_uid = $1`, authUID).Scan(&userID)
	if err == sql.ErrNoRows {
		return "", errNoUser
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %v", err)
	}
	return userID, nil
}

// portfolioForUser returns the user's portfolio id.
func (s *Server) portfolioForUser(userID string) (string, error) {
	var portfolioID string
	err := s.db.QueryRow(`
        SELECT id FROM portfolios
        WHERE user_id = $1
        ORDER BY created_at ASC
        LIMIT 1
    `, userID).Scan(&portfolioID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("no portfolio for user")
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up portfolio: %v", err)
	}
	return portfolioID, nil
}

// validatePortfolioOwner checks that the portfolio exists and belongs to the
// caller before any handler touches it.
func (s *Server) validatePortfolioOwner(portfolioID, userID string) error {
	var exists bool
	err := s.db.QueryRow(`
        SELECT EXISTS(SELECT 1 FROM portfolios WHERE id = $1 AND user_id = $2)
    `, portfolioID, userID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check portfolio: %v", err)
	}
	if !exists {
		return fmt.Errorf("portfolio not found")
	}
	return nil
}

// authorizePortfolio combines caller resolution and ownership validation,
// writing the error response itself. Returns "" when the request was denied.
func (s *Server) authorizePortfolio(w http.ResponseWriter, r *http.Request, portfolioID string) (string, bool) {
	userID, err := s.currentUserID(r)
	if err == errNoUser {
		s.respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}
	if err != nil {
		s.logger.Error("User lookup failed: %v", err)
		s.respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return "", false
	}
	if err := s.validatePortfolioOwner(portfolioID, userID); err != nil {
		s.respondWithError(w, http.StatusNotFound, "Portfolio not found")
		return "", false
	}
	return userID, true
}
