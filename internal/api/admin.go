package api

import (
	"net/http"

	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/pool"

	"github.com/go-chi/chi/v5"
)

// isAdmin writes a 403 and returns false unless the caller is the administrator
func (s *Server) isAdmin(w http.ResponseWriter, r *http.Request) bool {
	admin, err := s.pool.Admin(r.Context())
	if err != nil {
		writePoolError(w, err)
		return false
	}
	if c := caller(r); c == "" || c != admin {
		writePoolError(w, pool.ErrUnauthorized)
		return false
	}
	return true
}

func (s *Server) parameters(w http.ResponseWriter, r *http.Request) {
	params, err := s.pool.Parameters(r.Context())
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, params)
}

func (s *Server) updateParameters(w http.ResponseWriter, r *http.Request) {
	var doc models.ParametersDocument
	if err := decodeJSON(r.Body, &doc); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	params, err := doc.ToParameters()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.pool.UpdateParameters(r.Context(), caller(r), *params); err != nil {
		writePoolError(w, err)
		return
	}
	s.parameters(w, r)
}

func (s *Server) setFeeRate(w http.ResponseWriter, r *http.Request) {
	var req models.FeeRateRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.pool.SetFeeRate(r.Context(), caller(r), req.FeeRateBps); err != nil {
		writePoolError(w, err)
		return
	}
	s.parameters(w, r)
}

func (s *Server) admin(w http.ResponseWriter, r *http.Request) {
	admin, err := s.pool.Admin(r.Context())
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.AdminRequest{AdminId: admin})
}

func (s *Server) setAdmin(w http.ResponseWriter, r *http.Request) {
	var req models.AdminRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.pool.SetAdmin(r.Context(), caller(r), req.AdminId); err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) blacklist(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.pool.Blacklist(r.Context())
	if err != nil {
		writePoolError(w, err)
		return
	}
	if accounts == nil {
		accounts = []string{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) blacklistStatus(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	banned, err := s.pool.IsBlacklisted(r.Context(), account)
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.BlacklistStatus{Account: account, Blacklisted: banned})
}

func (s *Server) addToBlacklist(w http.ResponseWriter, r *http.Request) {
	s.updateBlacklist(w, r, true)
}

func (s *Server) removeFromBlacklist(w http.ResponseWriter, r *http.Request) {
	s.updateBlacklist(w, r, false)
}

func (s *Server) updateBlacklist(w http.ResponseWriter, r *http.Request, add bool) {
	account := chi.URLParam(r, "account")
	if err := s.pool.SetBlacklist(r.Context(), caller(r), account, add); err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.BlacklistStatus{Account: account, Blacklisted: add})
}

func (s *Server) oracle(w http.ResponseWriter, r *http.Request) {
	value, err := s.pool.Oracle(r.Context())
	if err != nil {
		writePoolError(w, err)
		return
	}
	if value == nil {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Kind: "NotSet", Error: "oracle value not set"})
		return
	}
	writeJSON(w, http.StatusOK, value)
}

func (s *Server) setOracle(w http.ResponseWriter, r *http.Request) {
	var req models.OracleRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.pool.SetOracle(r.Context(), caller(r), req.Rate); err != nil {
		writePoolError(w, err)
		return
	}
	s.oracle(w, r)
}

func (s *Server) emergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	var req models.EmergencyWithdrawRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	transfer, err := s.pool.EmergencyWithdraw(r.Context(), caller(r), req.Amount)
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transfer)
}

func (s *Server) pendingEmergencyWithdrawals(w http.ResponseWriter, r *http.Request) {
	transfers, err := s.pool.PendingEmergencyTransfers(r.Context())
	if err != nil {
		writePoolError(w, err)
		return
	}
	if transfers == nil {
		transfers = []models.EmergencyTransfer{}
	}
	writeJSON(w, http.StatusOK, transfers)
}

func (s *Server) resolveEmergencyWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req models.SettleRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	transfer, err := s.pool.ResolveEmergencyTransfer(r.Context(), caller(r), chi.URLParam(r, "transferRef"), req.Succeeded, req.Reason)
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transfer)
}
