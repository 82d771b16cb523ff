package tracker

import (
	"log/slog"
	"net/http"
)

// handleCreateDeposit records income against a project
func (s *Server) handleCreateDeposit(w http.ResponseWriter, r *http.Request) {
	var payload DepositPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	deposit, err := s.service.CreateDeposit(userIDFrom(r), &payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, deposit)
}

// handleListDeposits returns the user's deposits, optionally filtered by the
// projectId query parameter
func (s *Server) handleListDeposits(w http.ResponseWriter, r *http.Request) {
	deposits, err := s.service.ListDeposits(userIDFrom(r), r.URL.Query().Get("projectId"))
	if err != nil {
		slog.Error("Error listing deposits", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, deposits)
}

// handleGetDeposit returns a single deposit
func (s *Server) handleGetDeposit(w http.ResponseWriter, r *http.Request) {
	deposit, err := s.service.GetDeposit(userIDFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deposit)
}

// handleUpdateDeposit edits a deposit
func (s *Server) handleUpdateDeposit(w http.ResponseWriter, r *http.Request) {
	var payload DepositUpdatePayload
	if !decodeBody(w, r, &payload) {
		return
	}

	deposit, err := s.service.UpdateDeposit(userIDFrom(r), r.PathValue("id"), &payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deposit)
}

// handleDeleteDeposit removes a deposit
func (s *Server) handleDeleteDeposit(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteDeposit(userIDFrom(r), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleCreateRecurringRule creates a recurring expense rule
func (s *Server) handleCreateRecurringRule(w http.ResponseWriter, r *http.Request) {
	var payload RecurringRulePayload
	if !decodeBody(w, r, &payload) {
		return
	}

	rule, err := s.service.CreateRecurringRule(userIDFrom(r), &payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rule)
}

// handleListRecurringRules returns the user's recurring rules
func (s *Server) handleListRecurringRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.service.ListRecurringRules(userIDFrom(r))
	if err != nil {
		slog.Error("Error listing recurring rules", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, rules)
}

// handleGetRecurringRule returns a single recurring rule
func (s *Server) handleGetRecurringRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.service.GetRecurringRule(userIDFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// handleUpdateRecurringRule edits a recurring rule
func (s *Server) handleUpdateRecurringRule(w http.ResponseWriter, r *http.Request) {
	var payload RecurringRulePayload
	if !decodeBody(w, r, &payload) {
		return
	}

	rule, err := s.service.UpdateRecurringRule(userIDFrom(r), r.PathValue("id"), &payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// handleDeleteRecurringRule removes a recurring rule
func (s *Server) handleDeleteRecurringRule(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteRecurringRule(userIDFrom(r), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleRunRecurringRules materializes every due occurrence into expenses
// and returns what was created
func (s *Server) handleRunRecurringRules(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.service.RunRecurringRules(userIDFrom(r))
	if err != nil {
		slog.Error("Error running recurring rules", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, expenses)
}

// handleStats returns the account-level aggregate view
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.GetStats(userIDFrom(r))
	if err != nil {
		slog.Error("Error computing stats", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
