package tracker

import (
	"log/slog"
	"net/http"
	"strconv"
)

// yearMonthParams reads year and month query parameters, defaulting to the
// current date for whichever is missing
func (s *Server) yearMonthParams(r *http.Request) (int, int) {
	now := s.service.timeSource.Now()
	year := now.Year()
	month := int(now.Month())

	if v := r.URL.Query().Get("year"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			year = parsed
		}
	}
	if v := r.URL.Query().Get("month"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			month = parsed
		}
	}
	return year, month
}

// handleCreateExpense creates a manually entered expense
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var payload ExpensePayload
	if !decodeBody(w, r, &payload) {
		return
	}

	expense, err := s.service.CreateExpense(userIDFrom(r), &payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, expense)
}

// handleListExpenses returns the user's expenses, filtered by the projectId,
// categoryId and year query parameters
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	filter := ExpenseFilter{
		ProjectID:  r.URL.Query().Get("projectId"),
		CategoryID: r.URL.Query().Get("categoryId"),
	}
	if v := r.URL.Query().Get("year"); v != "" {
		if year, err := strconv.Atoi(v); err == nil {
			filter.Year = year
		}
	}

	expenses, err := s.service.ListExpenses(userIDFrom(r), filter)
	if err != nil {
		slog.Error("Error listing expenses", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, expenses)
}

// handleGetExpense returns a single expense
func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	expense, err := s.service.GetExpense(userIDFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, expense)
}

// handleUpdateExpense replaces an expense's editable fields
func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var payload ExpensePayload
	if !decodeBody(w, r, &payload) {
		return
	}

	expense, err := s.service.UpdateExpense(userIDFrom(r), r.PathValue("id"), &payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, expense)
}

// handleDeleteExpense deletes an expense and detaches its receipts
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteExpense(userIDFrom(r), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleCreateMileageEntry records a trip
func (s *Server) handleCreateMileageEntry(w http.ResponseWriter, r *http.Request) {
	var payload MileagePayload
	if !decodeBody(w, r, &payload) {
		return
	}

	entry, err := s.service.CreateMileageEntry(userIDFrom(r), &payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

// handleListMileageEntries returns the user's trips, optionally limited to
// the year query parameter
func (s *Server) handleListMileageEntries(w http.ResponseWriter, r *http.Request) {
	year := 0
	if v := r.URL.Query().Get("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, "year must be a number", http.StatusBadRequest)
			return
		}
		year = parsed
	}

	entries, err := s.service.ListMileageEntries(userIDFrom(r), year)
	if err != nil {
		slog.Error("Error listing mileage entries", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// handleGetMileageEntry returns a single trip
func (s *Server) handleGetMileageEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.service.GetMileageEntry(userIDFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// handleUpdateMileageEntry edits a trip
func (s *Server) handleUpdateMileageEntry(w http.ResponseWriter, r *http.Request) {
	var payload MileageUpdatePayload
	if !decodeBody(w, r, &payload) {
		return
	}

	entry, err := s.service.UpdateMileageEntry(userIDFrom(r), r.PathValue("id"), &payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// handleDeleteMileageEntry removes a trip
func (s *Server) handleDeleteMileageEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteMileageEntry(userIDFrom(r), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleMileageSummary totals the year's trips
func (s *Server) handleMileageSummary(w http.ResponseWriter, r *http.Request) {
	year, _ := s.yearMonthParams(r)

	summary, err := s.service.SummarizeMileage(userIDFrom(r), year)
	if err != nil {
		slog.Error("Error summarizing mileage", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// handleCreateBudget creates a budget rule
func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var payload BudgetPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	budget, err := s.service.CreateBudget(userIDFrom(r), &payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, budget)
}

// handleListBudgets returns the user's budget rules
func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.service.ListBudgets(userIDFrom(r))
	if err != nil {
		slog.Error("Error listing budgets", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, budgets)
}

// handleGetBudget returns a single budget rule
func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	budget, err := s.service.GetBudget(userIDFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, budget)
}

// handleUpdateBudget edits a budget rule
func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var payload BudgetPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	budget, err := s.service.UpdateBudget(userIDFrom(r), r.PathValue("id"), &payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, budget)
}

// handleDeleteBudget removes a budget rule
func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteBudget(userIDFrom(r), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleBudgetStatus computes actual spend against every budget for the
// reporting period (year and month query parameters, defaulting to now)
func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	year, month := s.yearMonthParams(r)

	statuses, err := s.service.BudgetStatusReport(userIDFrom(r), year, month)
	if err != nil {
		slog.Error("Error computing budget status", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, statuses)
}

// handleCreateProject creates a project
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var payload ProjectPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	project, err := s.service.CreateProject(userIDFrom(r), &payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, project)
}

// handleListProjects returns the user's projects
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.service.ListProjects(userIDFrom(r))
	if err != nil {
		slog.Error("Error listing projects", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, projects)
}

// handleGetProject returns a single project
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.service.GetProject(userIDFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, project)
}

// handleUpdateProject edits a project
func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var payload ProjectPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	project, err := s.service.UpdateProject(userIDFrom(r), r.PathValue("id"), &payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, project)
}

// handleArchiveProject soft-deletes a project
func (s *Server) handleArchiveProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.service.ArchiveProject(userIDFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, project)
}

// handleCreateCategory creates a category
func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var payload CategoryPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	category, err := s.service.CreateCategory(userIDFrom(r), &payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, category)
}

// handleListCategories returns the user's categories
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.service.ListCategories(userIDFrom(r))
	if err != nil {
		slog.Error("Error listing categories", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, categories)
}

// handleUpdateCategory edits a category
func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var payload CategoryPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	category, err := s.service.UpdateCategory(userIDFrom(r), r.PathValue("id"), &payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, category)
}

// handleDeleteCategory removes a category
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteCategory(userIDFrom(r), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleCreateTag creates a tag
func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var payload TagPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	tag, err := s.service.CreateTag(userIDFrom(r), &payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, tag)
}

// handleListTags returns the user's tags
func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.service.ListTags(userIDFrom(r))
	if err != nil {
		slog.Error("Error listing tags", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, tags)
}

// handleDeleteTag removes a tag and detaches it everywhere
func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteTag(userIDFrom(r), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleListTaxCategories returns the seeded IRS schedule lines
func (s *Server) handleListTaxCategories(w http.ResponseWriter, r *http.Request) {
	taxCategories, err := s.service.ListTaxCategories()
	if err != nil {
		slog.Error("Error listing tax categories", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, taxCategories)
}
