package tracker

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// Authenticator resolves a request to a user ID. Every handler is scoped to
// the resolved user; there is no anonymous access.
type Authenticator interface {
	// Authenticate returns the user ID for a request, or an error when the
	// request carries no valid credentials.
	Authenticate(r *http.Request) (string, error)
}

// DevAuth authenticates every request as a fixed user. For local development
// only; it must be selected explicitly.
type DevAuth struct {
	UserID string
}

func (a *DevAuth) Authenticate(r *http.Request) (string, error) {
	return a.UserID, nil
}

// TokenAuth authenticates requests by bearer token. Tokens maps each accepted
// token to the user it belongs to.
type TokenAuth struct {
	Tokens map[string]string
}

func (a *TokenAuth) Authenticate(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return "", ErrUnauthorized
	}
	userID, ok := a.Tokens[token]
	if !ok {
		return "", ErrUnauthorized
	}
	return userID, nil
}

type contextKey string

const userIDKey contextKey = "userID"

// userIDFrom returns the authenticated user for a request. requireAuth puts
// it there; handlers are never reached without it.
func userIDFrom(r *http.Request) string {
	userID, _ := r.Context().Value(userIDKey).(string)
	return userID
}

// Server handles HTTP requests for the expense tracker API
type Server struct {
	service *Service
	auth    Authenticator
	mux     *http.ServeMux
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, auth Authenticator) *Server {
	return NewServerWithMux(service, auth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, auth Authenticator, mux *http.ServeMux) *Server {
	s := &Server{
		service: service,
		auth:    auth,
		mux:     mux,
	}
	s.registerRoutes()
	return s
}

// corsMiddleware adds CORS headers to responses and answers preflights
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// requireAuth resolves the user and stores it in the request context
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.auth.Authenticate(r)
		if err != nil {
			setCORSHeaders(w)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// registerRoutes registers all API routes on the server's mux.
// Routes must be registered from most specific to least specific to avoid conflicts.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// Receipts: the pipeline endpoints first, then the CRUD ones
	s.mux.HandleFunc("POST /api/receipts/upload", s.requireAuth(s.handleUploadReceipt))
	s.mux.HandleFunc("POST /api/receipts/accept-batch", s.requireAuth(s.handleAcceptReceiptBatch))
	s.mux.HandleFunc("POST /api/receipts/capture", s.requireAuth(s.handleCaptureReceipt))
	s.mux.HandleFunc("POST /api/receipts/{id}/process", s.requireAuth(s.handleProcessReceipt))
	s.mux.HandleFunc("GET /api/receipts/{id}/status", s.requireAuth(s.handleReceiptStatus))
	s.mux.HandleFunc("POST /api/receipts/{id}/accept", s.requireAuth(s.handleAcceptReceipt))
	s.mux.HandleFunc("GET /api/receipts/{id}/file", s.requireAuth(s.handleGetReceiptFile))
	s.mux.HandleFunc("GET /api/receipts/{id}", s.requireAuth(s.handleGetReceipt))
	s.mux.HandleFunc("DELETE /api/receipts/{id}", s.requireAuth(s.handleDeleteReceipt))
	s.mux.HandleFunc("GET /api/receipts", s.requireAuth(s.handleListReceipts))
	s.mux.HandleFunc("POST /api/receipts", s.requireAuth(s.handleUploadReceipt))

	// Expenses
	s.mux.HandleFunc("GET /api/expenses/{id}", s.requireAuth(s.handleGetExpense))
	s.mux.HandleFunc("PUT /api/expenses/{id}", s.requireAuth(s.handleUpdateExpense))
	s.mux.HandleFunc("DELETE /api/expenses/{id}", s.requireAuth(s.handleDeleteExpense))
	s.mux.HandleFunc("GET /api/expenses", s.requireAuth(s.handleListExpenses))
	s.mux.HandleFunc("POST /api/expenses", s.requireAuth(s.handleCreateExpense))

	// Deposits
	s.mux.HandleFunc("GET /api/deposits/{id}", s.requireAuth(s.handleGetDeposit))
	s.mux.HandleFunc("PUT /api/deposits/{id}", s.requireAuth(s.handleUpdateDeposit))
	s.mux.HandleFunc("DELETE /api/deposits/{id}", s.requireAuth(s.handleDeleteDeposit))
	s.mux.HandleFunc("GET /api/deposits", s.requireAuth(s.handleListDeposits))
	s.mux.HandleFunc("POST /api/deposits", s.requireAuth(s.handleCreateDeposit))

	// Recurring rules
	s.mux.HandleFunc("POST /api/recurring-rules/run", s.requireAuth(s.handleRunRecurringRules))
	s.mux.HandleFunc("GET /api/recurring-rules/{id}", s.requireAuth(s.handleGetRecurringRule))
	s.mux.HandleFunc("PUT /api/recurring-rules/{id}", s.requireAuth(s.handleUpdateRecurringRule))
	s.mux.HandleFunc("DELETE /api/recurring-rules/{id}", s.requireAuth(s.handleDeleteRecurringRule))
	s.mux.HandleFunc("GET /api/recurring-rules", s.requireAuth(s.handleListRecurringRules))
	s.mux.HandleFunc("POST /api/recurring-rules", s.requireAuth(s.handleCreateRecurringRule))

	// Mileage
	s.mux.HandleFunc("GET /api/mileage/summary", s.requireAuth(s.handleMileageSummary))
	s.mux.HandleFunc("GET /api/mileage/{id}", s.requireAuth(s.handleGetMileageEntry))
	s.mux.HandleFunc("PUT /api/mileage/{id}", s.requireAuth(s.handleUpdateMileageEntry))
	s.mux.HandleFunc("DELETE /api/mileage/{id}", s.requireAuth(s.handleDeleteMileageEntry))
	s.mux.HandleFunc("GET /api/mileage", s.requireAuth(s.handleListMileageEntries))
	s.mux.HandleFunc("POST /api/mileage", s.requireAuth(s.handleCreateMileageEntry))

	// Budgets
	s.mux.HandleFunc("GET /api/budgets/status", s.requireAuth(s.handleBudgetStatus))
	s.mux.HandleFunc("GET /api/budgets/{id}", s.requireAuth(s.handleGetBudget))
	s.mux.HandleFunc("PUT /api/budgets/{id}", s.requireAuth(s.handleUpdateBudget))
	s.mux.HandleFunc("DELETE /api/budgets/{id}", s.requireAuth(s.handleDeleteBudget))
	s.mux.HandleFunc("GET /api/budgets", s.requireAuth(s.handleListBudgets))
	s.mux.HandleFunc("POST /api/budgets", s.requireAuth(s.handleCreateBudget))

	// Projects (delete archives)
	s.mux.HandleFunc("GET /api/projects/{id}", s.requireAuth(s.handleGetProject))
	s.mux.HandleFunc("PUT /api/projects/{id}", s.requireAuth(s.handleUpdateProject))
	s.mux.HandleFunc("DELETE /api/projects/{id}", s.requireAuth(s.handleArchiveProject))
	s.mux.HandleFunc("GET /api/projects", s.requireAuth(s.handleListProjects))
	s.mux.HandleFunc("POST /api/projects", s.requireAuth(s.handleCreateProject))

	// Categories and tags
	s.mux.HandleFunc("PUT /api/categories/{id}", s.requireAuth(s.handleUpdateCategory))
	s.mux.HandleFunc("DELETE /api/categories/{id}", s.requireAuth(s.handleDeleteCategory))
	s.mux.HandleFunc("GET /api/categories", s.requireAuth(s.handleListCategories))
	s.mux.HandleFunc("POST /api/categories", s.requireAuth(s.handleCreateCategory))
	s.mux.HandleFunc("DELETE /api/tags/{id}", s.requireAuth(s.handleDeleteTag))
	s.mux.HandleFunc("GET /api/tags", s.requireAuth(s.handleListTags))
	s.mux.HandleFunc("POST /api/tags", s.requireAuth(s.handleCreateTag))

	s.mux.HandleFunc("GET /api/tax-categories", s.requireAuth(s.handleListTaxCategories))
	s.mux.HandleFunc("GET /api/stats", s.requireAuth(s.handleStats))
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	// Wrap the mux with CORS middleware to handle all requests including OPTIONS
	return http.ListenAndServe(addr, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			s.mux.ServeHTTP(w, r)
		})(w, r)
	}))
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		s.mux.ServeHTTP(w, r)
	})(w, r)
}
