package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"expense-tracker/internal/extraction"
	"expense-tracker/internal/tracker"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("expense-tracker")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		dbPath        = fs.StringLong("db", "expense-tracker.db", "Database file path")
		storagePath   = fs.StringLong("storage", "./receipts", "Receipt storage directory path")
		extractorType = fs.StringLong("extractor", "gemini", "Extractor type: 'gemini' or 'ollama'")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, bakllava, qwen2-vl)")
		authMode      = fs.StringLong("auth-mode", "token", "Auth mode: 'token' or 'dev'")
		authTokens    = fs.StringLong("auth-tokens", "", "Comma-separated token=userID pairs for token auth")
		devUser       = fs.StringLong("dev-user", "dev", "User ID every request is attributed to in dev auth mode")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("EXPENSE_TRACKER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := tracker.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize extractor based on type
	var extractor extraction.Extractor
	switch *extractorType {
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini extractor...", "model", *geminiModel)
		extractor, err = extraction.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama extractor...", "url", *ollamaURL, "model", *ollamaModel)
		extractor, err = extraction.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid extractor type", "type", *extractorType, "valid", "gemini or ollama")
		os.Exit(1)
	}
	defer extractor.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := tracker.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize service and seed reference data
	service := tracker.NewService(db, extractor, store)
	if err := service.SeedTaxCategories(); err != nil {
		slog.Error("Failed to seed tax categories", "error", err)
		os.Exit(1)
	}

	// Initialize auth. Dev mode attributes every request to a fixed user and
	// must be opted into.
	var auth tracker.Authenticator
	switch *authMode {
	case "dev":
		slog.Warn("Dev auth enabled: all requests attributed to one user", "user", *devUser)
		auth = &tracker.DevAuth{UserID: *devUser}
	case "token":
		tokens, err := parseTokens(*authTokens)
		if err != nil {
			slog.Error("Invalid auth tokens", "error", err)
			os.Exit(1)
		}
		if len(tokens) == 0 {
			slog.Error("Token auth requires --auth-tokens (or EXPENSE_TRACKER_AUTH_TOKENS)")
			os.Exit(1)
		}
		auth = &tracker.TokenAuth{Tokens: tokens}
	default:
		slog.Error("Invalid auth mode", "mode", *authMode, "valid", "token or dev")
		os.Exit(1)
	}

	server := tracker.NewServer(service, auth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}

// parseTokens parses "token=user,token2=user2" into a lookup map
func parseTokens(s string) (map[string]string, error) {
	tokens := make(map[string]string)
	if s == "" {
		return tokens, nil
	}
	for _, pair := range strings.Split(s, ",") {
		token, userID, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || token == "" || userID == "" {
			return nil, fmt.Errorf("malformed token pair %q: want token=userID", pair)
		}
		tokens[token] = userID
	}
	return tokens, nil
}
