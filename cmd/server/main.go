package main

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jobtrackr/jobtrackr/internal/ai"
	"github.com/jobtrackr/jobtrackr/internal/api"
	"github.com/jobtrackr/jobtrackr/internal/config"
	"github.com/jobtrackr/jobtrackr/internal/htmlfetch"
	"github.com/jobtrackr/jobtrackr/internal/parser"
	"github.com/jobtrackr/jobtrackr/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := config.Load()

	dbStore, err := store.NewStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to store", "error", err)
		os.Exit(1)
	}
	defer dbStore.Close()

	workDir, _ := os.Getwd()
	schemaPath := filepath.Join(workDir, "internal", "store", "schema.sql")
	if err := dbStore.RunMigrations(schemaPath); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	fetcher := htmlfetch.New(htmlfetch.Options{
		UserAgent:      cfg.UserAgent,
		DirectTimeout:  cfg.DirectTimeout,
		BrowserTimeout: cfg.BrowserTimeout,
		ChromePath:     cfg.ChromePath,
		Headless:       cfg.Headless,
		MaxHTMLLength:  cfg.MaxHTMLLength,
	})

	aiClient := ai.NewClient(cfg.GroqAPIKey, cfg.GroqModel, cfg.LLMMaxRetries)
	jobParser := parser.New(fetcher, aiClient)

	srv := api.NewServer(dbStore, jobParser)

	slog.Info("starting server", "port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, srv.Router()); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
