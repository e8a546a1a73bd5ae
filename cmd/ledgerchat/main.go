package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jask/ledgerchat/internal/chat"
	"github.com/jask/ledgerchat/internal/config"
	"github.com/jask/ledgerchat/internal/database"
	"github.com/jask/ledgerchat/internal/database/repository"
	"github.com/jask/ledgerchat/internal/llm"
	"github.com/jask/ledgerchat/internal/logger"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "ledgerchat",
	Short: "Ask questions about your bank statements",
	Long: `LedgerChat answers natural-language questions about imported bank
statement transactions and tracks per-category budgets.

Quick Start:
  ledgerchat import feb.csv --statement 287 --date 2025-02-28
  ledgerchat classify
  ledgerchat budget set groceries 5000
  ledgerchat chat`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.toml (default $HOME/.config/ledgerchat/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env is what most commands need: configuration, logger and an open,
// migrated database.
type env struct {
	cfg   config.Config
	log   zerolog.Logger
	db    *sql.DB
	store *repository.Store
}

func (e *env) Close() error { return e.db.Close() }

func loadConfig() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, zerolog.Logger{}, err
	}
	log := logger.NewJSON()
	if cfg.Log.Pretty {
		log = logger.New()
	}
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	return cfg, logger.SetLevel(log, level), nil
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	db, err := database.OpenAndMigrate(ctx, cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("path", cfg.Database.Path).Msg("database ready")
	return &env{cfg: cfg, log: log, db: db, store: repository.NewStore(db)}, nil
}

func (e *env) completer() (llm.Completer, error) {
	return llm.New(llm.Options{
		Provider: e.cfg.LLM.Provider,
		BaseURL:  e.cfg.LLM.BaseURL,
		APIKey:   e.cfg.LLM.ResolvedAPIKey(),
		Model:    e.cfg.LLM.Model,
		Timeout:  e.cfg.LLM.Timeout,
	})
}

func (e *env) assistant() (*chat.Assistant, error) {
	completer, err := e.completer()
	if err != nil {
		return nil, err
	}
	return chat.NewAssistant(e.store, completer, chat.Options{
		HistoryLimit: e.cfg.Chat.HistoryLimit,
		Logger:       &e.log,
	}), nil
}
