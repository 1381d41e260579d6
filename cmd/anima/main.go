package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/atelier-anima/anima/internal/alerts"
	"github.com/atelier-anima/anima/internal/api"
	"github.com/atelier-anima/anima/internal/dialogue"
	"github.com/atelier-anima/anima/internal/genai"
	"github.com/atelier-anima/anima/internal/growth"
	"github.com/atelier-anima/anima/internal/lifecycle"
	"github.com/atelier-anima/anima/internal/lockfile"
	"github.com/atelier-anima/anima/internal/policy"
	"github.com/atelier-anima/anima/internal/recovery"
	"github.com/atelier-anima/anima/internal/seed"
	"github.com/atelier-anima/anima/internal/store"
	"github.com/atelier-anima/anima/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Anima state data
	DefaultStateDir = "/var/lib/anima"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "anima.db"
	// DefaultAuditFileName is the default generative-call audit log filename
	DefaultAuditFileName = "genai_audit.jsonl"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	if err := run(flags); err != nil {
		slog.Error("Anima failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Anima exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	StateDir    string
	OpenAIKey   string
	APIAddr     string
	SeedDir     string
	AdminToken  string
	Model       string
}

// Flags holds command line flag values
type Flags struct {
	stateDir   *string
	dbDSN      *string
	openaiKey  *string
	apiAddr    *string
	seedDir    *string
	adminToken *string
	model      *string
}

// initializeLogger sets up structured logging; ANIMA_DEBUG raises the level.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("ANIMA_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    util.EnvOrDefault("ANIMA_STATE_DIR", DefaultStateDir),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		APIAddr:     os.Getenv("API_ADDR"),
		SeedDir:     os.Getenv("ANIMA_SEED_DIR"),
		AdminToken:  os.Getenv("ANIMA_ADMIN_TOKEN"),
		Model:       util.EnvOrDefault("ANIMA_MODEL", genai.DefaultModel),
	}

	// Without a database URL, default to SQLite in the state directory.
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"ANIMA_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"ANIMA_SEED_DIR", config.SeedDir,
		"ANIMA_ADMIN_TOKEN_SET", config.AdminToken != "",
		"ANIMA_MODEL", config.Model)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:   flag.String("state-dir", config.StateDir, "state directory for Anima data (overrides $ANIMA_STATE_DIR)"),
		dbDSN:      flag.String("db-dsn", config.DatabaseURL, "database DSN (overrides $DATABASE_URL)"),
		openaiKey:  flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:    flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		seedDir:    flag.String("seed-dir", config.SeedDir, "directory with YAML seed content (overrides $ANIMA_SEED_DIR)"),
		adminToken: flag.String("admin-token", config.AdminToken, "bearer token guarding /admin routes (overrides $ANIMA_ADMIN_TOKEN)"),
		model:      flag.String("model", config.Model, "generative model identifier (overrides $ANIMA_MODEL)"),
	}

	flag.Parse()

	// Follow a state-dir override when the DSN was the derived SQLite default.
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates the state directory for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		return nil
	}
	stateDir := filepath.Dir(*flags.dbDSN)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
		return err
	}
	return nil
}

// run wires the components and serves until interrupted.
func run(flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// File-backed state tolerates exactly one writer.
	if store.DetectDSNType(*flags.dbDSN) != "postgres" {
		lock, err := lockfile.AcquireLock(*flags.stateDir)
		if err != nil {
			return err
		}
		defer lock.Release()
	}

	st, err := store.NewStore(store.WithDSN(*flags.dbDSN))
	if err != nil {
		return err
	}
	defer st.Close()

	seeder := seed.NewSeeder(st, *flags.seedDir)
	if err := seeder.EnsureSeeded(ctx); err != nil {
		return err
	}
	if err := recovery.VerifyInstallationState(ctx, st); err != nil {
		return err
	}
	if _, err := recovery.SweepOrphanedSessions(ctx, st); err != nil {
		return err
	}

	auditLogger, auditFile := openAuditLogger(*flags.stateDir)
	if auditFile != nil {
		defer auditFile.Close()
	}
	if auditLogger != nil {
		defer auditLogger.Close()
	}

	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if auditLogger != nil {
		genaiOpts = append(genaiOpts, genai.WithAuditLogger(auditLogger))
	}
	gen, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return err
	}

	notifier := buildNotifier()
	policyEngine := policy.NewEngine(st)
	growthResolver := growth.NewResolver(st)
	manager := lifecycle.NewManager(st, gen, growthResolver, lifecycle.WithModel(*flags.model))
	orchestrator := dialogue.NewOrchestrator(st, gen, policyEngine, growthResolver, manager, notifier,
		dialogue.WithModel(*flags.model))

	nudgeDelay := util.ParseDurationEnv("ANIMA_NUDGE_DELAY", dialogue.DefaultInactivityDelay)
	watcher := dialogue.NewInactivityWatcher(nudgeDelay, func(sessionID string) {
		if _, err := orchestrator.Nudge(context.Background(), sessionID, 0); err != nil {
			slog.Warn("inactivity nudge failed", "session", sessionID, "error", err)
		}
	})
	defer watcher.Stop()

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.adminToken != "" {
		apiOpts = append(apiOpts, api.WithAdminToken(*flags.adminToken))
	}
	server := api.NewServer(st, manager, orchestrator, policyEngine, watcher, apiOpts...)

	slog.Info("Bootstrapping Anima", "db", store.DetectDSNType(*flags.dbDSN), "nudge_delay", nudgeDelay, "model", *flags.model)
	return server.Start(ctx)
}

// openAuditLogger opens the generative-call audit log in the state
// directory. Failure to open it is tolerated; calls simply go unaudited.
func openAuditLogger(stateDir string) (*genai.AuditLogger, *os.File) {
	path := filepath.Join(stateDir, DefaultAuditFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		slog.Warn("failed to open genai audit log, auditing disabled", "path", path, "error", err)
		return nil, nil
	}
	return genai.NewAuditLogger(f), f
}

// buildNotifier creates the operator alert notifier, falling back to a noop
// when Twilio credentials are not configured.
func buildNotifier() alerts.Notifier {
	if os.Getenv("TWILIO_ACCOUNT_SID") == "" {
		slog.Info("Twilio credentials not set, operator alerts disabled")
		return alerts.NoopNotifier{}
	}
	n, err := alerts.NewTwilioNotifier()
	if err != nil {
		slog.Warn("failed to configure Twilio notifier, operator alerts disabled", "error", err)
		return alerts.NoopNotifier{}
	}
	return n
}
