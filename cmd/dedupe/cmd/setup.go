package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dbsmedya/dedupe/internal/config"
	"github.com/dbsmedya/dedupe/internal/database"
	"github.com/dbsmedya/dedupe/internal/engine"
	"github.com/dbsmedya/dedupe/internal/groups"
	"github.com/dbsmedya/dedupe/internal/logger"
	"github.com/dbsmedya/dedupe/internal/merge"
	"github.com/dbsmedya/dedupe/internal/relations"
	"github.com/dbsmedya/dedupe/internal/store"
	"github.com/dbsmedya/dedupe/internal/types"
)

// outputWriter is used for printing output, can be overridden in tests
var outputWriter io.Writer = os.Stdout

// setOutputWriter sets the output writer (used for testing)
func setOutputWriter(w io.Writer) {
	outputWriter = w
}

// resetOutputWriter resets output to stdout (used for testing)
func resetOutputWriter() {
	outputWriter = os.Stdout
}

// loadConfig reads the configuration file and applies CLI flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat, overrides.Threshold)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// appEnv bundles the connected runtime dependencies a command needs.
type appEnv struct {
	cfg *config.Config
	log *logger.Logger
	db  *database.Manager
	eng *engine.Engine
}

// newAppEnv loads configuration, connects to the database, initializes the
// engine state tables and wires the engine. Callers must Close the result.
func newAppEnv(ctx context.Context) (*appEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := cfg.ValidateDatabase(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	dbManager := database.NewManager(&cfg.Database)
	if err := dbManager.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	env, err := buildEngine(ctx, cfg, log, dbManager)
	if err != nil {
		dbManager.Close()
		return nil, err
	}
	return env, nil
}

func buildEngine(ctx context.Context, cfg *config.Config, log *logger.Logger, dbManager *database.Manager) (*appEnv, error) {
	catalog, err := relations.NewCatalog(cfg.Relations)
	if err != nil {
		return nil, fmt.Errorf("invalid relation config: %w", err)
	}

	queryTimeout := time.Duration(cfg.Database.QueryTimeoutSecs) * time.Second
	records, err := store.NewMySQL(dbManager.DB, catalog, queryTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create record store: %w", err)
	}

	groupStore, err := groups.NewMySQL(dbManager.DB, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create group store: %w", err)
	}
	if err := groupStore.InitializeTables(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize group tables: %w", err)
	}

	mergeLog, err := merge.NewMySQLLog(dbManager.DB, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create merge log: %w", err)
	}
	if err := mergeLog.InitializeTables(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize merge log tables: %w", err)
	}

	eng, err := engine.New(cfg, engine.Options{
		Records:  records,
		Groups:   groupStore,
		MergeLog: mergeLog,
		Catalog:  catalog,
		Logger:   log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	return &appEnv{cfg: cfg, log: log, db: dbManager, eng: eng}, nil
}

// Close releases the database connection and flushes buffered log entries.
func (e *appEnv) Close() {
	if e.db != nil {
		e.db.Close()
	}
	if e.log != nil {
		e.log.Sync()
	}
}

// parseEntity resolves a --entity flag value to a known entity type.
func parseEntity(value string) (types.EntityType, error) {
	et := types.EntityType(strings.ToLower(strings.TrimSpace(value)))
	if !et.Known() {
		return "", fmt.Errorf("unknown entity type %q", value)
	}
	return et, nil
}

// parseScannableEntity resolves a --entity flag value to an entity type that
// participates in duplicate scanning.
func parseScannableEntity(value string) (types.EntityType, error) {
	et, err := parseEntity(value)
	if err != nil {
		return "", err
	}
	if !et.Scannable() {
		return "", fmt.Errorf("entity type %q is not scannable", value)
	}
	return et, nil
}
