package cmd

import (
	"fmt"

	"github.com/dbsmedya/dedupe/internal/database"
	"github.com/dbsmedya/dedupe/internal/logger"
	"github.com/spf13/cobra"
)

var validateSkipDB bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and database connectivity",
	Long: `Validate checks the configuration file and the database connection.

Checks performed:
  - Configuration syntax and required fields
  - Matching rules and field weights
  - Relation declarations
  - Database connectivity (unless --skip-db)

Example:
  dedupe validate --config dedupe.yaml`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateSkipDB, "skip-db", false,
		"Validate the configuration only, without connecting")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Fprintf(outputWriter, "Config file: %s\n", configFile)
	fmt.Fprintf(outputWriter, "Matching rules: %d entity type(s)\n", len(cfg.Rules))
	fmt.Fprintf(outputWriter, "Relations: %d\n", len(cfg.Relations))
	fmt.Fprintf(outputWriter, "Scan threshold: %.2f\n", cfg.Scan.Threshold)
	fmt.Fprintln(outputWriter, "Configuration OK")

	if validateSkipDB {
		return nil
	}

	if err := cfg.ValidateDatabase(); err != nil {
		return fmt.Errorf("invalid database configuration: %w", err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	ctx := database.SetupSignalHandler()

	dbManager := database.NewManager(&cfg.Database)
	if err := dbManager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.Ping(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	fmt.Fprintf(outputWriter, "Database: %s@%s:%d/%s reachable\n",
		cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	fmt.Fprintln(outputWriter, "Validation complete")
	return nil
}
