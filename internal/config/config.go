// Package config provides configuration structures and loading for the
// dedupe engine and CLI.
package config

import "github.com/dbsmedya/dedupe/internal/types"

// Config represents the complete application configuration.
type Config struct {
	Database  DatabaseConfig           `yaml:"database" mapstructure:"database"`
	Scan      ScanConfig               `yaml:"scan" mapstructure:"scan"`
	Rules     map[string]MatchingRules `yaml:"rules" mapstructure:"rules"`
	Relations []Relation               `yaml:"relations" mapstructure:"relations"`
	Logging   LoggingConfig            `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig represents a MySQL database connection configuration.
type DatabaseConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
	QueryTimeoutSecs   int    `yaml:"query_timeout_seconds" mapstructure:"query_timeout_seconds"`
}

// ScanConfig represents duplicate scan thresholds and field weights.
type ScanConfig struct {
	// Threshold is the minimum composite score for a pair to count as a
	// probable duplicate.
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
	// AutoMergeThreshold is the (typically higher) score at or above which a
	// pending group qualifies as an auto-merge candidate.
	AutoMergeThreshold float64 `yaml:"auto_merge_threshold" mapstructure:"auto_merge_threshold"`
	// LockTimeoutSecs bounds advisory lock acquisition for scans and merges.
	LockTimeoutSecs int          `yaml:"lock_timeout_seconds" mapstructure:"lock_timeout_seconds"`
	Weights         FieldWeights `yaml:"weights" mapstructure:"weights"`
}

// FieldWeight couples a per-field acceptance threshold with its contribution
// weight in the composite score.
type FieldWeight struct {
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
	Weight    float64 `yaml:"weight" mapstructure:"weight"`
}

// FieldWeights holds the global per-field-kind weights and thresholds, plus
// the stronger prior applied to unique-field matches.
type FieldWeights struct {
	Email        FieldWeight `yaml:"email" mapstructure:"email"`
	Name         FieldWeight `yaml:"name" mapstructure:"name"`
	Phone        FieldWeight `yaml:"phone" mapstructure:"phone"`
	CompositeKey FieldWeight `yaml:"composite_key" mapstructure:"composite_key"`
	// UniqueField applies when a declared unique field (email, VAT, KVK, SKU)
	// scores above its threshold; it outranks the per-kind weights.
	UniqueField FieldWeight `yaml:"unique_field" mapstructure:"unique_field"`
}

// CompositeKey is a multi-field combination used as an additional,
// lower-weight similarity signal.
type CompositeKey struct {
	Fields    []string `yaml:"fields" mapstructure:"fields"`
	Threshold float64  `yaml:"threshold" mapstructure:"threshold"`
}

// MatchingRules is the immutable per-entity-type matching configuration.
type MatchingRules struct {
	UniqueFields   []string       `yaml:"unique_fields" mapstructure:"unique_fields"`
	MatchingFields []string       `yaml:"matching_fields" mapstructure:"matching_fields"`
	CompositeKeys  []CompositeKey `yaml:"composite_keys" mapstructure:"composite_keys"`
}

// Relation declares a foreign-key dependency: records of Entity reference a
// parent record of Parent through ForeignKey.
type Relation struct {
	Entity     string `yaml:"entity" mapstructure:"entity"`
	ForeignKey string `yaml:"foreign_key" mapstructure:"foreign_key"`
	Parent     string `yaml:"parent" mapstructure:"parent"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns the built-in configuration. The matching rules and
// weights here define scan-result parity: overriding them via YAML is
// supported but the defaults are authoritative.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:               "localhost",
			Port:               3306,
			TLS:                "preferred",
			MaxConnections:     10,
			MaxIdleConnections: 2,
			QueryTimeoutSecs:   30,
		},
		Scan: ScanConfig{
			Threshold:          0.85,
			AutoMergeThreshold: 0.95,
			LockTimeoutSecs:    10,
			Weights: FieldWeights{
				Email:        FieldWeight{Threshold: 0.95, Weight: 0.4},
				Name:         FieldWeight{Threshold: 0.85, Weight: 0.3},
				Phone:        FieldWeight{Threshold: 0.90, Weight: 0.2},
				CompositeKey: FieldWeight{Threshold: 0.80, Weight: 0.1},
				UniqueField:  FieldWeight{Threshold: 0.9, Weight: 0.5},
			},
		},
		Rules:     defaultRules(),
		Relations: defaultRelations(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

func defaultRules() map[string]MatchingRules {
	companyRules := MatchingRules{
		UniqueFields:   []string{"email", "kvk_number", "vat_number"},
		MatchingFields: []string{"name", "email", "phone"},
		CompositeKeys: []CompositeKey{
			{Fields: []string{"name", "city"}, Threshold: 0.8},
		},
	}

	return map[string]MatchingRules{
		string(types.EntityCustomer): companyRules,
		string(types.EntitySupplier): companyRules,
		string(types.EntityInventory): {
			UniqueFields:   []string{"sku"},
			MatchingFields: []string{"name"},
			CompositeKeys: []CompositeKey{
				{Fields: []string{"name", "supplier_id"}, Threshold: 0.85},
			},
		},
		string(types.EntityContact): {
			UniqueFields:   []string{"email"},
			MatchingFields: []string{"name", "email", "phone"},
			CompositeKeys: []CompositeKey{
				{Fields: []string{"first_name", "last_name"}, Threshold: 0.85},
			},
		},
		string(types.EntityEmployee): {
			UniqueFields:   []string{"email"},
			MatchingFields: []string{"name", "email", "phone"},
			CompositeKeys: []CompositeKey{
				{Fields: []string{"name", "department"}, Threshold: 0.85},
			},
		},
	}
}

func defaultRelations() []Relation {
	return []Relation{
		{Entity: string(types.EntityContact), ForeignKey: "customer_id", Parent: string(types.EntityCustomer)},
		{Entity: string(types.EntityInventory), ForeignKey: "supplier_id", Parent: string(types.EntitySupplier)},
		{Entity: string(types.EntityInteraction), ForeignKey: "customer_id", Parent: string(types.EntityCustomer)},
		{Entity: string(types.EntityTask), ForeignKey: "employee_id", Parent: string(types.EntityEmployee)},
		{Entity: string(types.EntityInvoice), ForeignKey: "customer_id", Parent: string(types.EntityCustomer)},
		{Entity: string(types.EntityQuote), ForeignKey: "customer_id", Parent: string(types.EntityCustomer)},
	}
}

// RulesFor returns the matching rules for an entity type.
func (c *Config) RulesFor(entityType types.EntityType) (MatchingRules, bool) {
	r, ok := c.Rules[string(entityType)]
	return r, ok
}

// ApplyOverrides applies CLI flag overrides on top of file configuration.
// Zero values leave the configured value untouched.
func (c *Config) ApplyOverrides(logLevel, logFormat string, threshold float64) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if threshold > 0 {
		c.Scan.Threshold = threshold
	}
}
