package config

import (
	"fmt"
	"strings"

	"github.com/dbsmedya/dedupe/internal/types"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateScan()...)
	errors = append(errors, c.validateRules()...)
	errors = append(errors, c.validateRelations()...)
	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

// ValidateDatabase checks the database settings. It is separate from Validate
// because engine embedders inject their own record store and never connect.
func (c *Config) ValidateDatabase() error {
	var errors ValidationErrors

	if c.Database.Host == "" {
		errors = append(errors, ValidationError{Field: "database.host", Message: "host is required"})
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errors = append(errors, ValidationError{Field: "database.port", Message: "port must be between 1 and 65535"})
	}
	if c.Database.User == "" {
		errors = append(errors, ValidationError{Field: "database.user", Message: "user is required"})
	}
	if c.Database.Database == "" {
		errors = append(errors, ValidationError{Field: "database.database", Message: "database name is required"})
	}
	switch c.Database.TLS {
	case "", "disable", "preferred", "required":
	default:
		errors = append(errors, ValidationError{Field: "database.tls", Message: "must be one of: disable, preferred, required"})
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func validThreshold(v float64) bool {
	return v > 0 && v <= 1
}

func (c *Config) validateScan() ValidationErrors {
	var errors ValidationErrors

	if !validThreshold(c.Scan.Threshold) {
		errors = append(errors, ValidationError{Field: "scan.threshold", Message: "must be in (0, 1]"})
	}
	if !validThreshold(c.Scan.AutoMergeThreshold) {
		errors = append(errors, ValidationError{Field: "scan.auto_merge_threshold", Message: "must be in (0, 1]"})
	}
	if c.Scan.LockTimeoutSecs < 0 {
		errors = append(errors, ValidationError{Field: "scan.lock_timeout_seconds", Message: "must not be negative"})
	}

	weights := map[string]FieldWeight{
		"scan.weights.email":         c.Scan.Weights.Email,
		"scan.weights.name":          c.Scan.Weights.Name,
		"scan.weights.phone":         c.Scan.Weights.Phone,
		"scan.weights.composite_key": c.Scan.Weights.CompositeKey,
		"scan.weights.unique_field":  c.Scan.Weights.UniqueField,
	}
	for field, w := range weights {
		if !validThreshold(w.Threshold) {
			errors = append(errors, ValidationError{Field: field + ".threshold", Message: "must be in (0, 1]"})
		}
		if w.Weight <= 0 {
			errors = append(errors, ValidationError{Field: field + ".weight", Message: "must be positive"})
		}
	}

	return errors
}

func (c *Config) validateRules() ValidationErrors {
	var errors ValidationErrors

	if len(c.Rules) == 0 {
		errors = append(errors, ValidationError{Field: "rules", Message: "at least one entity type must have matching rules"})
		return errors
	}

	for name, rules := range c.Rules {
		field := "rules." + name
		if !types.EntityType(name).Scannable() {
			errors = append(errors, ValidationError{Field: field, Message: "not a scannable entity type"})
		}
		if len(rules.UniqueFields) == 0 && len(rules.MatchingFields) == 0 {
			errors = append(errors, ValidationError{Field: field, Message: "needs at least one unique or matching field"})
		}
		for i, ck := range rules.CompositeKeys {
			ckField := fmt.Sprintf("%s.composite_keys[%d]", field, i)
			if len(ck.Fields) < 2 {
				errors = append(errors, ValidationError{Field: ckField, Message: "composite key needs at least two fields"})
			}
			if !validThreshold(ck.Threshold) {
				errors = append(errors, ValidationError{Field: ckField + ".threshold", Message: "must be in (0, 1]"})
			}
		}
	}

	return errors
}

func (c *Config) validateRelations() ValidationErrors {
	var errors ValidationErrors

	seen := make(map[string]bool)
	for i, rel := range c.Relations {
		field := fmt.Sprintf("relations[%d]", i)
		if rel.Entity == "" || rel.ForeignKey == "" || rel.Parent == "" {
			errors = append(errors, ValidationError{Field: field, Message: "entity, foreign_key, and parent are all required"})
			continue
		}
		if !types.EntityType(rel.Parent).Scannable() {
			errors = append(errors, ValidationError{Field: field + ".parent", Message: "parent must be a scannable entity type"})
		}
		if rel.Entity == rel.Parent {
			errors = append(errors, ValidationError{Field: field, Message: "entity cannot reference itself"})
		}
		key := rel.Entity + "." + rel.ForeignKey
		if seen[key] {
			errors = append(errors, ValidationError{Field: field, Message: "duplicate relation for " + key})
		}
		seen[key] = true
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errors = append(errors, ValidationError{Field: "logging.level", Message: "must be one of: debug, info, warn, error"})
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		errors = append(errors, ValidationError{Field: "logging.format", Message: "must be one of: text, json"})
	}

	return errors
}
