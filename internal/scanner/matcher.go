// Package scanner detects probable duplicate records and clusters them
// into duplicate groups for operator review.
package scanner

import (
	"fmt"
	"strings"

	"github.com/dbsmedya/dedupe/internal/config"
	"github.com/dbsmedya/dedupe/internal/similarity"
	"github.com/dbsmedya/dedupe/internal/types"
)

// Matcher scores record pairs against per-entity matching rules.
type Matcher struct {
	weights config.FieldWeights
}

// NewMatcher creates a matcher using the given global field weights.
func NewMatcher(weights config.FieldWeights) *Matcher {
	return &Matcher{weights: weights}
}

// Compare scores candidate against base under the entity's matching rules.
// The returned match carries candidate's record ID; Score is the composite
// similarity, with MatchedFields and Reasons describing which signals fired.
func (m *Matcher) Compare(entityType types.EntityType, base, candidate types.Record, rules config.MatchingRules) types.DuplicateMatch {
	match := types.DuplicateMatch{RecordID: candidate.ID()}

	var comparisons []similarity.Comparison
	uniqueMatched := make(map[string]bool)

	// Unique identifiers (email, VAT, KVK, SKU) outrank fuzzy field
	// weights when they score above the unique-field threshold.
	for _, field := range rules.UniqueFields {
		score := m.fieldScore(entityType, field, base, candidate)
		if score <= m.weights.UniqueField.Threshold {
			continue
		}
		uniqueMatched[field] = true
		comparisons = append(comparisons, similarity.Comparison{
			Score:  score,
			Weight: m.weights.UniqueField.Weight,
		})
		match.MatchedFields = append(match.MatchedFields, field)
		match.Reasons = append(match.Reasons, fmt.Sprintf("Unique field %s match (%.2f)", field, score))
	}

	for _, field := range rules.MatchingFields {
		if uniqueMatched[field] {
			continue
		}
		score := m.fieldScore(entityType, field, base, candidate)
		if score <= 0 {
			continue
		}
		fw := m.weightFor(field)
		comparisons = append(comparisons, similarity.Comparison{
			Score:  score,
			Weight: fw.Weight,
		})
		if score >= fw.Threshold {
			match.MatchedFields = append(match.MatchedFields, field)
			match.Reasons = append(match.Reasons, fmt.Sprintf("%s similarity %.2f", field, score))
		}
	}

	for _, key := range rules.CompositeKeys {
		score := m.compositeKeyScore(entityType, key, base, candidate)
		if score < key.Threshold {
			continue
		}
		comparisons = append(comparisons, similarity.Comparison{
			Score:  score,
			Weight: m.weights.CompositeKey.Weight,
		})
		joined := strings.Join(key.Fields, "+")
		match.MatchedFields = append(match.MatchedFields, joined)
		match.Reasons = append(match.Reasons, fmt.Sprintf("Composite key %s match (%.2f)", joined, score))
	}

	match.Score = similarity.Composite(comparisons)
	return match
}

// fieldScore compares one field of both records, dispatching on the field
// name to the appropriate similarity calculator.
func (m *Matcher) fieldScore(entityType types.EntityType, field string, a, b types.Record) float64 {
	left := a.GetString(field)
	right := b.GetString(field)
	if left == "" || right == "" {
		return 0
	}

	switch {
	case strings.Contains(field, "email"):
		return similarity.Emails(left, right)
	case strings.Contains(field, "phone"), strings.Contains(field, "mobile"):
		return similarity.PhoneNumbers(left, right)
	case field == "name" && (entityType == types.EntityCustomer || entityType == types.EntitySupplier):
		return similarity.Companies(left, right)
	case field == "name", field == "first_name", field == "last_name":
		return similarity.Names(left, right)
	case field == "sku", strings.Contains(field, "number"):
		return similarity.Numbers(left, right)
	default:
		return similarity.Strings(left, right)
	}
}

// compositeKeyScore averages the per-field scores of a composite key.
// Every declared field must be present on both records for the key to
// count at all.
func (m *Matcher) compositeKeyScore(entityType types.EntityType, key config.CompositeKey, a, b types.Record) float64 {
	if len(key.Fields) == 0 {
		return 0
	}
	var sum float64
	for _, field := range key.Fields {
		if a.GetString(field) == "" || b.GetString(field) == "" {
			return 0
		}
		sum += m.fieldScore(entityType, field, a, b)
	}
	return sum / float64(len(key.Fields))
}

func (m *Matcher) weightFor(field string) config.FieldWeight {
	switch {
	case strings.Contains(field, "email"):
		return m.weights.Email
	case strings.Contains(field, "phone"), strings.Contains(field, "mobile"):
		return m.weights.Phone
	default:
		return m.weights.Name
	}
}
