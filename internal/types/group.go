package types

import "time"

// GroupStatus is the adjudication state of a duplicate group.
type GroupStatus string

const (
	// GroupStatusPending means the group awaits an operator decision.
	GroupStatusPending GroupStatus = "pending"
	// GroupStatusMerged means a merge consumed the group.
	GroupStatusMerged GroupStatus = "merged"
	// GroupStatusIgnored means the operator dismissed the group without deciding.
	GroupStatusIgnored GroupStatus = "ignored"
	// GroupStatusNotDuplicate means the operator judged the records distinct.
	GroupStatusNotDuplicate GroupStatus = "not_duplicate"
)

// Valid reports whether the status is one of the known states.
func (s GroupStatus) Valid() bool {
	switch s {
	case GroupStatusPending, GroupStatusMerged, GroupStatusIgnored, GroupStatusNotDuplicate:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status may move to the target state.
// Transitions are one-way: only pending groups can be adjudicated.
func (s GroupStatus) CanTransitionTo(target GroupStatus) bool {
	if !target.Valid() || s == target {
		return false
	}
	return s == GroupStatusPending
}

// DuplicateMatch is the pairwise comparison result for one candidate record.
// Score is the single authoritative similarity of the two records.
type DuplicateMatch struct {
	RecordID      string   `json:"record_id"`
	Score         float64  `json:"score"`
	MatchedFields []string `json:"matched_fields,omitempty"`
	Reasons       []string `json:"reasons,omitempty"`
}

// DuplicateGroup is a cluster of record ids suspected to represent the same
// real-world entity, produced by a scan pass and adjudicated by an operator.
type DuplicateGroup struct {
	ID                string           `json:"id"`
	EntityType        EntityType       `json:"entity_type"`
	RecordIDs         []string         `json:"record_ids"`
	Matches           []DuplicateMatch `json:"matches"`
	OverallScore      float64          `json:"overall_score"`
	MatchReason       string           `json:"match_reason"`
	SuggestedMasterID string           `json:"suggested_master_id"`
	Status            GroupStatus      `json:"status"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	LastScanAt        time.Time        `json:"last_scan_at"`
}

// HasRecord reports whether the record id is a member of the group.
func (g *DuplicateGroup) HasRecord(id string) bool {
	for _, rid := range g.RecordIDs {
		if rid == id {
			return true
		}
	}
	return false
}

// AddRecord appends a record id, keeping the membership set deduplicated.
func (g *DuplicateGroup) AddRecord(id string) {
	if !g.HasRecord(id) {
		g.RecordIDs = append(g.RecordIDs, id)
	}
}

// Clone returns a deep copy of the group.
func (g *DuplicateGroup) Clone() *DuplicateGroup {
	out := *g
	out.RecordIDs = append([]string(nil), g.RecordIDs...)
	out.Matches = make([]DuplicateMatch, len(g.Matches))
	for i, m := range g.Matches {
		out.Matches[i] = m
		out.Matches[i].MatchedFields = append([]string(nil), m.MatchedFields...)
		out.Matches[i].Reasons = append([]string(nil), m.Reasons...)
	}
	return &out
}
