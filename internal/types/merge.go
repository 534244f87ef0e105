package types

import "time"

// FieldMerge describes one field considered during a merge: the master's value,
// the representative candidate value, and whether the two disagree.
type FieldMerge struct {
	Field       string      `json:"field"`
	MasterValue interface{} `json:"master_value"`
	MergeValue  interface{} `json:"merge_value"`
	Conflict    bool        `json:"conflict"`
}

// RelationRelocation describes dependent records in one collection whose
// foreign key would be repointed at the master during a merge.
type RelationRelocation struct {
	EntityType    EntityType `json:"entity_type"`
	RelationField string     `json:"relation_field"`
	Count         int        `json:"count"`
	Records       []Record   `json:"records,omitempty"`
}

// MergePreview is the side-effect-free projection of a proposed merge.
// It is computed fresh on demand and never persisted.
type MergePreview struct {
	MasterRecord        Record               `json:"master_record"`
	RecordsToMerge      []Record             `json:"records_to_merge"`
	FieldsToMerge       []FieldMerge         `json:"fields_to_merge"`
	RelationsToRelocate []RelationRelocation `json:"relations_to_relocate"`
}

// ConflictResolution records an operator decision for one conflicted field.
type ConflictResolution struct {
	Field          string      `json:"field"`
	ChosenValue    interface{} `json:"chosen_value"`
	DiscardedValue interface{} `json:"discarded_value"`
}

// RelocatedRelation summarizes foreign-key relocations per dependent collection.
type RelocatedRelation struct {
	EntityType EntityType `json:"entity_type"`
	Count      int        `json:"count"`
}

// MergeDetails describes what a merge changed.
type MergeDetails struct {
	FieldsMerged       []string             `json:"fields_merged"`
	RelationsRelocated []RelocatedRelation  `json:"relations_relocated"`
	ConflictsResolved  []ConflictResolution `json:"conflicts_resolved"`
}

// MergeOperation is the append-only audit record of one executed merge.
// It is immutable once written and is the system of record for what happened.
type MergeOperation struct {
	ID              string       `json:"id"`
	EntityType      EntityType   `json:"entity_type"`
	MasterRecordID  string       `json:"master_record_id"`
	MergedRecordIDs []string     `json:"merged_record_ids"`
	MergedBy        string       `json:"merged_by"`
	MergedAt        time.Time    `json:"merged_at"`
	MergeDetails    MergeDetails `json:"merge_details"`
}
