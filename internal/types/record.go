// Package types contains shared types used across multiple packages to avoid import cycles.
package types

import "time"

// EntityType identifies a record collection in the host record store.
type EntityType string

// Entity types subject to duplicate scanning.
const (
	EntityCustomer  EntityType = "customer"
	EntitySupplier  EntityType = "supplier"
	EntityInventory EntityType = "inventory"
	EntityContact   EntityType = "contact"
	EntityEmployee  EntityType = "employee"
)

// Dependent collections that reference the scannable entities via foreign keys.
const (
	EntityInteraction EntityType = "interaction"
	EntityTask        EntityType = "task"
	EntityInvoice     EntityType = "invoice"
	EntityQuote       EntityType = "quote"
)

// ScannableEntityTypes returns the entity types that participate in duplicate
// scanning, in a fixed order.
func ScannableEntityTypes() []EntityType {
	return []EntityType{
		EntityCustomer,
		EntitySupplier,
		EntityInventory,
		EntityContact,
		EntityEmployee,
	}
}

// Scannable reports whether the entity type participates in duplicate scanning.
func (e EntityType) Scannable() bool {
	switch e {
	case EntityCustomer, EntitySupplier, EntityInventory, EntityContact, EntityEmployee:
		return true
	}
	return false
}

// Known reports whether the entity type names any collection the engine works
// with, including dependent collections.
func (e EntityType) Known() bool {
	if e.Scannable() {
		return true
	}
	switch e {
	case EntityInteraction, EntityTask, EntityInvoice, EntityQuote:
		return true
	}
	return false
}

// Well-known record fields shared by every collection.
const (
	FieldID         = "id"
	FieldIsDeleted  = "is_deleted"
	FieldDeletedAt  = "deleted_at"
	FieldMergedInto = "merged_into_id"
	FieldCreatedAt  = "created_at"
	FieldUpdatedAt  = "updated_at"
)

// Record is a loosely-typed record as stored by the host record store:
// a mapping of field name to value. The engine reads records and, during a
// merge, mutates specific fields through the store interface.
type Record map[string]interface{}

// ID returns the record identifier, or "" if absent.
func (r Record) ID() string {
	return ToString(r[FieldID])
}

// IsDeleted reports whether the record carries a soft-delete flag.
func (r Record) IsDeleted() bool {
	return ToBool(r[FieldIsDeleted])
}

// GetString returns the field value coerced to a string ("" when absent or nil).
func (r Record) GetString(field string) string {
	return ToString(r[field])
}

// Has reports whether the field is present with a non-empty value.
func (r Record) Has(field string) bool {
	v, ok := r[field]
	return ok && !IsEmpty(v)
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// MergeFieldExcluded reports whether a field is excluded from field merging:
// identity, timestamps, and soft-delete/tombstone bookkeeping.
func MergeFieldExcluded(field string) bool {
	switch field {
	case FieldID, FieldIsDeleted, FieldDeletedAt, FieldMergedInto, FieldCreatedAt, FieldUpdatedAt:
		return true
	}
	return false
}

// Tombstone returns the partial update that soft-deletes a record merged into
// the given master.
func Tombstone(masterID string, at time.Time) map[string]interface{} {
	return map[string]interface{}{
		FieldIsDeleted:  true,
		FieldDeletedAt:  at,
		FieldMergedInto: masterID,
	}
}
