// Package relations resolves the foreign-key dependency catalog between
// record collections: which collections reference which parents, and through
// which field.
package relations

import (
	"fmt"

	"github.com/dbsmedya/dedupe/internal/config"
	"github.com/dbsmedya/dedupe/internal/types"
)

// Relation is one resolved foreign-key dependency edge.
type Relation struct {
	Entity     types.EntityType // dependent collection
	ForeignKey string           // FK field on the dependent record
	Parent     types.EntityType // referenced collection
}

// Catalog indexes relations by parent and by dependent for fast lookup during
// merge relocation and orphan detection.
type Catalog struct {
	relations []Relation
	byParent  map[types.EntityType][]Relation
	byEntity  map[types.EntityType][]Relation
}

// NewCatalog builds a catalog from configured relations. It rejects edges with
// missing pieces or non-scannable parents.
func NewCatalog(rels []config.Relation) (*Catalog, error) {
	c := &Catalog{
		byParent: make(map[types.EntityType][]Relation),
		byEntity: make(map[types.EntityType][]Relation),
	}

	for i, r := range rels {
		if r.Entity == "" || r.ForeignKey == "" || r.Parent == "" {
			return nil, fmt.Errorf("relation %d: entity, foreign_key, and parent are required", i)
		}
		parent := types.EntityType(r.Parent)
		if !parent.Scannable() {
			return nil, fmt.Errorf("relation %d: parent %q is not a scannable entity type", i, r.Parent)
		}
		rel := Relation{
			Entity:     types.EntityType(r.Entity),
			ForeignKey: r.ForeignKey,
			Parent:     parent,
		}
		c.relations = append(c.relations, rel)
		c.byParent[rel.Parent] = append(c.byParent[rel.Parent], rel)
		c.byEntity[rel.Entity] = append(c.byEntity[rel.Entity], rel)
	}

	return c, nil
}

// DefaultCatalog builds a catalog from the built-in relation set.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(config.DefaultConfig().Relations)
	if err != nil {
		// The built-in set is validated by tests; this cannot happen at runtime.
		panic(err)
	}
	return c
}

// DependentsOf returns the relations whose parent is the given entity type:
// the collections that must be visited when relocating foreign keys away from
// a merged record.
func (c *Catalog) DependentsOf(parent types.EntityType) []Relation {
	return c.byParent[parent]
}

// RelationsOf returns the parent relations declared for a dependent entity
// type. Used by orphan detection.
func (c *Catalog) RelationsOf(entity types.EntityType) []Relation {
	return c.byEntity[entity]
}

// HasParents reports whether the entity type declares any parent relationship.
func (c *Catalog) HasParents(entity types.EntityType) bool {
	return len(c.byEntity[entity]) > 0
}

// All returns every relation edge in declaration order.
func (c *Catalog) All() []Relation {
	return c.relations
}
