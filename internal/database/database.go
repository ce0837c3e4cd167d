// Package database links near-Earth objects to their close approaches and
// indexes them for constant-time lookup and lazy, predicate-filtered queries.
//
// A NEODatabase is immutable once New returns, so it is safe for concurrent
// readers without locking.
package database

import (
	"fmt"
	"iter"
	"log/slog"

	neoerrors "github.com/Aman-CERP/neodb/internal/errors"
	"github.com/Aman-CERP/neodb/internal/models"
)

// Predicate reports whether a close approach matches a criterion.
type Predicate func(*models.CloseApproach) bool

// Option configures database construction.
type Option func(*NEODatabase)

// WithStrictDesignations makes New reject duplicate NEO designations
// instead of keeping the last occurrence.
func WithStrictDesignations() Option {
	return func(db *NEODatabase) {
		db.strict = true
	}
}

// WithLogger sets the logger used for construction warnings.
// Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(db *NEODatabase) {
		if l != nil {
			db.logger = l
		}
	}
}

// NEODatabase holds the linked collections and their indices.
type NEODatabase struct {
	neos       []*models.NearEarthObject
	approaches []*models.CloseApproach

	byDesignation map[string]*models.NearEarthObject
	byName        map[string]*models.NearEarthObject
	approachesOf  map[string][]*models.CloseApproach

	stats  Stats
	strict bool
	logger *slog.Logger
}

// Stats summarizes the linked dataset.
type Stats struct {
	NEOs                  int `json:"neos"`
	NamedNEOs             int `json:"named_neos"`
	Approaches            int `json:"approaches"`
	LinkedApproaches      int `json:"linked_approaches"`
	OrphanedApproaches    int `json:"orphaned_approaches"`
	DuplicateDesignations int `json:"duplicate_designations"`
}

// New links neos and approaches in a single pass.
//
// Approaches are grouped by designation in input order, every NEO receives
// its own group, and every approach is pointed at the NEO with its
// designation. Approaches with an unknown designation stay unlinked.
// When two NEOs share a designation both keep the shared group and their
// names, and the later one wins the designation index and the back
// references, unless WithStrictDesignations is set.
func New(neos []*models.NearEarthObject, approaches []*models.CloseApproach, opts ...Option) (*NEODatabase, error) {
	db := &NEODatabase{
		neos:          neos,
		approaches:    approaches,
		byDesignation: make(map[string]*models.NearEarthObject, len(neos)),
		byName:        make(map[string]*models.NearEarthObject),
		approachesOf:  make(map[string][]*models.CloseApproach),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(db)
	}

	for _, ca := range approaches {
		db.approachesOf[ca.Designation] = append(db.approachesOf[ca.Designation], ca)
	}

	for i, neo := range neos {
		if _, dup := db.byDesignation[neo.Designation]; dup {
			if db.strict {
				return nil, neoerrors.New(neoerrors.ErrCodeDuplicateDesignation,
					fmt.Sprintf("designation %q appears more than once", neo.Designation), nil).
					WithDetail("designation", neo.Designation).
					WithDetail("index", fmt.Sprint(i)).
					WithSuggestion("Remove the duplicate row or disable database.strict_designations")
			}
			db.logger.Warn("duplicate_designation",
				slog.String("designation", neo.Designation),
				slog.Int("index", i))
			db.stats.DuplicateDesignations++
		}

		group := db.approachesOf[neo.Designation]
		neo.Approaches = make([]*models.CloseApproach, len(group))
		copy(neo.Approaches, group)

		db.byDesignation[neo.Designation] = neo
		if neo.Name != "" {
			db.byName[neo.Name] = neo
		}
	}

	for _, ca := range approaches {
		ca.NEO = db.byDesignation[ca.Designation]
		if ca.NEO != nil {
			db.stats.LinkedApproaches++
		}
	}

	db.stats.NEOs = len(db.byDesignation)
	db.stats.NamedNEOs = len(db.byName)
	db.stats.Approaches = len(approaches)
	db.stats.OrphanedApproaches = len(approaches) - db.stats.LinkedApproaches

	return db, nil
}

// GetByDesignation returns the NEO with the given primary designation.
func (db *NEODatabase) GetByDesignation(designation string) (*models.NearEarthObject, bool) {
	neo, ok := db.byDesignation[designation]
	return neo, ok
}

// GetByName returns the NEO with the given IAU name. An empty name never matches.
func (db *NEODatabase) GetByName(name string) (*models.NearEarthObject, bool) {
	if name == "" {
		return nil, false
	}
	neo, ok := db.byName[name]
	return neo, ok
}

// Query returns a lazy sequence of the approaches that satisfy every filter,
// in storage order. Filters run in order and evaluation stops at the first
// one that fails. With no filters every approach is yielded. Each call
// returns an independent sequence.
func (db *NEODatabase) Query(filters ...Predicate) iter.Seq[*models.CloseApproach] {
	return func(yield func(*models.CloseApproach) bool) {
		for _, ca := range db.approaches {
			if !matchesAll(ca, filters) {
				continue
			}
			if !yield(ca) {
				return
			}
		}
	}
}

// matchesAll checks if an approach passes all filters (AND logic).
func matchesAll(ca *models.CloseApproach, filters []Predicate) bool {
	for _, f := range filters {
		if !f(ca) {
			return false
		}
	}
	return true
}

// Len returns the number of input NEOs and approaches.
func (db *NEODatabase) Len() (neos, approaches int) {
	return len(db.neos), len(db.approaches)
}

// NEOs iterates the NEOs in input order.
func (db *NEODatabase) NEOs() iter.Seq[*models.NearEarthObject] {
	return func(yield func(*models.NearEarthObject) bool) {
		for _, neo := range db.neos {
			if !yield(neo) {
				return
			}
		}
	}
}

// Approaches iterates every approach in input order.
func (db *NEODatabase) Approaches() iter.Seq[*models.CloseApproach] {
	return db.Query()
}

// Stats returns counts computed at construction.
func (db *NEODatabase) Stats() Stats {
	return db.stats
}
