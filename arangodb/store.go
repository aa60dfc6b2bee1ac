// Copyright (C) 2025 Stixview Authors.
// See LICENSE for copying information.

package arangodb

import (
	"context"
	"strings"

	driver "github.com/arangodb/go-driver"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"stixview.io/stixview/objects"
)

// recomputeLatestQuery re-evaluates the _is_latest flag for every version of
// the given logical ids within one collection, using the same latest-wins
// ordering the query layer collapses with.
const recomputeLatestQuery = `
FOR doc IN @@collection
FILTER doc.id IN @ids
COLLECT id = doc.id INTO versions
LET latest = FIRST(FOR d IN versions[*].doc SORT d.modified OR d.created DESC, d._record_modified DESC RETURN d._key)
FOR v IN versions[*].doc
UPDATE {_key: v._key} WITH {_is_latest: v._key == latest} IN @@collection`

// Store implements objects.Store over a driver database handle.
type Store struct {
	log *zap.Logger
	db  driver.Database
}

// NewStore creates a store bound to an open database.
func NewStore(log *zap.Logger, db driver.Database) *Store {
	return &Store{log: log, db: db}
}

// Search executes an AQL query with full-count statistics enabled and
// returns all result documents.
func (store *Store) Search(ctx context.Context, query string, bindVars map[string]interface{}) (_ objects.Result, err error) {
	defer mon.Task()(&ctx)(&err)

	ctx = driver.WithQueryFullCount(ctx)
	cursor, err := store.db.Query(ctx, query, bindVars)
	if err != nil {
		return objects.Result{}, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, cursor.Close()) }()

	result := objects.Result{Objects: []objects.Object{}}
	for cursor.HasMore() {
		var doc objects.Object
		if _, err := cursor.ReadDocument(ctx, &doc); err != nil {
			return objects.Result{}, Error.Wrap(err)
		}
		result.Objects = append(result.Objects, doc)
	}
	if stats := cursor.Statistics(); stats != nil {
		result.FullCount = stats.FullCount()
	}
	return result, nil
}

// RemoveDocument deletes a single document by its full handle.
func (store *Store) RemoveDocument(ctx context.Context, docID string) (err error) {
	defer mon.Task()(&ctx)(&err)

	name, key, found := strings.Cut(docID, "/")
	if !found {
		return Error.New("invalid document handle %q", docID)
	}
	collection, err := store.db.Collection(ctx, name)
	if err != nil {
		return Error.Wrap(err)
	}
	_, err = collection.RemoveDocument(ctx, key)
	return Error.Wrap(err)
}

// RecomputeLatest repairs the _is_latest invariant for the given stix ids
// across a vertex/edge collection pair. Collections that do not exist are
// skipped.
func (store *Store) RecomputeLatest(ctx context.Context, vertexCollection, edgeCollection string, stixIDs []string) (err error) {
	defer mon.Task()(&ctx)(&err)

	if len(stixIDs) == 0 {
		return nil
	}

	for _, name := range dedupeNames(vertexCollection, edgeCollection) {
		exists, err := store.db.CollectionExists(ctx, name)
		if err != nil {
			return Error.Wrap(err)
		}
		if !exists {
			continue
		}

		cursor, err := store.db.Query(ctx, recomputeLatestQuery, map[string]interface{}{
			"@collection": name,
			"ids":         stixIDs,
		})
		if err != nil {
			return Error.Wrap(err)
		}
		if err := cursor.Close(); err != nil {
			return Error.Wrap(err)
		}
		store.log.Debug("recomputed latest flags",
			zap.String("collection", name),
			zap.Int("ids", len(stixIDs)))
	}
	return nil
}

func dedupeNames(names ...string) []string {
	out := names[:0:0]
	seen := map[string]bool{}
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
