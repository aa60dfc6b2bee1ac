// Copyright (C) 2025 Stixview Authors.
// See LICENSE for copying information.

package arangodb

import (
	"context"
	"sort"
	"strings"

	driver "github.com/arangodb/go-driver"
	"go.uber.org/zap"
)

// SortFields are indexed in both directions as the view's primary sort, so
// every sort token the query layer accepts is answered from the index.
var SortFields = []string{"id", "type", "created", "modified", "name"}

// Field projections stored in the view per collection kind, so filtering can
// be satisfied without fetching full documents.
var (
	VertexFilterFields = []string{"type", "name", "labels", "_stix2arango_note"}
	EdgeFilterFields   = []string{"source_ref", "target_ref", "relationship_type", "_stix2arango_note"}
)

// Collection-name suffix convention used by the bulk loader.
const (
	vertexSuffix = "_vertex_collection"
	edgeSuffix   = "_edge_collection"
)

// EnsureView creates the arangosearch view if absent, with the fixed primary
// sort and stored-value projection. An already-existing view is logged and
// returned as-is.
func EnsureView(ctx context.Context, log *zap.Logger, db driver.Database, name string) (driver.ArangoSearchView, error) {
	log.Info("creating view", zap.String("view", name), zap.String("database", db.Name()))

	view, err := db.CreateArangoSearchView(ctx, name, &driver.ArangoSearchViewProperties{
		PrimarySort:  primarySort(),
		StoredValues: storedValues(),
	})
	switch {
	case err == nil:
		return view, nil
	case driver.IsConflict(err):
		log.Info("view already exists", zap.String("view", name))
	default:
		return nil, Error.Wrap(err)
	}

	raw, err := db.View(ctx, name)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	existing, err := raw.ArangoSearchView()
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return existing, nil
}

// LinkCollection registers one collection with the view using the projection
// for its kind. Collections outside the naming convention are ignored.
// Relinking an already-linked collection is an idempotent upsert.
func LinkCollection(ctx context.Context, log *zap.Logger, view driver.ArangoSearchView, collectionName string) error {
	link, ok := linkProperties(collectionName)
	if !ok {
		log.Debug("collection not linkable", zap.String("collection", collectionName))
		return nil
	}

	props, err := view.Properties(ctx)
	if err != nil {
		return Error.Wrap(err)
	}
	if props.Links == nil {
		props.Links = driver.ArangoSearchLinks{}
	}
	props.Links[collectionName] = link

	log.Info("linking collection",
		zap.String("collection", collectionName),
		zap.String("view", view.Name()))
	return Error.Wrap(view.SetProperties(ctx, props))
}

// CollectionLister enumerates the collections the view manager may link.
// driver.Database satisfies it; tests can substitute a fixed set.
type CollectionLister interface {
	Collections(ctx context.Context) ([]driver.Collection, error)
}

// RelinkAll recomputes the link projection for every non-system collection
// in the database and republishes the full link map in a single update.
// Maintenance operation; not called per request.
func RelinkAll(ctx context.Context, log *zap.Logger, db CollectionLister, view driver.ArangoSearchView) error {
	collections, err := db.Collections(ctx)
	if err != nil {
		return Error.Wrap(err)
	}

	var names []string
	for _, collection := range collections {
		props, err := collection.Properties(ctx)
		if err != nil {
			return Error.Wrap(err)
		}
		if props.IsSystem {
			continue
		}
		names = append(names, collection.Name())
	}

	props, err := view.Properties(ctx)
	if err != nil {
		return Error.Wrap(err)
	}
	links, linked := collectLinks(names, props.Links)
	props.Links = links

	if err := view.SetProperties(ctx, props); err != nil {
		return Error.Wrap(err)
	}
	log.Info("linked collections to view",
		zap.Int("count", linked),
		zap.String("view", view.Name()))
	return nil
}

// collectLinks merges the link projection of every named collection into an
// existing link map. Calling it again with the same names yields the same
// map.
func collectLinks(collectionNames []string, existing driver.ArangoSearchLinks) (_ driver.ArangoSearchLinks, linked int) {
	links := driver.ArangoSearchLinks{}
	for name, link := range existing {
		links[name] = link
	}
	for _, name := range collectionNames {
		link, ok := linkProperties(name)
		if !ok {
			continue
		}
		links[name] = link
		linked++
	}
	return links, linked
}

// linkProperties returns the field projection for a collection, determined
// by the loader's suffix convention.
func linkProperties(collectionName string) (driver.ArangoSearchElementProperties, bool) {
	switch {
	case strings.HasSuffix(collectionName, vertexSuffix):
		return fieldLink(VertexFilterFields), true
	case strings.HasSuffix(collectionName, edgeSuffix):
		return fieldLink(EdgeFilterFields), true
	}
	return driver.ArangoSearchElementProperties{}, false
}

func fieldLink(fields []string) driver.ArangoSearchElementProperties {
	link := driver.ArangoSearchElementProperties{Fields: driver.ArangoSearchFields{}}
	for _, field := range fields {
		link.Fields[field] = driver.ArangoSearchElementProperties{}
	}
	return link
}

// primarySort emits ascending and descending entries for every sort field.
func primarySort() []driver.ArangoSearchPrimarySortEntry {
	entries := make([]driver.ArangoSearchPrimarySortEntry, 0, 2*len(SortFields))
	for _, field := range SortFields {
		for _, ascending := range []bool{true, false} {
			ascending := ascending
			entries = append(entries, driver.ArangoSearchPrimarySortEntry{
				Field:     field,
				Ascending: &ascending,
			})
		}
	}
	return entries
}

// storedValues projects the union of the vertex and edge filter fields.
func storedValues() []driver.StoredValue {
	return []driver.StoredValue{{Fields: filterFields()}}
}

func filterFields() []string {
	seen := map[string]bool{}
	var fields []string
	for _, field := range append(append([]string{}, VertexFilterFields...), EdgeFilterFields...) {
		if seen[field] {
			continue
		}
		seen[field] = true
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
