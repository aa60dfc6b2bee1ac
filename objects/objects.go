// Copyright (C) 2025 Stixview Authors.
// See LICENSE for copying information.

// Package objects implements the query layer over the database-wide STIX
// search view: partitioned searches with latest-version collapsing, single
// object lookup, one-hop bundle assembly and cascading deletion of an object
// from a report's scope.
package objects

import (
	"context"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
)

var (
	mon = monkit.Package()

	// Error is the default error class for the objects package.
	Error = errs.Class("objects")

	// ErrNotFound is returned when a lookup by STIX id matches no latest document.
	ErrNotFound = errs.Class("object not found")

	// ErrInvalidPage is returned for out-of-range pagination input.
	ErrInvalidPage = errs.Class("invalid page")

	// ErrQuery is returned to callers when query execution fails. The
	// underlying failure is logged server-side and never surfaced.
	ErrQuery = errs.Class("cannot process request")
)

// Object is a raw STIX 2.1 document as stored by the ingest pipeline,
// including the loader's bookkeeping attributes (_is_latest, _is_ref,
// _source_type, _target_type, _record_modified, _stixify_report_id).
type Object map[string]interface{}

// Result is the outcome of a single query execution. FullCount is the total
// number of matching documents before LIMIT was applied, taken from the
// search engine's statistics rather than a second count query.
type Result struct {
	Objects   []Object
	FullCount int64
}

// Store executes queries against the backing document store. Implementations
// must be safe for concurrent use.
type Store interface {
	// Search executes an AQL query with bind variables and returns all
	// result documents together with the full match count.
	Search(ctx context.Context, query string, bindVars map[string]interface{}) (Result, error)

	// RemoveDocument physically deletes a document by its full document
	// handle (collection/key).
	RemoveDocument(ctx context.Context, docID string) error

	// RecomputeLatest re-evaluates the _is_latest flag for the given STIX
	// ids across a vertex/edge collection pair. Invoked after deletions so
	// sibling versions can be promoted.
	RecomputeLatest(ctx context.Context, vertexCollection, edgeCollection string, stixIDs []string) error
}
