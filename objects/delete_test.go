// Copyright (C) 2025 Stixview Authors.
// See LICENSE for copying information.

package objects_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"stixview.io/stixview/objects"
)

// resolvedClosure mimics the JSON-decoded shape of the deletion closure
// query result.
func resolvedClosure(reportKey string, objectKey []interface{}, closure ...[]interface{}) objects.Result {
	pairs := make([]interface{}, 0, len(closure))
	for _, pair := range closure {
		pairs = append(pairs, pair)
	}
	var object interface{}
	if objectKey != nil {
		object = objectKey
	}
	return objects.Result{Objects: []objects.Object{{
		"report_key": reportKey,
		"object_key": object,
		"closure":    pairs,
	}}}
}

func TestDeleteObjectFromReport(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{results: []objects.Result{
		resolvedClosure(
			"r1_vertex_collection/report-doc",
			[]interface{}{"r1_vertex_collection/obj-doc", "ipv4-addr--1"},
			[]interface{}{"r1_vertex_collection/obj-doc", "ipv4-addr--1"},
			[]interface{}{"r1_edge_collection/rel-doc", "relationship--2"},
		),
		{Objects: []objects.Object{{"new_length": float64(3), "old_length": float64(5)}}},
	}}
	service := newTestService(t, store, objects.DefaultConfig())

	err := service.DeleteObjectFromReport(ctx, "report--9", "ipv4-addr--1")
	require.NoError(t, err)

	// closure resolution is scoped to the report
	resolve := store.calls[0]
	require.Contains(t, resolve.query, "doc._stixify_report_id == @report_id")
	require.Contains(t, resolve.query, "doc._from == object_key[0] OR doc._to == object_key[0]")
	require.Equal(t, "report--9", resolve.bindVars["report_id"])
	require.Equal(t, "ipv4-addr--1", resolve.bindVars["object_id"])

	// every closure document is physically removed
	require.Equal(t, []string{"r1_vertex_collection/obj-doc", "r1_edge_collection/rel-doc"}, store.removed)

	// the report's object_refs is rewritten atomically
	update := store.calls[1]
	require.Contains(t, update.query, "REMOVE_VALUES(doc.object_refs, @stix_ids)")
	require.Equal(t, "r1_vertex_collection", update.bindVars["@collection"])
	require.Equal(t, "r1_vertex_collection/report-doc", update.bindVars["report_key"])
	require.Equal(t, []string{"ipv4-addr--1", "relationship--2"}, update.bindVars["stix_ids"])

	// latest flags are recomputed over the affected collection pair
	require.Len(t, store.recomputes, 1)
	recompute := store.recomputes[0]
	require.Equal(t, "r1_vertex_collection", recompute.vertexCollection)
	require.Equal(t, "r1_edge_collection", recompute.edgeCollection)
	require.ElementsMatch(t, []string{"ipv4-addr--1", "relationship--2"}, recompute.stixIDs)
}

func TestDeleteObjectFromReportIdempotent(t *testing.T) {
	ctx := context.Background()

	// the object is not in the report's scope: no-op success
	store := &fakeStore{results: []objects.Result{
		resolvedClosure("", nil),
	}}
	service := newTestService(t, store, objects.DefaultConfig())

	err := service.DeleteObjectFromReport(ctx, "report--9", "ipv4-addr--gone")
	require.NoError(t, err)
	require.Empty(t, store.removed)
	require.Empty(t, store.recomputes)
	require.Len(t, store.calls, 1) // no object_refs update either

	// a second call behaves identically
	store.results = []objects.Result{resolvedClosure("", nil)}
	require.NoError(t, service.DeleteObjectFromReport(ctx, "report--9", "ipv4-addr--gone"))
}

func TestDeleteObjectFromReportBestEffort(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{
		results: []objects.Result{
			resolvedClosure(
				"r1_vertex_collection/report-doc",
				[]interface{}{"r1_vertex_collection/obj-doc", "url--1"},
				[]interface{}{"r1_vertex_collection/obj-doc", "url--1"},
				[]interface{}{"r1_edge_collection/rel-a", "relationship--a"},
				[]interface{}{"r1_edge_collection/rel-b", "relationship--b"},
			),
			{},
		},
		removeErrs: map[string]error{
			"r1_edge_collection/rel-a": errors.New("document not found"),
		},
	}
	service := newTestService(t, store, objects.DefaultConfig())

	// a single failed delete does not abort the rest of the closure
	err := service.DeleteObjectFromReport(ctx, "report--9", "url--1")
	require.NoError(t, err)
	require.Len(t, store.removed, 3)
	require.Contains(t, store.removed, "r1_edge_collection/rel-b")

	// the failed document's stix id is still removed from object_refs
	update := store.calls[1]
	ids, ok := update.bindVars["stix_ids"].([]string)
	require.True(t, ok)
	require.Contains(t, ids, "relationship--a")
}

func TestDeleteObjectFromReportResolveFailure(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{searchErr: errors.New("backend unavailable")}
	service := newTestService(t, store, objects.DefaultConfig())

	err := service.DeleteObjectFromReport(ctx, "report--9", "url--1")
	require.True(t, objects.ErrQuery.Has(err))
	require.False(t, strings.Contains(err.Error(), "backend unavailable"))
	require.Empty(t, store.removed)
}
