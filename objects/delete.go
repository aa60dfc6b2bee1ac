// Copyright (C) 2025 Stixview Authors.
// See LICENSE for copying information.

package objects

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// resolveDeletionQuery resolves, within one report's scope, the physical
// document handle of the report, the handle of the target object, and the
// deletion closure: the object itself plus every relationship document whose
// graph pointer touches it.
const resolveDeletionQuery = `
LET doc_ids = (
    FOR doc IN @@view
    SEARCH doc.id IN [@object_id, @report_id] AND doc._stixify_report_id == @report_id
    RETURN [doc._id, doc.id]
)
LET object_key = FIRST(doc_ids[* FILTER CURRENT[1] == @object_id])
LET report_key = FIRST(FIRST(doc_ids[* FILTER CURRENT[1] == @report_id]))
RETURN {
    report_key: report_key,
    object_key: object_key,
    closure: (
        FOR d IN APPEND([object_key], (
            FOR doc IN @@view
            SEARCH doc._from == object_key[0] OR doc._to == object_key[0]
            RETURN [doc._id, doc.id]
        ))
        FILTER d != NULL
        RETURN d
    )
}`

// removeReportRefsQuery rewrites the report's object_refs with an atomic
// remove-values expression, tolerating concurrent writers.
const removeReportRefsQuery = `
FOR doc IN @@collection
FILTER doc._id == @report_key
UPDATE {_key: doc._key} WITH {object_refs: REMOVE_VALUES(doc.object_refs, @stix_ids)} IN @@collection
RETURN {new_length: LENGTH(NEW.object_refs), old_length: LENGTH(doc.object_refs)}`

// DeleteObjectFromReport removes one object and every relationship touching
// it from a report's scope, then repairs the report's object_refs and
// triggers a latest-flag recompute for the affected collection pair.
//
// The operation is idempotent and best-effort by contract: an object absent
// from the report's scope is a no-op success, a failure deleting a single
// document is logged and skipped, and there is no transaction around the
// document deletes and the report update. Callers may retry safely.
func (service *Service) DeleteObjectFromReport(ctx context.Context, reportID, objectID string) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := service.store.Search(ctx, resolveDeletionQuery, map[string]interface{}{
		"@view":     service.view,
		"object_id": objectID,
		"report_id": reportID,
	})
	if err != nil {
		service.log.Error("deletion closure query failed", zap.Error(err))
		return ErrQuery.New("aql: cannot process request")
	}
	if len(result.Objects) == 0 {
		return nil
	}
	resolved := result.Objects[0]

	reportKey, _ := resolved["report_key"].(string)
	objectDocID, _ := pairDocID(resolved["object_key"])

	var docIDs, stixIDs []string
	if closure, ok := resolved["closure"].([]interface{}); ok {
		for _, pair := range closure {
			docID, stixID := pairDocID(pair)
			if docID == "" {
				continue
			}
			docIDs = append(docIDs, docID)
			stixIDs = append(stixIDs, stixID)
		}
	}

	for _, docID := range docIDs {
		if err := service.store.RemoveDocument(ctx, docID); err != nil {
			service.log.Warn("failed to delete document",
				zap.String("document", docID), zap.Error(err))
		}
	}

	if len(stixIDs) == 0 {
		return nil
	}

	if reportKey != "" {
		_, err = service.store.Search(ctx, removeReportRefsQuery, map[string]interface{}{
			"@collection": collectionOf(reportKey),
			"report_key":  reportKey,
			"stix_ids":    stixIDs,
		})
		if err != nil {
			service.log.Error("failed to rewrite report object_refs",
				zap.String("report", reportKey), zap.Error(err))
			return ErrQuery.New("aql: cannot process request")
		}
		service.log.Info("removed references from report object_refs",
			zap.String("report", reportID),
			zap.Strings("stix_ids", stixIDs))
	}

	if objectDocID != "" {
		collection := collectionOf(objectDocID)
		edgeCollection := strings.TrimSuffix(strings.TrimSuffix(collection, "_vertex_collection"), "_edge_collection") + "_edge_collection"
		ids := dedupe(append(stixIDs, objectID))
		if err := service.store.RecomputeLatest(ctx, collection, edgeCollection, ids); err != nil {
			return Error.Wrap(err)
		}
	}

	return nil
}

// pairDocID unpacks a [document handle, stix id] pair returned by the
// closure query.
func pairDocID(v interface{}) (docID, stixID string) {
	pair, ok := v.([]interface{})
	if !ok || len(pair) < 2 {
		return "", ""
	}
	docID, _ = pair[0].(string)
	stixID, _ = pair[1].(string)
	return docID, stixID
}

// collectionOf extracts the collection name from a document handle.
func collectionOf(docID string) string {
	if i := strings.IndexByte(docID, '/'); i >= 0 {
		return docID[:i]
	}
	return docID
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
