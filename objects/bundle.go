// Copyright (C) 2025 Stixview Authors.
// See LICENSE for copying information.

package objects

import (
	"context"
	"fmt"
	"strings"
)

// BundleFilter narrows a bundle request. Type and visibility restrictions
// are applied to both the edge scan and the closure fetch so the closure
// never exposes references the caller could not query directly.
type BundleFilter struct {
	Types               []string
	IncludeEmbeddedRefs bool
	VisibleTo           string
}

// Bundle returns the seed object plus every object one relationship hop
// away. Phase one collects the physical ids of all latest relationships
// touching the seed together with their graph endpoints; phase two fetches
// every document in that closure plus the latest seed itself. Multi-hop
// reachability requires repeated calls.
func (service *Service) Bundle(ctx context.Context, seedID string, filter BundleFilter, page PageParams) (_ *Page, err error) {
	defer mon.Task()(&ctx)(&err)

	b := NewSearch(service.view)
	b.Bind("id", seedID)

	edgeConds := []string{
		"(doc.source_ref == @id OR doc.target_ref == @id)",
		"doc._is_latest == TRUE",
	}
	if !filter.IncludeEmbeddedRefs {
		edgeConds = append(edgeConds, "doc._is_ref != TRUE")
	}
	if len(filter.Types) > 0 {
		b.Bind("types", filter.Types)
		edgeConds = append(edgeConds, "(doc._target_type IN @types OR doc._source_type IN @types)")
		b.Filter("doc.type IN @types")
	}

	b.Let(fmt.Sprintf(
		"LET bundle_ids = FLATTEN(FOR doc IN @@view SEARCH %s RETURN [doc._id, doc._from, doc._to])",
		strings.Join(edgeConds, " AND "),
	))
	b.Search("(doc._id IN bundle_ids OR (doc.id == @id AND doc._is_latest == TRUE))")

	if filter.VisibleTo != "" {
		b.Bind("visible_to", filter.VisibleTo)
		b.Bind("marking_visible_to_all", markingVisibleToAll)
		b.Filter("(doc.created_by_ref IN [@visible_to, NULL] OR @marking_visible_to_all ANY IN doc.object_marking_refs)")
	}

	b.Paginate()
	return service.execute(ctx, b, page, "objects")
}
