// Copyright (C) 2025 Stixview Authors.
// See LICENSE for copying information.

package objects

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Two marking-definition ids (TLP:CLEAR and TLP:GREEN) mark an object as
// visible to every identity regardless of its creator.
var markingVisibleToAll = []string{
	"marking-definition--bab4a63c-aed9-4cf5-a766-dfca5abac2bb",
	"marking-definition--94868c89-83c2-464b-929b-a1a8aa3c8487",
}

// scoValueFields maps each cyber-observable type to its canonical
// value-bearing attribute for the value search.
var scoValueFields = map[string]string{
	"artifact":                   "payload_bin",
	"autonomous-system":          "number",
	"bank-account":               "iban_number",
	"bank-card":                  "number",
	"cryptocurrency-transaction": "hash",
	"cryptocurrency-wallet":      "hash",
	"directory":                  "path",
	"domain-name":                "value",
	"email-addr":                 "value",
	"email-message":              "body",
	"file":                       "name",
	"ipv4-addr":                  "value",
	"ipv6-addr":                  "value",
	"mac-addr":                   "value",
	"mutex":                      "value",
	"network-traffic":            "protocols",
	"phone-number":               "number",
	"process":                    "pid",
	"software":                   "name",
	"url":                        "value",
	"user-account":               "display_name",
	"user-agent":                 "string",
	"windows-registry-key":       "key",
	"x509-certificate":           "subject",
}

// scoGenericValueFields are searched as a fallback for types without a
// dispatch entry.
var scoGenericValueFields = []string{"value", "name", "number"}

// Service exposes search, bundle assembly and report-scoped deletion over
// the database-wide STIX view.
//
// architecture: Service
type Service struct {
	log    *zap.Logger
	store  Store
	view   string
	config Config
}

// NewService creates a new objects service bound to the named view.
func NewService(log *zap.Logger, store Store, viewName string, config Config) *Service {
	return &Service{
		log:    log,
		store:  store,
		view:   viewName,
		config: config,
	}
}

// SDOFilter narrows a domain-object search.
type SDOFilter struct {
	Types     []string
	Name      string
	Labels    string
	VisibleTo string
	Sort      string
}

// SCOFilter narrows a cyber-observable search. MatchProperties are matched
// verbatim against document attributes (used for ingest-scoping fields).
type SCOFilter struct {
	Types           []string
	Value           string
	MatchProperties map[string]interface{}
	Sort            string
}

// SROFilter narrows a relationship search.
type SROFilter struct {
	SourceRef           string
	TargetRef           string
	SourceRefTypes      []string
	TargetRefTypes      []string
	RelationshipType    string
	IncludeEmbeddedRefs bool
	VisibleTo           string
	Sort                string
}

// SMOFilter narrows a meta-object search.
type SMOFilter struct {
	Types []string
	Sort  string
}

// SDOs searches STIX domain objects.
func (service *Service) SDOs(ctx context.Context, filter SDOFilter, page PageParams) (_ *Page, err error) {
	defer mon.Task()(&ctx)(&err)

	b := NewSearch(service.view)
	b.Bind("types", IntersectTypes(SDOTypes, filter.Types))
	b.Search("doc.type IN @types")
	b.Search("doc._is_latest == TRUE")

	if filter.Name != "" {
		b.Bind("name", likePattern(filter.Name))
		b.Search("doc.name LIKE @name")
	}
	if filter.Labels != "" {
		b.Bind("labels", filter.Labels)
		b.Filter("doc.labels[? ANY FILTER CONTAINS(CURRENT, @labels)]")
	}
	service.applyVisibleTo(b, filter.VisibleTo)

	b.Sort(SDOSortFields, filter.Sort, nil)
	b.CollapseLatest()
	b.Paginate()
	return service.execute(ctx, b, page, "objects")
}

// SCOs searches STIX cyber-observables. The value filter is dispatched to
// each type's canonical value attribute with case-insensitive containment.
func (service *Service) SCOs(ctx context.Context, filter SCOFilter, page PageParams) (_ *Page, err error) {
	defer mon.Task()(&ctx)(&err)

	b := NewSearch(service.view)
	b.Bind("types", IntersectTypes(SCOTypes, filter.Types))
	b.Search("doc.type IN @types")
	b.Search("doc._is_latest == TRUE")

	if len(filter.MatchProperties) > 0 {
		b.Bind("matcher", filter.MatchProperties)
		b.Filter("MATCHES(doc, @matcher)")
	}
	if filter.Value != "" {
		b.Bind("search_value", strings.ToLower(filter.Value))
		b.Filter(scoValueSearch())
	}

	b.Sort(SCOSortFields, filter.Sort, nil)
	b.CollapseLatest()
	b.Paginate()
	return service.execute(ctx, b, page, "objects")
}

// SROs searches STIX relationship objects.
func (service *Service) SROs(ctx context.Context, filter SROFilter, page PageParams) (_ *Page, err error) {
	defer mon.Task()(&ctx)(&err)

	b := NewSearch(service.view)
	b.Search("doc.type == 'relationship'")

	if service.config.RelationshipsAlwaysLatest {
		b.Search("doc._is_latest == TRUE")
	} else {
		// Observable endpoints rarely get a fresh latest relationship on
		// re-ingest; admit their non-latest relationships and let the
		// collapse pick one version per id.
		b.Bind("sco_types", SCOTypes)
		b.Search("(doc._is_latest == TRUE OR doc._target_type IN @sco_types OR doc._source_type IN @sco_types)")
	}

	if len(filter.SourceRefTypes) > 0 {
		b.Bind("source_ref_type", filter.SourceRefTypes)
		b.Search("doc._source_type IN @source_ref_type")
	}
	if len(filter.TargetRefTypes) > 0 {
		b.Bind("target_ref_type", filter.TargetRefTypes)
		b.Search("doc._target_type IN @target_ref_type")
	}
	if filter.RelationshipType != "" {
		b.Bind("relationship_type", likePattern(filter.RelationshipType))
		b.Search("doc.relationship_type LIKE @relationship_type")
	}
	if !filter.IncludeEmbeddedRefs {
		b.Search("doc._is_ref != TRUE")
	}
	if filter.TargetRef != "" {
		b.Bind("target_ref", filter.TargetRef)
		b.Search("doc.target_ref == @target_ref")
	}
	if filter.SourceRef != "" {
		b.Bind("source_ref", filter.SourceRef)
		b.Search("doc.source_ref == @source_ref")
	}
	service.applyVisibleTo(b, filter.VisibleTo)

	b.Sort(SROSortFields, filter.Sort, nil)
	b.CollapseLatest()
	b.Paginate()
	return service.execute(ctx, b, page, "objects")
}

// SMOs searches STIX meta objects.
func (service *Service) SMOs(ctx context.Context, filter SMOFilter, page PageParams) (_ *Page, err error) {
	defer mon.Task()(&ctx)(&err)

	b := NewSearch(service.view)
	b.Bind("types", IntersectTypes(SMOTypes, filter.Types))
	b.Search("doc.type IN @types")
	b.Search("doc._is_latest == TRUE")

	b.Sort(SMOSortFields, filter.Sort, nil)
	b.CollapseLatest()
	b.Paginate()
	return service.execute(ctx, b, page, "objects")
}

// ObjectByID returns the latest version of a single object.
func (service *Service) ObjectByID(ctx context.Context, stixID string) (_ Object, err error) {
	defer mon.Task()(&ctx)(&err)

	b := NewSearch(service.view)
	b.Bind("id", stixID)
	b.Search("doc.id == @id")
	b.Search("doc._is_latest == TRUE")
	b.First()

	result, err := service.run(ctx, b)
	if err != nil {
		return nil, err
	}
	if len(result.Objects) == 0 {
		return nil, ErrNotFound.New("no object with id %s", stixID)
	}
	return result.Objects[0], nil
}

// ContainingReports returns every report whose ingest produced a version of
// the given object.
func (service *Service) ContainingReports(ctx context.Context, stixID string, page PageParams) (_ *Page, err error) {
	defer mon.Task()(&ctx)(&err)

	b := NewSearch(service.view)
	b.Bind("id", stixID)
	b.Let("LET report_ids = (FOR doc IN @@view FILTER doc.id == @id RETURN DISTINCT doc._stixify_report_id)")
	b.Search("doc.type == 'report'")
	b.Search("doc.id IN report_ids")
	b.Paginate()
	return service.execute(ctx, b, page, "reports")
}

// applyVisibleTo restricts results to objects the identity may see: objects
// it created, objects with no creator, and objects carrying a
// visible-to-all marking.
func (service *Service) applyVisibleTo(b *Builder, identity string) {
	if identity == "" {
		return
	}
	b.Bind("visible_to", identity)
	b.Bind("marking_visible_to_all", markingVisibleToAll)
	b.Search("(doc.created_by_ref IN [@visible_to, NULL] OR @marking_visible_to_all ANY IN doc.object_marking_refs)")
}

// scoValueSearch builds the per-type value dispatch predicate, OR'd with the
// generic fallback attributes.
func scoValueSearch() string {
	types := make([]string, 0, len(scoValueFields))
	for t := range scoValueFields {
		types = append(types, t)
	}
	sort.Strings(types)

	conds := make([]string, 0, len(types)+len(scoGenericValueFields))
	for _, t := range types {
		conds = append(conds, fmt.Sprintf("doc.type == '%s' AND CONTAINS(LOWER(doc.%s), @search_value)", t, scoValueFields[t]))
	}
	for _, field := range scoGenericValueFields {
		conds = append(conds, fmt.Sprintf("CONTAINS(LOWER(doc.%s), @search_value)", field))
	}
	return "(" + strings.Join(conds, " OR ") + ")"
}

// execute runs a paginated query and shapes the response envelope.
func (service *Service) execute(ctx context.Context, b *Builder, page PageParams, resultKey string) (*Page, error) {
	offset, count, err := page.OffsetAndCount()
	if err != nil {
		return nil, err
	}
	b.Bind("offset", offset)
	b.Bind("count", count)

	result, err := service.run(ctx, b)
	if err != nil {
		return nil, err
	}
	return NewPage(page, result, resultKey), nil
}

// run executes the query, logging the backend failure and hiding it behind a
// generic error.
func (service *Service) run(ctx context.Context, b *Builder) (Result, error) {
	query, bindVars := b.Query()
	result, err := service.store.Search(ctx, query, bindVars)
	if err != nil {
		service.log.Error("query execution failed", zap.Error(err))
		return Result{}, ErrQuery.New("aql: cannot process request")
	}
	return result, nil
}
