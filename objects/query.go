// Copyright (C) 2025 Stixview Authors.
// See LICENSE for copying information.

package objects

import (
	"fmt"
	"regexp"
	"strings"
)

// Builder assembles an AQL query from independent predicate fragments and a
// bind-variable map. Fragments reference bind variables by name; the query
// text is serialized only when Query is called, so predicate sets can be
// built conditionally without string surgery.
type Builder struct {
	prelude    []string
	search     []string
	filters    []string
	sort       string
	collapse   bool
	limit      string
	returnExpr string
	bindVars   map[string]interface{}
}

// NewSearch returns a builder for a query over the named search view. The
// view is addressed through the @@view bind variable and documents through
// the loop variable "doc".
func NewSearch(viewName string) *Builder {
	return &Builder{
		returnExpr: "KEEP(doc, KEYS(doc, true))",
		bindVars:   map[string]interface{}{"@view": viewName},
	}
}

// Bind registers a bind variable and returns the builder for chaining.
func (b *Builder) Bind(name string, value interface{}) *Builder {
	b.bindVars[name] = value
	return b
}

// Let prepends a LET line evaluated before the main FOR loop.
func (b *Builder) Let(line string) *Builder {
	b.prelude = append(b.prelude, line)
	return b
}

// Search adds a conjunct to the SEARCH clause, which is satisfied from the
// view index.
func (b *Builder) Search(cond string) *Builder {
	b.search = append(b.search, cond)
	return b
}

// Filter adds a conjunct to the post-search FILTER clause.
func (b *Builder) Filter(cond string) *Builder {
	b.filters = append(b.filters, cond)
	return b
}

var sortToken = regexp.MustCompile(`^(.+)_(ascending|descending)$`)

// Sort applies a caller-supplied sort token of the form
// {field}_{ascending|descending}. Tokens outside options fall back to the
// first option; customs remaps a logical field to a different underlying
// expression.
func (b *Builder) Sort(options []string, requested string, customs map[string]string) *Builder {
	token := options[0]
	for _, opt := range options {
		if requested == opt {
			token = requested
			break
		}
	}

	m := sortToken.FindStringSubmatch(token)
	if m == nil {
		return b
	}
	field, direction := m[1], "ASC"
	if m[2] == "descending" {
		direction = "DESC"
	}
	if custom, ok := customs[field]; ok {
		b.sort = fmt.Sprintf("SORT %s %s", custom, direction)
	} else {
		b.sort = fmt.Sprintf("SORT doc.%s %s", field, direction)
	}
	return b
}

// CollapseLatest groups the matched documents by logical id and keeps, per
// group, the version with the greatest (modified ?? created) timestamp,
// tie-broken by the ingest bookkeeping timestamp. Applied even when
// _is_latest already narrowed the match, so stale flags cannot surface
// duplicate versions.
func (b *Builder) CollapseLatest() *Builder {
	b.collapse = true
	return b
}

// Paginate adds a LIMIT clause fed from the @offset and @count bind
// variables.
func (b *Builder) Paginate() *Builder {
	b.limit = "LIMIT @offset, @count"
	return b
}

// First limits the query to a single result.
func (b *Builder) First() *Builder {
	b.limit = "LIMIT 1"
	return b
}

// Return overrides the default RETURN expression.
func (b *Builder) Return(expr string) *Builder {
	b.returnExpr = expr
	return b
}

// Query serializes the builder to AQL text and its bind-variable map.
func (b *Builder) Query() (string, map[string]interface{}) {
	var lines []string
	lines = append(lines, b.prelude...)
	lines = append(lines, "FOR doc IN @@view")
	if len(b.search) > 0 {
		lines = append(lines, "SEARCH "+strings.Join(b.search, " AND "))
	}
	if len(b.filters) > 0 {
		lines = append(lines, "FILTER "+strings.Join(b.filters, " AND "))
	}
	if b.sort != "" {
		lines = append(lines, b.sort)
	}
	if b.collapse {
		lines = append(lines,
			"COLLECT id = doc.id INTO docs",
			"LET doc = FIRST(FOR d IN docs[*].doc SORT d.modified OR d.created DESC, d._record_modified DESC RETURN d)",
		)
	}
	if b.limit != "" {
		lines = append(lines, b.limit)
	}
	lines = append(lines, "RETURN "+b.returnExpr)
	return strings.Join(lines, "\n"), b.bindVars
}

// likePattern turns a raw substring into an AQL LIKE pattern, escaping the
// LIKE metacharacters in the input.
func likePattern(s string) string {
	return "%" + strings.NewReplacer(`_`, `\_`, `%`, `\%`).Replace(s) + "%"
}
