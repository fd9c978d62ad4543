// Package query builds parameterized SELECT statements for the warehouse
// from projection maps, for PostgreSQL and SQLite placeholder styles.
package query

import "strings"

// ProjectionMap names the columns of one aliased table by view name, the
// property name callers filter and sort on.
type ProjectionMap struct {
	schema  string
	table   string
	alias   string
	byView  map[string]string
	ordered []string
}

// NewProjectionMap starts a projection of schema.table AS alias. An empty
// schema leaves the table unqualified, as SQLite requires.
func NewProjectionMap(schema, table, alias string) *ProjectionMap {
	return &ProjectionMap{
		schema: schema,
		table:  table,
		alias:  alias,
		byView: make(map[string]string),
	}
}

// Project maps column to viewName. Columns are selected in Project order.
func (p *ProjectionMap) Project(column, viewName string) *ProjectionMap {
	qualified := p.alias + "." + column
	p.byView[strings.ToLower(viewName)] = qualified
	p.ordered = append(p.ordered, qualified)
	return p
}

// Alias returns the table alias.
func (p *ProjectionMap) Alias() string {
	return p.alias
}

// Table returns schema.table, or table without a schema.
func (p *ProjectionMap) Table() string {
	if p.schema == "" {
		return p.table
	}
	return p.schema + "." + p.table
}

// From returns the aliased table reference for a FROM clause.
func (p *ProjectionMap) From() string {
	return p.Table() + " " + p.alias
}

// Lookup returns the qualified column for a view name, ignoring case.
func (p *ProjectionMap) Lookup(viewName string) (string, bool) {
	col, ok := p.byView[strings.ToLower(viewName)]
	return col, ok
}

// Column is Lookup that falls back to viewName for unmapped names.
func (p *ProjectionMap) Column(viewName string) string {
	if col, ok := p.Lookup(viewName); ok {
		return col
	}
	return viewName
}

// Columns returns the select list.
func (p *ProjectionMap) Columns() string {
	return strings.Join(p.ordered, ", ")
}

// ColumnList returns the qualified columns in projection order.
func (p *ProjectionMap) ColumnList() []string {
	return p.ordered
}
