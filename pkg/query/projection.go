// Package query builds parameterized SELECT statements from a projection of
// view property names onto table columns.
package query

import (
	"strings"
)

// ProjectionMap maps view property names (the Go field names clients sort and
// filter by) to columns of a single aliased table.
type ProjectionMap struct {
	schema  string
	table   string
	alias   string
	columns map[string]string
	fields  []string
	names   []string
}

func NewProjectionMap(schema, table, alias string) *ProjectionMap {
	return &ProjectionMap{
		schema:  schema,
		table:   table,
		alias:   alias,
		columns: make(map[string]string),
	}
}

// Project maps column to viewName. Projection order is the scan order of
// every generated SELECT and of Returning.
func (p *ProjectionMap) Project(column, viewName string) *ProjectionMap {
	p.columns[viewName] = p.alias + "." + column
	p.fields = append(p.fields, viewName)
	p.names = append(p.names, column)
	return p
}

func (p *ProjectionMap) Alias() string {
	return p.alias
}

// From returns "schema.table alias".
func (p *ProjectionMap) From() string {
	return p.schema + "." + p.table + " " + p.alias
}

// Column returns the qualified column for viewName, or viewName unchanged
// when it is not projected.
func (p *ProjectionMap) Column(viewName string) string {
	if col, ok := p.columns[viewName]; ok {
		return col
	}
	return viewName
}

// Columns returns the qualified select list.
func (p *ProjectionMap) Columns() string {
	qualified := make([]string, len(p.fields))
	for i, f := range p.fields {
		qualified[i] = p.columns[f]
	}
	return strings.Join(qualified, ", ")
}

// Returning returns a RETURNING clause over the unqualified columns so that
// INSERT and UPDATE statements scan with the same function as SELECTs.
func (p *ProjectionMap) Returning() string {
	return "RETURNING " + strings.Join(p.names, ", ")
}

// Fields returns the projected view names in projection order.
func (p *ProjectionMap) Fields() []string {
	return append([]string(nil), p.fields...)
}

func (p *ProjectionMap) Has(viewName string) bool {
	_, ok := p.columns[viewName]
	return ok
}
