package query

import (
	"fmt"
	"reflect"
	"strings"
)

// SortField is one ORDER BY term. Field is a projected view name.
type SortField struct {
	Field      string
	Descending bool
}

// ParseSortFields parses "dateId,-orderId": comma separated view names, a
// leading "-" for descending. Blank segments are skipped; empty input
// yields nil.
func ParseSortFields(s string) []SortField {
	var fields []SortField
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, desc := strings.CutPrefix(part, "-")
		fields = append(fields, SortField{Field: name, Descending: desc})
	}
	return fields
}

// operator renders a condition on col with one placeholder per argument.
type operator func(col, like string, ph []string) string

var (
	opEquals = func(col, _ string, ph []string) string { return col + " = " + ph[0] }
	opLike   = func(col, like string, ph []string) string { return col + " " + like + " " + ph[0] }
	opGTE    = func(col, _ string, ph []string) string { return col + " >= " + ph[0] }
	opLTE    = func(col, _ string, ph []string) string { return col + " <= " + ph[0] }
	opIn     = func(col, _ string, ph []string) string {
		return col + " IN (" + strings.Join(ph, ", ") + ")"
	}
)

type condition struct {
	column string
	op     operator
	args   []any
}

// Builder assembles SELECT statements over one projection. Conditions are
// joined with AND and numbered in the order they were added.
type Builder struct {
	projection  *ProjectionMap
	dialect     Dialect
	conditions  []condition
	sort        []SortField
	defaultSort []SortField
}

// NewBuilder starts a Postgres query over projection.
func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{projection: projection, dialect: Postgres, defaultSort: defaultSort}
}

// WithDialect switches the placeholder and matching conventions.
func (b *Builder) WithDialect(d Dialect) *Builder {
	b.dialect = d
	return b
}

// OrderByFields replaces the default sort.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	b.sort = fields
	return b
}

func (b *Builder) where(field string, op operator, args ...any) *Builder {
	b.conditions = append(b.conditions, condition{
		column: b.projection.Column(field),
		op:     op,
		args:   args,
	})
	return b
}

// WhereEquals matches field exactly. Nil values, including typed nil
// pointers, add nothing.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	return b.where(field, opEquals, value)
}

// WhereContains matches field case-insensitively against a substring.
// A nil or empty value adds nothing.
func (b *Builder) WhereContains(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	return b.where(field, opLike, "%"+*value+"%")
}

// WhereIn matches any of values. An empty list adds nothing.
func (b *Builder) WhereIn(field string, values []any) *Builder {
	if len(values) == 0 {
		return b
	}
	return b.where(field, opIn, values...)
}

// WhereRange bounds field inclusively. Either bound may be nil.
func (b *Builder) WhereRange(field string, from, to any) *Builder {
	if !isNil(from) {
		b.where(field, opGTE, from)
	}
	if !isNil(to) {
		b.where(field, opLTE, to)
	}
	return b
}

// Build returns a SELECT with the conditions and ordering.
func (b *Builder) Build() (string, []any) {
	where, args := b.whereClause()
	return fmt.Sprintf("SELECT %s FROM %s%s%s",
		b.projection.Columns(), b.projection.From(), where, b.orderBy()), args
}

// BuildCount returns a COUNT(*) over the conditions.
func (b *Builder) BuildCount() (string, []any) {
	where, args := b.whereClause()
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", b.projection.From(), where), args
}

// BuildPage returns Build limited to one page. page is 1-based.
func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	sql, args := b.Build()
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", sql, pageSize, (page-1)*pageSize), args
}

// BuildSingle selects the row whose idField equals id, ignoring other
// conditions.
func (b *Builder) BuildSingle(idField string, id any) (string, []any) {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		b.projection.Columns(),
		b.projection.From(),
		b.projection.Column(idField),
		b.dialect.Placeholder(1),
	), []any{id}
}

func (b *Builder) whereClause() (string, []any) {
	if len(b.conditions) == 0 {
		return "", nil
	}

	var (
		clauses = make([]string, len(b.conditions))
		args    []any
	)
	for i, c := range b.conditions {
		ph := make([]string, len(c.args))
		for j := range c.args {
			ph[j] = b.dialect.Placeholder(len(args) + j + 1)
		}
		clauses[i] = c.op(c.column, b.dialect.like(), ph)
		args = append(args, c.args...)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// orderBy renders the requested sort, or the default when none of the
// requested fields is projected. Unknown fields never reach the SQL.
func (b *Builder) orderBy() string {
	terms := b.sortTerms(b.sort)
	if len(terms) == 0 {
		terms = b.sortTerms(b.defaultSort)
	}
	if len(terms) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

func (b *Builder) sortTerms(fields []SortField) []string {
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		col, ok := b.projection.Lookup(f.Field)
		if !ok {
			continue
		}
		dir := "ASC"
		if f.Descending {
			dir = "DESC"
		}
		terms = append(terms, col+" "+dir)
	}
	return terms
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	switch v := reflect.ValueOf(value); v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}
