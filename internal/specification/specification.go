// Package specification composes optional SQL predicates into a WHERE
// fragment with positional pgx arguments. A nil Spec means "no restriction"
// and is dropped by every combinator.
package specification

import (
	"fmt"
	"strings"
	"time"
)

// Spec renders a single predicate. Render returns "" when nothing applies
// and must not add arguments in that case.
type Spec interface {
	Render(b *Builder) string
}

// Builder accumulates positional arguments while specs render.
type Builder struct {
	start int
	args  []any
}

// Bind registers v and returns its placeholder.
func (b *Builder) Bind(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", b.start+len(b.args)-1)
}

// Build renders spec with placeholders numbered from startIndex.
// The clause is "TRUE" when nothing applies.
func Build(spec Spec, startIndex int) (string, []any) {
	if startIndex < 1 {
		startIndex = 1
	}
	b := &Builder{start: startIndex}
	clause := ""
	if spec != nil {
		clause = spec.Render(b)
	}
	if clause == "" {
		return "TRUE", nil
	}
	return clause, b.args
}

type eqSpec struct {
	column string
	value  any
}

// Eq matches column = value. A nil value yields no predicate.
func Eq(column string, value any) Spec {
	if value == nil {
		return nil
	}
	return eqSpec{column: column, value: value}
}

func (s eqSpec) Render(b *Builder) string {
	return fmt.Sprintf("%s = %s", s.column, b.Bind(s.value))
}

type inSpec struct {
	column string
	values []any
	negate bool
}

// In matches column against any of values. Empty values yield no predicate.
func In[T any](column string, values []T) Spec {
	return newIn(column, values, false)
}

// NotIn excludes values. Empty values yield no predicate.
func NotIn[T any](column string, values []T) Spec {
	return newIn(column, values, true)
}

func newIn[T any](column string, values []T, negate bool) Spec {
	if len(values) == 0 {
		return nil
	}
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return inSpec{column: column, values: vals, negate: negate}
}

func (s inSpec) Render(b *Builder) string {
	placeholders := make([]string, len(s.values))
	for i, v := range s.values {
		placeholders[i] = b.Bind(v)
	}
	op := "IN"
	if s.negate {
		op = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", s.column, op, strings.Join(placeholders, ","))
}

type betweenSpec struct {
	column   string
	from, to *time.Time
}

// Between bounds column inclusively. Either bound may be nil; both nil yields no predicate.
func Between(column string, from, to *time.Time) Spec {
	if from == nil && to == nil {
		return nil
	}
	return betweenSpec{column: column, from: from, to: to}
}

func (s betweenSpec) Render(b *Builder) string {
	switch {
	case s.from == nil:
		return fmt.Sprintf("%s <= %s", s.column, b.Bind(*s.to))
	case s.to == nil:
		return fmt.Sprintf("%s >= %s", s.column, b.Bind(*s.from))
	default:
		from := b.Bind(*s.from)
		return fmt.Sprintf("%s BETWEEN %s AND %s", s.column, from, b.Bind(*s.to))
	}
}

type beforeSpec struct {
	column string
	t      time.Time
}

// Before matches column strictly earlier than t.
func Before(column string, t time.Time) Spec {
	return beforeSpec{column: column, t: t}
}

func (s beforeSpec) Render(b *Builder) string {
	return fmt.Sprintf("%s < %s", s.column, b.Bind(s.t))
}

type ilikeSpec struct {
	columns []string
	pattern string
}

// ILike matches term as a case-insensitive substring of any column.
func ILike(columns []string, term string) Spec {
	term = strings.TrimSpace(term)
	if term == "" || len(columns) == 0 {
		return nil
	}
	return ilikeSpec{columns: columns, pattern: "%" + term + "%"}
}

func (s ilikeSpec) Render(b *Builder) string {
	ph := b.Bind(s.pattern)
	parts := make([]string, len(s.columns))
	for i, col := range s.columns {
		parts[i] = fmt.Sprintf("%s ILIKE %s", col, ph)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

type rawSpec struct {
	sql  string
	args []any
}

// Raw embeds sql verbatim, replacing each ? with the next argument.
func Raw(sql string, args ...any) Spec {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	return rawSpec{sql: sql, args: args}
}

func (s rawSpec) Render(b *Builder) string {
	if len(s.args) == 0 {
		return s.sql
	}
	var out strings.Builder
	next := 0
	for _, r := range s.sql {
		if r == '?' && next < len(s.args) {
			out.WriteString(b.Bind(s.args[next]))
			next++
			continue
		}
		out.WriteRune(r)
	}
	return out.String()
}

type groupSpec struct {
	op    string
	specs []Spec
}

// And joins specs with AND, dropping nil members.
func And(specs ...Spec) Spec {
	return group("AND", specs)
}

// Or joins specs with OR, dropping nil members.
func Or(specs ...Spec) Spec {
	return group("OR", specs)
}

func group(op string, specs []Spec) Spec {
	kept := make([]Spec, 0, len(specs))
	for _, s := range specs {
		if s != nil {
			kept = append(kept, s)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return groupSpec{op: op, specs: kept}
}

func (s groupSpec) Render(b *Builder) string {
	parts := make([]string, 0, len(s.specs))
	for _, spec := range s.specs {
		if part := spec.Render(b); part != "" {
			parts = append(parts, part)
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return "(" + strings.Join(parts, " "+s.op+" ") + ")"
}

type notSpec struct {
	inner Spec
}

// Not negates spec. Not(nil) is nil.
func Not(spec Spec) Spec {
	if spec == nil {
		return nil
	}
	return notSpec{inner: spec}
}

func (s notSpec) Render(b *Builder) string {
	inner := s.inner.Render(b)
	if inner == "" {
		return ""
	}
	return "NOT (" + inner + ")"
}
