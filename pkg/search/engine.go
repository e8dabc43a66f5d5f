// Package search implements client-side substring search with artificial
// pagination over a fully collected record set.
//
// The backend cannot search across fields or pages, so the dashboard sweeps
// the collection first and filters here. Pagination metadata is recomputed
// purely from the filtered count: the filtered set has no relationship to
// the server's page boundaries.
package search

import (
	"strings"

	"github.com/fiscaliza/backoffice-client/pkg/api"
	"github.com/fiscaliza/backoffice-client/pkg/pagination"
)

// DefaultMinQueryLength is the shortest query worth a full sweep. Shorter
// queries fall through to ordinary server-side pagination.
const DefaultMinQueryLength = 2

// DefaultPageSize matches the backend's listing page size.
const DefaultPageSize = 10

// FieldFunc extracts one searchable field from a record.
type FieldFunc func(api.Record) string

// DefaultFields is the ordered field list the dashboard searches:
// plate, document number, type, description.
func DefaultFields() []FieldFunc {
	return []FieldFunc{
		func(r api.Record) string { return r.Plate },
		func(r api.Record) string { return r.DocumentNumber },
		func(r api.Record) string { return r.Type },
		func(r api.Record) string { return r.Description },
	}
}

// Result is one artificial page of a filtered set.
type Result struct {
	Items []api.Record
	Info  pagination.PageInfo
}

// Engine filters a complete record set and paginates the result.
// It is stateless: identical inputs always yield identical output.
type Engine struct {
	minQueryLength int
	fields         []FieldFunc
}

// NewEngine creates a search engine. fields may be nil for the defaults.
func NewEngine(minQueryLength int, fields []FieldFunc) *Engine {
	if minQueryLength <= 0 {
		minQueryLength = DefaultMinQueryLength
	}
	if fields == nil {
		fields = DefaultFields()
	}
	return &Engine{
		minQueryLength: minQueryLength,
		fields:         fields,
	}
}

// MinQueryLength returns the sweep threshold.
func (e *Engine) MinQueryLength() int {
	return e.minQueryLength
}

// ShouldSearch reports whether the query is long enough for the client-side
// search path.
func (e *Engine) ShouldSearch(query string) bool {
	return len(strings.TrimSpace(query)) >= e.minQueryLength
}

// Search filters allRecords by a case-insensitive OR-of-fields substring
// predicate and returns the requested artificial page.
//
// Out-of-range pages return a well-formed empty page, never an error; the
// UI clamps, the engine does not.
func (e *Engine) Search(allRecords []api.Record, query string, pageSize, page int) Result {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}

	filtered := e.filter(allRecords, query)
	info := pagination.Compute(len(filtered), pageSize, page)

	start := (page - 1) * pageSize
	if start >= len(filtered) {
		return Result{Items: []api.Record{}, Info: info}
	}
	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}

	return Result{Items: filtered[start:end], Info: info}
}

// Matches reports whether a single record matches the query.
func (e *Engine) Matches(record api.Record, query string) bool {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return true
	}
	for _, field := range e.fields {
		if strings.Contains(strings.ToLower(field(record)), needle) {
			return true
		}
	}
	return false
}

func (e *Engine) filter(records []api.Record, query string) []api.Record {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return records
	}

	var filtered []api.Record
	for _, record := range records {
		if e.Matches(record, needle) {
			filtered = append(filtered, record)
		}
	}
	return filtered
}
