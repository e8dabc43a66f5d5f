// Package testutil provides testing utilities for the back-office client.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// MockBackOffice is a configurable mock of the upstream back-office API.
// It serves paginated collection listings in either pagination wire shape
// and lets tests script mutation route behavior per path.
type MockBackOffice struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	collections map[string][]map[string]any
	camelCase   map[string]bool
	pageSize    int

	// Tracking
	RequestCount int
	PagesServed  []int
}

// NewMockBackOffice creates a new mock server.
func NewMockBackOffice() *MockBackOffice {
	mock := &MockBackOffice{
		handlers:    make(map[string]http.HandlerFunc),
		collections: make(map[string][]map[string]any),
		camelCase:   make(map[string]bool),
		pageSize:    10,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.mu.Unlock()

		key := r.Method + " " + r.URL.Path
		mock.mu.RLock()
		handler, exists := mock.handlers[key]
		if !exists {
			handler, exists = mock.handlers[r.URL.Path]
		}
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockBackOffice) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockBackOffice) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockBackOffice) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.PagesServed = nil
}

// SetCollection installs the records served for a collection listing.
func (m *MockBackOffice) SetCollection(name string, records []map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[name] = records
}

// UseCamelCase switches a collection's pagination metadata to the camelCase
// wire shape (currentPage/totalPages/totalItems/hasNextPage/hasPrevPage).
func (m *MockBackOffice) UseCamelCase(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.camelCase[name] = true
}

// SetPageSize sets the server-side page size (default 10).
func (m *MockBackOffice) SetPageSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageSize = n
}

// SetHandler sets a custom handler for a path, optionally prefixed with the
// HTTP method ("DELETE /documentos/42").
func (m *MockBackOffice) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetStatus makes a path answer with a fixed status and message.
func (m *MockBackOffice) SetStatus(path string, status int, message string) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"success": status < 400,
			"message": message,
		})
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockBackOffice) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// defaultHandler serves collection listings; everything else is 404 so
// mutation chains exercise their fallbacks unless a route is scripted.
func (m *MockBackOffice) defaultHandler(w http.ResponseWriter, r *http.Request) {
	name := strings.Trim(r.URL.Path, "/")

	m.mu.RLock()
	records, ok := m.collections[name]
	camel := m.camelCase[name]
	pageSize := m.pageSize
	m.mu.RUnlock()

	if !ok || r.Method != http.MethodGet {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "route not found",
		})
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	m.mu.Lock()
	m.PagesServed = append(m.PagesServed, page)
	m.mu.Unlock()

	total := len(records)
	totalPages := (total + pageSize - 1) / pageSize

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	var paginationObj map[string]any
	if camel {
		paginationObj = map[string]any{
			"currentPage": page,
			"totalPages":  totalPages,
			"totalItems":  total,
			"hasNextPage": page < totalPages,
			"hasPrevPage": page > 1,
		}
	} else {
		paginationObj = map[string]any{
			"current_page":     page,
			"total_pages":      totalPages,
			"total_records":    total,
			"records_per_page": pageSize,
			"has_next":         page < totalPages,
			"has_previous":     page > 1,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data": map[string]any{
			name:         records[start:end],
			"pagination": paginationObj,
		},
	})
}

// NewRecord builds a minimal back-office record for tests.
func NewRecord(id, plate, documentNumber, recordType, createdAt string) map[string]any {
	return map[string]any{
		"id":               id,
		"placa":            plate,
		"numero_documento": documentNumber,
		"tipo":             recordType,
		"created_at":       createdAt,
	}
}
