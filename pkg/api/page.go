package api

import (
	"encoding/json"
	"fmt"

	"github.com/fiscaliza/backoffice-client/pkg/pagination"
)

// Page is one decoded page of a collection listing.
type Page struct {
	Items []Record
	Info  pagination.PageInfo
}

// envelope is the upstream response wrapper:
//
//	{ "success": true, "data": { "<items-key>": [...], "pagination": {...} } }
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// pageInfoWire tolerates both pagination shapes the backend is known to
// emit: snake_case and camelCase. Pointers distinguish absent from zero.
type pageInfoWire struct {
	CurrentPage    *int  `json:"current_page"`
	TotalPages     *int  `json:"total_pages"`
	TotalRecords   *int  `json:"total_records"`
	RecordsPerPage *int  `json:"records_per_page"`
	HasNext        *bool `json:"has_next"`
	HasPrevious    *bool `json:"has_previous"`

	CamelCurrentPage *int  `json:"currentPage"`
	CamelTotalPages  *int  `json:"totalPages"`
	TotalItems       *int  `json:"totalItems"`
	HasNextPage      *bool `json:"hasNextPage"`
	HasPrevPage      *bool `json:"hasPrevPage"`
}

// normalize folds both wire shapes into the canonical descriptor.
// Snake_case wins when both are present; missing booleans stay false and the
// sweep's iteration ceiling covers the rest.
func (w pageInfoWire) normalize() pagination.PageInfo {
	pick := func(snake, camel *int) int {
		if snake != nil {
			return *snake
		}
		if camel != nil {
			return *camel
		}
		return 0
	}
	pickBool := func(snake, camel *bool) bool {
		if snake != nil {
			return *snake
		}
		if camel != nil {
			return *camel
		}
		return false
	}

	return pagination.PageInfo{
		CurrentPage:    pick(w.CurrentPage, w.CamelCurrentPage),
		TotalPages:     pick(w.TotalPages, w.CamelTotalPages),
		TotalRecords:   pick(w.TotalRecords, w.TotalItems),
		RecordsPerPage: pick(w.RecordsPerPage, nil),
		HasNext:        pickBool(w.HasNext, w.HasNextPage),
		HasPrevious:    pickBool(w.HasPrevious, w.HasPrevPage),
	}
}

// decodePage parses a list response body into a Page. itemsKey names the
// array inside data; when empty, the first array-valued key is used, since
// the backend names it after the collection ("fiscalizacoes", "documentos").
func decodePage(body []byte, itemsKey string) (*Page, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = "request rejected"
		}
		return nil, fmt.Errorf("upstream: %s", msg)
	}
	if len(env.Data) == 0 {
		return nil, ErrEmptyResponse
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}

	page := &Page{}

	if raw, ok := data["pagination"]; ok {
		var wire pageInfoWire
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, fmt.Errorf("decode pagination: %w", err)
		}
		page.Info = wire.normalize()
	}

	itemsRaw, err := findItems(data, itemsKey)
	if err != nil {
		return nil, err
	}
	if itemsRaw != nil {
		if err := json.Unmarshal(itemsRaw, &page.Items); err != nil {
			return nil, fmt.Errorf("decode items: %w", err)
		}
	}

	return page, nil
}

// findItems locates the items array inside data.
func findItems(data map[string]json.RawMessage, itemsKey string) (json.RawMessage, error) {
	if itemsKey != "" {
		raw, ok := data[itemsKey]
		if !ok {
			return nil, fmt.Errorf("items key %q not present in response", itemsKey)
		}
		return raw, nil
	}

	for key, raw := range data {
		if key == "pagination" {
			continue
		}
		for _, b := range raw {
			if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
				continue
			}
			if b == '[' {
				return raw, nil
			}
			break
		}
	}
	return nil, nil
}
