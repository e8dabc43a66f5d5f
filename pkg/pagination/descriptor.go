package pagination

// PageInfo is the canonical pagination descriptor. The upstream API answers
// with either a snake_case or a camelCase pagination shape; both are
// normalized into this struct at the decoding boundary so no other component
// ever sees the wire variants.
type PageInfo struct {
	CurrentPage    int  `json:"current_page"`
	TotalPages     int  `json:"total_pages"`
	TotalRecords   int  `json:"total_records"`
	RecordsPerPage int  `json:"records_per_page"`
	HasNext        bool `json:"has_next"`
	HasPrevious    bool `json:"has_previous"`
}

// Compute derives a PageInfo purely from a total count, a page size and the
// requested page. Used for artificial pagination over client-side filtered
// sets, where upstream page boundaries are meaningless.
func Compute(totalRecords, pageSize, page int) PageInfo {
	if pageSize <= 0 {
		pageSize = 1
	}
	if page < 1 {
		page = 1
	}

	totalPages := totalRecords / pageSize
	if totalRecords%pageSize != 0 {
		totalPages++
	}

	return PageInfo{
		CurrentPage:    page,
		TotalPages:     totalPages,
		TotalRecords:   totalRecords,
		RecordsPerPage: pageSize,
		HasNext:        page*pageSize < totalRecords,
		HasPrevious:    page > 1,
	}
}

// NextPage returns the page number a sweep should request after this one.
// When the upstream metadata carries no usable current page, the caller's
// own counter plus one is the conservative fallback.
func (p PageInfo) NextPage(fallbackCurrent int) int {
	if p.CurrentPage > 0 {
		return p.CurrentPage + 1
	}
	return fallbackCurrent + 1
}
