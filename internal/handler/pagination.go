package handler

import (
	"net/http"
	"strconv"

	"github.com/nagi1/baileys-api/internal/config"
)

const MaxLimit = 100

type PaginationParams struct {
	Cursor int64
	Limit  int
}

// ParsePagination reads the numeric row cursor and page size from the
// query string. Out-of-range values fall back to defaults.
func ParsePagination(r *http.Request) PaginationParams {
	cursor, _ := strconv.ParseInt(r.URL.Query().Get("cursor"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	if cursor < 0 {
		cursor = 0
	}
	if limit <= 0 || limit > MaxLimit {
		limit = config.DefaultPageSize
	}

	return PaginationParams{
		Cursor: cursor,
		Limit:  limit,
	}
}

// PagedResponse wraps a page of rows with the cursor of the next page,
// nil when the listing is exhausted.
type PagedResponse struct {
	Data   any    `json:"data"`
	Cursor *int64 `json:"cursor"`
}

// NewPagedResponse builds the envelope; nextCursor is the row id of the
// last returned item when the page came back full.
func NewPagedResponse(data any, returned, limit int, lastRowID int64) PagedResponse {
	resp := PagedResponse{Data: data}
	if returned == limit {
		cursor := lastRowID
		resp.Cursor = &cursor
	}
	return resp
}
