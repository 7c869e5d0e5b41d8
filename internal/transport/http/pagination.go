package http

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/natuspati/jeopardy-api/internal/store"
)

const maxPageSize = 100

// PageParams holds parsed pagination and filter query parameters.
type PageParams struct {
	Page     int
	PageSize int
	Start    *time.Time
	End      *time.Time
	Order    store.Order
}

// parsePageParams reads page, page_size, start, end and order query
// parameters, falling back to defaultPageSize.
func parsePageParams(c *gin.Context, defaultPageSize int) (PageParams, error) {
	params := PageParams{
		Page:     1,
		PageSize: defaultPageSize,
		Order:    store.OrderDesc,
	}

	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return params, fmt.Errorf("invalid page %q", raw)
		}
		params.Page = page
	}

	if raw := c.Query("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 || size > maxPageSize {
			return params, fmt.Errorf("invalid page_size %q", raw)
		}
		params.PageSize = size
	}

	if raw := c.Query("start"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return params, fmt.Errorf("invalid start %q", raw)
		}
		params.Start = &start
	}

	if raw := c.Query("end"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return params, fmt.Errorf("invalid end %q", raw)
		}
		params.End = &end
	}

	switch raw := c.Query("order"); raw {
	case "", "desc":
		params.Order = store.OrderDesc
	case "asc":
		params.Order = store.OrderAsc
	default:
		return params, fmt.Errorf("invalid order %q", raw)
	}

	return params, nil
}

// ListParams converts the page parameters to store query parameters.
func (p PageParams) ListParams() store.ListLobbiesParams {
	return store.ListLobbiesParams{
		Limit:  p.PageSize,
		Offset: (p.Page - 1) * p.PageSize,
		Start:  p.Start,
		End:    p.End,
		Order:  p.Order,
	}
}

// PagedResponse wraps a result page with navigation links.
type PagedResponse[T any] struct {
	Items    []T     `json:"items"`
	Total    int64   `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
	Next     *string `json:"next,omitempty"`
	Previous *string `json:"previous,omitempty"`
}

// pagedResponse builds a response page with next/previous links relative to
// the request URL.
func pagedResponse[T any](c *gin.Context, params PageParams, total int64, items []T) PagedResponse[T] {
	resp := PagedResponse[T]{
		Items:    items,
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	}
	if resp.Items == nil {
		resp.Items = []T{}
	}

	lastPage := int((total + int64(params.PageSize) - 1) / int64(params.PageSize))
	if params.Page < lastPage {
		next := pageLink(c.Request.URL, params.Page+1)
		resp.Next = &next
	}
	if params.Page > 1 {
		previous := pageLink(c.Request.URL, params.Page-1)
		resp.Previous = &previous
	}

	return resp
}

func pageLink(u *url.URL, page int) string {
	link := *u
	query := link.Query()
	query.Set("page", strconv.Itoa(page))
	link.RawQuery = query.Encode()
	return link.String()
}
