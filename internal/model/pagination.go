package model

import "math"

const (
	DefaultPageSize = 10
	MaxPageSize     = 50

	// MaxPage keeps Offset from overflowing at any page size.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// PageRequest is a 1-based page number pagination request.
type PageRequest struct {
	Page     int
	PageSize int
}

// Normalize clamps the request to valid bounds.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// PostPage is the paginated post list envelope.
type PostPage struct {
	Count    int         `json:"count"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Next     *int        `json:"next"`
	Previous *int        `json:"previous"`
	Results  []*PostView `json:"results"`
}

func NewPostPage(req PageRequest, count int, results []*PostView) *PostPage {
	if results == nil {
		results = []*PostView{}
	}
	page := &PostPage{
		Count:    count,
		Page:     req.Page,
		PageSize: req.PageSize,
		Results:  results,
	}
	if req.Offset()+len(results) < count {
		next := req.Page + 1
		page.Next = &next
	}
	if req.Page > 1 {
		prev := req.Page - 1
		page.Previous = &prev
	}
	return page
}
