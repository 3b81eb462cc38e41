package models

// PageResponse wraps one page of a listing.
type PageResponse[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalPages    int   `json:"total_pages"`
	TotalElements int64 `json:"total_elements"`
}

func NewPageResponse[T any](content []T, page, size int, total int64) PageResponse[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if size > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}
	return PageResponse[T]{
		Content:       content,
		Page:          page,
		Size:          size,
		TotalPages:    totalPages,
		TotalElements: total,
	}
}
