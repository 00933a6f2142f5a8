package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// Pagination defines the structure for pagination metadata.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// NewPagination computes page-count metadata for a paginated response.
func NewPagination(page, limit int, total int64) Pagination {
	if limit <= 0 {
		limit = 1
	}
	return Pagination{
		Page:  page,
		Limit: limit,
		Total: total,
		Pages: (int(total) + limit - 1) / limit,
	}
}

// pageParams reads page/limit query parameters with sane bounds.
func pageParams(c *gin.Context, defaultLimit int) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > 100 {
		limit = 100 // Max limit
	}

	return page, limit
}
