package handler

import "github.com/erp/stocksync/internal/interfaces/http/dto"

// pageOrDefault fills unset paging parameters with the API defaults
func pageOrDefault(page, pageSize int) (int, int) {
	defaults := dto.DefaultPageRequest()
	if page <= 0 {
		page = defaults.Page
	}
	if pageSize <= 0 {
		pageSize = defaults.PageSize
	}
	return page, pageSize
}
