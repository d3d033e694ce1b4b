package server

import (
	"fmt"
	"net/http"
	"strings"

	"tasktrack/internal/models"
	"tasktrack/internal/store"
)

func parseListFilter(r *http.Request) (store.ListFilter, error) {
	filter := store.ListFilter{}

	page, err := queryInt(r, "page")
	if err != nil {
		return filter, err
	}
	if page == 0 {
		page = 1
	}
	filter.Page = page

	limit, err := queryInt(r, "limit")
	if err != nil {
		return filter, err
	}
	switch {
	case limit == 0:
		limit = models.DefaultPageSize
	case limit > models.MaxPageSize:
		return filter, badRequestCode(fmt.Errorf("limit must be <= %d", models.MaxPageSize), ErrCodeInvalidQuery)
	}
	filter.Limit = limit

	if filter.AuthorID, err = queryInt64Ptr(r, "author_id"); err != nil {
		return filter, err
	}
	if filter.AssignedUserID, err = queryInt64Ptr(r, "assigned_user_id"); err != nil {
		return filter, err
	}

	statuses, err := normalizeStatuses(splitCSV(r.URL.Query().Get("status")))
	if err != nil {
		return filter, badRequestCode(err, ErrCodeInvalidStatus)
	}
	filter.Statuses = statuses

	switch order := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("order"))); order {
	case "", "asc":
	case "desc":
		filter.Descending = true
	default:
		return filter, badRequestCode(fmt.Errorf("invalid order: %s", order), ErrCodeInvalidQuery)
	}

	return filter, nil
}
