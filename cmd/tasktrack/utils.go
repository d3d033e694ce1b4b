package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

func parseTaskIDArg(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", raw)
	}
	return id, nil
}

func setIfNotEmpty(values url.Values, key, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	values.Set(key, value)
}

func setIfPositive(values url.Values, key string, value int64) {
	if value <= 0 {
		return
	}
	values.Set(key, strconv.FormatInt(value, 10))
}
