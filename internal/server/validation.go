package server

import (
	"fmt"
	"mime"
	"strconv"
	"strings"

	"tasktrack/internal/models"
)

const maxTaskNameLength = 200

func parseTaskID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id: %q", raw)
	}
	return id, nil
}

func normalizeTaskName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("name is required")
	}
	if len(name) > maxTaskNameLength {
		return "", fmt.Errorf("name must be at most %d characters", maxTaskNameLength)
	}
	return name, nil
}

func normalizeStatuses(values []string) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, value := range values {
		status, err := models.ParseTaskStatus(value)
		if err != nil {
			return nil, err
		}
		out = append(out, string(status))
	}
	return out, nil
}

// normalizeMediaType strips parameters and lowercases a media type.
func normalizeMediaType(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(raw)
	}
	return strings.ToLower(mediaType)
}
