package models

import (
	"fmt"
	"strings"
)

// TaskStatus defines allowed lifecycle states for tasks.
type TaskStatus string

const (
	StatusNew        TaskStatus = "new"
	StatusInProgress TaskStatus = "in-progress"
	StatusCompleted  TaskStatus = "completed"
	StatusOnHold     TaskStatus = "on-hold"
	StatusCanceled   TaskStatus = "canceled"
	StatusArchived   TaskStatus = "archived"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var taskStatuses = []TaskStatus{
	StatusNew,
	StatusInProgress,
	StatusOnHold,
	StatusCompleted,
	StatusCanceled,
	StatusArchived,
}

func IsValidTaskStatus(status TaskStatus) bool {
	for _, s := range taskStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func ParseTaskStatus(raw string) (TaskStatus, error) {
	value := TaskStatus(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("status is required")
	}
	if !IsValidTaskStatus(value) {
		return "", fmt.Errorf("invalid status: %s", value)
	}
	return value, nil
}

// TaskStatusStrings returns every status in workflow order.
func TaskStatusStrings() []string {
	out := make([]string, 0, len(taskStatuses))
	for _, value := range taskStatuses {
		out = append(out, string(value))
	}
	return out
}
