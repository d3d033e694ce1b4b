package main

import (
	"fmt"
	"os"
	"time"

	"tasktrack/internal/api"
	"tasktrack/internal/format"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeTaskList(resp api.TaskListResponse) error {
	for _, task := range resp.Tasks {
		if err := writePlain("%s\n", formatTaskLine(task)); err != nil {
			return err
		}
	}
	return writePlain("page %d, %d of %d tasks\n", resp.Page, len(resp.Tasks), resp.Total)
}

func writeTaskDetail(task api.TaskResponse) error {
	if err := writePlain("id: %d\nname: %s\nstatus: %s\nauthor_id: %d\n", task.ID, task.Name, task.Status, task.AuthorID); err != nil {
		return err
	}
	if task.AssignedUserID != nil {
		if err := writePlain("assigned_user_id: %d\n", *task.AssignedUserID); err != nil {
			return err
		}
	}
	if task.Filename != "" {
		if err := writePlain("filename: %s\n", task.Filename); err != nil {
			return err
		}
	}
	return writePlain("created_at: %s\nupdated_at: %s\n", formatTime(task.CreatedAt), formatTime(task.UpdatedAt))
}

func formatTaskLine(task api.TaskResponse) string {
	line := fmt.Sprintf("#%d [%s] %s", task.ID, task.Status, task.Name)
	if task.Filename != "" {
		line += " (" + task.Filename + ")"
	}
	return line
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
