package models

import "time"

// Task represents a single tracked task. Filename is empty when no image is
// attached.
type Task struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	AuthorID       int64     `json:"author_id"`
	AssignedUserID *int64    `json:"assigned_user_id,omitempty"`
	Status         string    `json:"status"`
	Filename       string    `json:"filename,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HasAttachment reports whether the task references an image file.
func (t *Task) HasAttachment() bool {
	return t != nil && t.Filename != ""
}
