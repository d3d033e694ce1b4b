package api

import "tasktrack/internal/models"

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// InfoResponse describes the server's database and upload layout.
type InfoResponse struct {
	DBPath          string         `json:"db_path"`
	UploadDir       string         `json:"upload_dir"`
	SchemaVersion   int            `json:"schema_version"`
	TaskCounts      map[string]int `json:"task_counts"`
	TotalTasks      int            `json:"total_tasks"`
	AttachmentCount int            `json:"attachment_count"`
	UserCount       int            `json:"user_count"`
}

// TaskCreateRequest is the payload for POST /v1/tasks. Status is always
// forced to "new".
type TaskCreateRequest struct {
	Name           string `json:"name"`
	AuthorID       int64  `json:"author_id"`
	AssignedUserID *int64 `json:"assigned_user_id,omitempty"`
}

// TaskUpdateRequest is the payload for PATCH /v1/tasks/{id}.
type TaskUpdateRequest struct {
	Name           *string `json:"name,omitempty"`
	AssignedUserID *int64  `json:"assigned_user_id,omitempty"`
	ClearAssignee  bool    `json:"clear_assignee,omitempty"`
}

// TaskTransitionRequest is the payload for PATCH /v1/tasks/{id}/transition.
type TaskTransitionRequest struct {
	Transition string `json:"transition"`
}

// TaskTransitionResponse reports the outcome of a workflow transition.
type TaskTransitionResponse struct {
	Message string      `json:"message"`
	Task    models.Task `json:"task"`
}

// TaskResponse is a single task.
type TaskResponse = models.Task

// TaskListResponse is one page of tasks.
type TaskListResponse struct {
	Tasks []models.Task `json:"tasks"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// AttachmentResponse describes the attachment written by an upload.
type AttachmentResponse = models.Attachment

// AttachmentDeleteResponse confirms an attachment removal.
type AttachmentDeleteResponse struct {
	Filename string `json:"filename"`
	TaskID   int64  `json:"task_id"`
}

// TempSweepRequest is the payload for POST /v1/admin/temp-sweep.
type TempSweepRequest struct {
	OlderThan string `json:"older_than,omitempty"`
	DryRun    bool   `json:"dry_run"`
}

// TempSweepResponse reports a staging directory sweep.
type TempSweepResponse struct {
	CandidateCount int   `json:"candidate_count"`
	DeletedCount   int   `json:"deleted_count"`
	FailedCount    int   `json:"failed_count"`
	ReclaimedBytes int64 `json:"reclaimed_bytes"`
	DryRun         bool  `json:"dry_run"`
}
