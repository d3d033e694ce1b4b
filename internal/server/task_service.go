package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tasktrack/internal/api"
	"tasktrack/internal/filestore"
	"tasktrack/internal/models"
	"tasktrack/internal/store"
)

// TaskService centralizes task validation and defaults.
type TaskService struct {
	store  store.TaskStore
	files  filestore.AttachmentFiles
	locks  *taskLocks
	logger *slog.Logger
}

// NewTaskService constructs a TaskService.
func NewTaskService(taskStore store.TaskStore, files filestore.AttachmentFiles, locks *taskLocks, logger *slog.Logger) *TaskService {
	if locks == nil {
		locks = newTaskLocks()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskService{store: taskStore, files: files, locks: locks, logger: logger}
}

// Create creates a task from a request. New tasks always start as "new".
func (s *TaskService) Create(ctx context.Context, req api.TaskCreateRequest) (api.TaskResponse, error) {
	var resp api.TaskResponse

	name, err := normalizeTaskName(req.Name)
	if err != nil {
		return resp, badRequestCode(err, ErrCodeMissingRequired)
	}
	if req.AuthorID <= 0 {
		return resp, badRequestCode(fmt.Errorf("author_id is required"), ErrCodeMissingRequired)
	}
	if err := s.ensureUserExists(ctx, req.AuthorID, "author_id"); err != nil {
		return resp, err
	}
	if req.AssignedUserID != nil {
		if err := s.ensureUserExists(ctx, *req.AssignedUserID, "assigned_user_id"); err != nil {
			return resp, err
		}
	}

	now := time.Now().UTC()
	task := &models.Task{
		Name:           name,
		AuthorID:       req.AuthorID,
		AssignedUserID: req.AssignedUserID,
		Status:         string(models.StatusNew),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		if errors.Is(err, store.ErrReferenceNotFound) {
			return resp, badRequestCode(err, ErrCodeInvalidReference)
		}
		return resp, storeFailure(err)
	}

	return s.Get(ctx, task.ID)
}

// Get returns a task by id.
func (s *TaskService) Get(ctx context.Context, id int64) (api.TaskResponse, error) {
	var resp api.TaskResponse
	task, err := s.store.FindByID(ctx, id, nil)
	if err != nil {
		return resp, storeFailure(err)
	}
	if task == nil {
		return resp, notFound(fmt.Errorf("task %d not found", id))
	}
	return *task, nil
}

// List returns one page of tasks.
func (s *TaskService) List(ctx context.Context, filter store.ListFilter) (api.TaskListResponse, error) {
	var resp api.TaskListResponse
	tasks, total, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return resp, storeFailure(err)
	}
	return api.TaskListResponse{Tasks: tasks, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// Update applies name and assignee changes.
func (s *TaskService) Update(ctx context.Context, id int64, req api.TaskUpdateRequest) (api.TaskResponse, error) {
	var resp api.TaskResponse

	update := store.TaskUpdate{ClearAssignee: req.ClearAssignee, UpdatedAt: time.Now().UTC()}
	if req.Name != nil {
		name, err := normalizeTaskName(*req.Name)
		if err != nil {
			return resp, badRequest(err)
		}
		update.Name = &name
	}
	if req.AssignedUserID != nil && !req.ClearAssignee {
		if err := s.ensureUserExists(ctx, *req.AssignedUserID, "assigned_user_id"); err != nil {
			return resp, err
		}
		update.AssignedUserID = req.AssignedUserID
	}
	if update.Name == nil && update.AssignedUserID == nil && !update.ClearAssignee {
		return resp, badRequestCode(fmt.Errorf("no fields to update"), ErrCodeMissingRequired)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	task, err := s.store.UpdateTask(ctx, id, update, nil)
	if err != nil {
		if errors.Is(err, store.ErrReferenceNotFound) {
			return resp, badRequestCode(err, ErrCodeInvalidReference)
		}
		return resp, storeFailure(err)
	}
	if task == nil {
		return resp, notFound(fmt.Errorf("task %d not found", id))
	}
	return *task, nil
}

// Transition moves a task through the workflow.
func (s *TaskService) Transition(ctx context.Context, id int64, raw string) (api.TaskTransitionResponse, error) {
	var resp api.TaskTransitionResponse

	transition, err := models.ParseTaskTransition(raw)
	if err != nil {
		return resp, badRequestCode(err, ErrCodeInvalidTransition)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	var updated *models.Task
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		task, err := s.store.FindByID(ctx, id, tx)
		if err != nil {
			return storeFailure(err)
		}
		if task == nil {
			return notFound(fmt.Errorf("task %d not found", id))
		}
		next, err := models.Apply(transition, models.TaskStatus(task.Status))
		if err != nil {
			return badRequestCode(err, ErrCodeInvalidTransition)
		}
		status := string(next)
		updated, err = s.store.UpdateTask(ctx, id, store.TaskUpdate{Status: &status, UpdatedAt: time.Now().UTC()}, tx)
		if err != nil {
			return storeFailure(err)
		}
		if updated == nil {
			return notFound(fmt.Errorf("task %d not found", id))
		}
		return nil
	})
	if err != nil {
		return resp, err
	}

	return api.TaskTransitionResponse{
		Message: fmt.Sprintf("task %d moved to %s", id, updated.Status),
		Task:    *updated,
	}, nil
}

// Delete removes a task and then its attachment file, if any. A file that
// can not be removed is logged and left for manual cleanup.
func (s *TaskService) Delete(ctx context.Context, id int64) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	task, err := s.store.FindByID(ctx, id, nil)
	if err != nil {
		return storeFailure(err)
	}
	if task == nil {
		return notFound(fmt.Errorf("task %d not found", id))
	}

	deleted, err := s.store.DeleteTask(ctx, id, nil)
	if err != nil {
		return storeFailure(err)
	}
	if !deleted {
		return notFound(fmt.Errorf("task %d not found", id))
	}

	if task.HasAttachment() && s.files != nil {
		if err := s.files.Delete(task.Filename); err != nil {
			s.logger.Warn("remove attachment of deleted task", "task_id", id, "filename", task.Filename, "error", err)
		}
	}
	return nil
}

func (s *TaskService) ensureUserExists(ctx context.Context, id int64, field string) error {
	if id <= 0 {
		return badRequestCode(fmt.Errorf("invalid %s", field), ErrCodeInvalidReference)
	}
	exists, err := s.store.UserExists(ctx, id)
	if err != nil {
		return storeFailure(err)
	}
	if !exists {
		return notFoundCode(fmt.Errorf("user %d not found", id), ErrCodeUserNotFound)
	}
	return nil
}
