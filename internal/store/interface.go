package store

import (
	"context"

	"tasktrack/internal/models"
)

// TaskRecordStore is the task persistence surface used by the attachment
// workflow.
type TaskRecordStore interface {
	FindByID(ctx context.Context, id int64, q DBTX) (*models.Task, error)
	FindByFilename(ctx context.Context, filename string) (*models.Task, error)
	UpdateTask(ctx context.Context, id int64, update TaskUpdate, q DBTX) (*models.Task, error)
	DeleteFilename(ctx context.Context, filename string, value *string, q DBTX) (bool, error)
	RunInTx(ctx context.Context, fn TxFn) error
}

// TaskStore abstracts task and user storage.
type TaskStore interface {
	TaskRecordStore
	TaskExists(ctx context.Context, id int64) (bool, error)
	CreateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id int64, q DBTX) (bool, error)
	ListTasks(ctx context.Context, filter ListFilter) ([]models.Task, int, error)
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UserExists(ctx context.Context, id int64) (bool, error)
	StoreInfo(ctx context.Context) (*StoreInfo, error)
}

var _ TaskStore = (*Store)(nil)
