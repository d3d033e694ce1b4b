package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"tasktrack/internal/models"
)

const taskColumns = "id, name, author_id, assigned_user_id, status, filename, created_at, updated_at"

// TaskUpdate holds the mutable task fields. Nil pointers are left unchanged.
// Filename pointing at "" clears the column.
type TaskUpdate struct {
	Name           *string
	AssignedUserID *int64
	ClearAssignee  bool
	Status         *string
	Filename       *string
	UpdatedAt      time.Time
}

// ListFilter selects one page of tasks.
type ListFilter struct {
	AuthorID       *int64
	AssignedUserID *int64
	Statuses       []string
	Page           int
	Limit          int
	Descending     bool
}

// CreateTask inserts a task and sets its generated id.
func (s *Store) CreateTask(ctx context.Context, task *models.Task) error {
	if task == nil {
		return fmt.Errorf("task is required")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (name, author_id, assigned_user_id, status, filename, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		task.Name,
		task.AuthorID,
		nullInt64(task.AssignedUserID),
		task.Status,
		nullIfEmpty(task.Filename),
		formatTime(task.CreatedAt),
		formatTime(task.UpdatedAt),
	)
	if err != nil {
		return classifyWriteError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	task.ID = id
	return nil
}

// FindByID returns a task by id, or nil when it does not exist.
func (s *Store) FindByID(ctx context.Context, id int64, q DBTX) (*models.Task, error) {
	row := s.conn(q).QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	return scanTask(row)
}

// FindByFilename returns the task referencing filename, or nil when none does.
func (s *Store) FindByFilename(ctx context.Context, filename string) (*models.Task, error) {
	if filename == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE filename = ?", filename)
	return scanTask(row)
}

// UpdateTask updates mutable fields on a task and returns the updated row.
// It returns nil, nil when no row matched id.
func (s *Store) UpdateTask(ctx context.Context, id int64, update TaskUpdate, q DBTX) (*models.Task, error) {
	set := []string{}
	args := []any{}

	if update.Name != nil {
		set = append(set, "name = ?")
		args = append(args, *update.Name)
	}
	if update.ClearAssignee {
		set = append(set, "assigned_user_id = NULL")
	} else if update.AssignedUserID != nil {
		set = append(set, "assigned_user_id = ?")
		args = append(args, *update.AssignedUserID)
	}
	if update.Status != nil {
		set = append(set, "status = ?")
		args = append(args, *update.Status)
	}
	if update.Filename != nil {
		set = append(set, "filename = ?")
		args = append(args, nullIfEmpty(*update.Filename))
	}

	updatedAt := update.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	set = append(set, "updated_at = ?")
	args = append(args, formatTime(updatedAt))
	args = append(args, id)

	conn := s.conn(q)
	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = ?", strings.Join(set, ", "))
	res, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, classifyWriteError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}
	return s.FindByID(ctx, id, conn)
}

// DeleteFilename sets the filename column of the row currently referencing
// filename to value, or clears it when value is nil. It reports whether a
// row matched.
func (s *Store) DeleteFilename(ctx context.Context, filename string, value *string, q DBTX) (bool, error) {
	var next any
	if value != nil {
		next = nullIfEmpty(*value)
	}
	res, err := s.conn(q).ExecContext(ctx,
		"UPDATE tasks SET filename = ?, updated_at = ? WHERE filename = ?",
		next, formatTime(time.Now()), filename,
	)
	if err != nil {
		return false, classifyWriteError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// DeleteTask removes a task row and reports whether it existed.
func (s *Store) DeleteTask(ctx context.Context, id int64, q DBTX) (bool, error) {
	res, err := s.conn(q).ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListTasks returns one page of tasks matching filter and the total number
// of matching rows.
func (s *Store) ListTasks(ctx context.Context, filter ListFilter) ([]models.Task, int, error) {
	where, args := buildListWhere(filter)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := pageBounds(filter.Page, filter.Limit)
	order := "ASC"
	if filter.Descending {
		order = "DESC"
	}
	query := fmt.Sprintf("SELECT %s FROM tasks%s ORDER BY created_at %s, id %s LIMIT ? OFFSET ?", taskColumns, where, order, order)
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func buildListWhere(filter ListFilter) (string, []any) {
	clauses := []string{}
	args := []any{}
	if filter.AuthorID != nil {
		clauses = append(clauses, "author_id = ?")
		args = append(args, *filter.AuthorID)
	}
	if filter.AssignedUserID != nil {
		clauses = append(clauses, "assigned_user_id = ?")
		args = append(args, *filter.AssignedUserID)
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func pageBounds(page, limit int) (int, int) {
	if limit <= 0 {
		limit = models.DefaultPageSize
	}
	if limit > models.MaxPageSize {
		limit = models.MaxPageSize
	}
	if page < 1 {
		page = 1
	}
	return limit, (page - 1) * limit
}

func scanTask(scanner interface {
	Scan(dest ...any) error
}) (*models.Task, error) {
	var task models.Task
	var assigned sql.NullInt64
	var filename sql.NullString
	var createdAt, updatedAt string

	if err := scanner.Scan(
		&task.ID,
		&task.Name,
		&task.AuthorID,
		&assigned,
		&task.Status,
		&filename,
		&createdAt,
		&updatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if assigned.Valid {
		value := assigned.Int64
		task.AssignedUserID = &value
	}
	task.Filename = filename.String

	parsedCreated, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	parsedUpdated, err := parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	task.CreatedAt = parsedCreated
	task.UpdatedAt = parsedUpdated

	return &task, nil
}

func placeholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimRight(strings.Repeat("?,", count), ",")
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
