package store

import "context"

// StoreInfo summarizes the database contents.
type StoreInfo struct {
	SchemaVersion   int            `json:"schema_version"`
	TotalTasks      int            `json:"total_tasks"`
	TaskCounts      map[string]int `json:"task_counts"`
	AttachmentCount int            `json:"attachment_count"`
	UserCount       int            `json:"user_count"`
}

// StoreInfo returns the schema version and row counts.
func (s *Store) StoreInfo(ctx context.Context) (*StoreInfo, error) {
	info := &StoreInfo{TaskCounts: map[string]int{}}

	version, err := currentVersion(s.db)
	if err != nil {
		return nil, err
	}
	info.SchemaVersion = version

	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM tasks GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		info.TaskCounts[status] = count
		info.TotalTasks += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks WHERE filename IS NOT NULL").Scan(&info.AttachmentCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&info.UserCount); err != nil {
		return nil, err
	}
	return info, nil
}
