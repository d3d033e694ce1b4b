package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"tasktrack/internal/models"
)

// CreateUser inserts a user with its roles and sets the generated id.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("user is required")
	}
	user.Username = normalizeUsername(user.Username)
	user.Email = strings.TrimSpace(strings.ToLower(user.Email))
	if user.Username == "" {
		return fmt.Errorf("username is required")
	}
	if strings.TrimSpace(user.PasswordHash) == "" {
		return fmt.Errorf("password hash is required")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	return s.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO users (username, email, password_hash, created_at)
			VALUES (?, ?, ?, ?)
		`, user.Username, user.Email, user.PasswordHash, formatTime(user.CreatedAt))
		if err != nil {
			return classifyWriteError(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for _, role := range user.Roles {
			if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO user_roles (user_id, role) VALUES (?, ?)", id, role); err != nil {
				return err
			}
		}
		user.ID = id
		return nil
	})
}

// GetUserByUsername returns a user by normalized username, or nil.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	username = normalizeUsername(username)
	if username == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE username = ?
		LIMIT 1
	`, username)
	user, err := scanUser(row)
	if err != nil || user == nil {
		return user, err
	}
	user.Roles, err = s.userRoles(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UserExists reports whether a user with id exists.
func (s *Store) UserExists(ctx context.Context, id int64) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ? LIMIT 1", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) userRoles(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT role FROM user_roles WHERE user_id = ? ORDER BY role", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := []string{}
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func scanUser(scanner interface {
	Scan(dest ...any) error
}) (*models.User, error) {
	var user models.User
	var createdAt string
	if err := scanner.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	parsed, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	user.CreatedAt = parsed
	return &user, nil
}

func normalizeUsername(username string) string {
	return strings.TrimSpace(strings.ToLower(username))
}
