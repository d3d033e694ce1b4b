package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tasktrack/internal/auth"
	"tasktrack/internal/config"
	"tasktrack/internal/models"
	"tasktrack/internal/store"
)

// seedFile is the YAML document accepted by `tasktrack seed`.
type seedFile struct {
	Users []seedUser `yaml:"users"`
	Tasks []seedTask `yaml:"tasks"`
}

type seedUser struct {
	Username string   `yaml:"username"`
	Email    string   `yaml:"email"`
	Password string   `yaml:"password"`
	Roles    []string `yaml:"roles"`
}

type seedTask struct {
	Name        string   `yaml:"name"`
	Author      string   `yaml:"author"`
	Assignee    string   `yaml:"assignee"`
	Transitions []string `yaml:"transitions"`
}

type seedResult struct {
	UsersCreated int `json:"users_created"`
	UsersSkipped int `json:"users_skipped"`
	TasksCreated int `json:"tasks_created"`
}

type seedStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateTask(ctx context.Context, task *models.Task) error
}

func newSeedCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load users and tasks from a YAML file into the database",
		Args:  requireExactlyArgs(1, "seed file is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			doc, err := parseSeedFile(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			st, err := store.Open(cfg.DBPath, store.WithLogger(slog.Default()))
			if err != nil {
				return err
			}
			defer st.Close()

			result, err := applySeed(cmd.Context(), st, doc, time.Now().UTC())
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(result)
			}
			return writePlain("created %d users (%d already present), %d tasks\n", result.UsersCreated, result.UsersSkipped, result.TasksCreated)
		},
	}
}

func parseSeedFile(data []byte) (seedFile, error) {
	var doc seedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return seedFile{}, fmt.Errorf("parse seed file: %w", err)
	}
	for i, user := range doc.Users {
		if strings.TrimSpace(user.Username) == "" {
			return seedFile{}, fmt.Errorf("users[%d]: username is required", i)
		}
	}
	for i, task := range doc.Tasks {
		if strings.TrimSpace(task.Name) == "" {
			return seedFile{}, fmt.Errorf("tasks[%d]: name is required", i)
		}
		if strings.TrimSpace(task.Author) == "" {
			return seedFile{}, fmt.Errorf("tasks[%d]: author is required", i)
		}
	}
	return doc, nil
}

// applySeed creates missing users, then every task. Existing users are kept
// as they are; tasks are always added.
func applySeed(ctx context.Context, st seedStore, doc seedFile, now time.Time) (seedResult, error) {
	result := seedResult{}
	ids := map[string]int64{}

	for _, entry := range doc.Users {
		existing, err := st.GetUserByUsername(ctx, entry.Username)
		if err != nil {
			return result, err
		}
		if existing != nil {
			ids[existing.Username] = existing.ID
			result.UsersSkipped++
			continue
		}

		user, err := auth.NewUser(entry.Username, entry.Email, entry.Password, entry.Roles, now)
		if err != nil {
			return result, fmt.Errorf("user %q: %w", entry.Username, err)
		}
		if err := st.CreateUser(ctx, user); err != nil {
			return result, fmt.Errorf("user %q: %w", entry.Username, err)
		}
		ids[user.Username] = user.ID
		result.UsersCreated++
	}

	lookup := func(username string) (int64, error) {
		name, err := auth.NormalizeUsername(username)
		if err != nil {
			return 0, err
		}
		if id, ok := ids[name]; ok {
			return id, nil
		}
		user, err := st.GetUserByUsername(ctx, name)
		if err != nil {
			return 0, err
		}
		if user == nil {
			return 0, fmt.Errorf("unknown user %q", username)
		}
		ids[name] = user.ID
		return user.ID, nil
	}

	for i, entry := range doc.Tasks {
		authorID, err := lookup(entry.Author)
		if err != nil {
			return result, fmt.Errorf("tasks[%d] author: %w", i, err)
		}

		task := &models.Task{
			Name:      strings.TrimSpace(entry.Name),
			AuthorID:  authorID,
			Status:    string(models.StatusNew),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if strings.TrimSpace(entry.Assignee) != "" {
			assigneeID, err := lookup(entry.Assignee)
			if err != nil {
				return result, fmt.Errorf("tasks[%d] assignee: %w", i, err)
			}
			task.AssignedUserID = &assigneeID
		}

		status := models.StatusNew
		for _, raw := range entry.Transitions {
			transition, err := models.ParseTaskTransition(raw)
			if err != nil {
				return result, fmt.Errorf("tasks[%d]: %w", i, err)
			}
			if status, err = models.Apply(transition, status); err != nil {
				return result, fmt.Errorf("tasks[%d]: %w", i, err)
			}
		}
		task.Status = string(status)

		if err := st.CreateTask(ctx, task); err != nil {
			return result, fmt.Errorf("tasks[%d]: %w", i, err)
		}
		result.TasksCreated++
	}

	return result, nil
}
