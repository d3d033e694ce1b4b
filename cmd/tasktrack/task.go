package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"tasktrack/internal/api"
	"tasktrack/internal/config"
)

func newTaskCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Manage tasks"}
	cmd.AddCommand(
		newTaskCreateCmd(cfg, jsonOutput),
		newTaskShowCmd(cfg, jsonOutput),
		newTaskListCmd(cfg, jsonOutput),
		newTaskUpdateCmd(cfg, jsonOutput),
		newTaskDeleteCmd(cfg),
		newTaskTransitionCmd(cfg, jsonOutput),
	)
	return cmd
}

func newTaskCreateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		authorID   int64
		assigneeID int64
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a task",
		Args:  requireExactlyArgs(1, "task name is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if authorID <= 0 {
				return fmt.Errorf("--author is required")
			}
			req := api.TaskCreateRequest{Name: args[0], AuthorID: authorID}
			if assigneeID > 0 {
				req.AssignedUserID = &assigneeID
			}
			return withClient(cfg, func(client *api.Client) error {
				task, err := client.CreateTask(cmd.Context(), req)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(task)
				}
				return writePlain("created %s\n", formatTaskLine(task))
			})
		},
	}

	cmd.Flags().Int64Var(&authorID, "author", 0, "author user id (required)")
	cmd.Flags().Int64Var(&assigneeID, "assignee", 0, "assigned user id")
	return cmd
}

func newTaskShowCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task",
		Args:  requireExactlyArgs(1, "task id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskIDArg(args[0])
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				task, err := client.GetTask(cmd.Context(), id)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(task)
				}
				return writeTaskDetail(task)
			})
		},
	}
}

func newTaskListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		page       int
		limit      int
		authorID   int64
		assigneeID int64
		status     string
		order      string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if page > 0 {
				query.Set("page", strconv.Itoa(page))
			}
			if limit > 0 {
				query.Set("limit", strconv.Itoa(limit))
			}
			setIfPositive(query, "author_id", authorID)
			setIfPositive(query, "assigned_user_id", assigneeID)
			setIfNotEmpty(query, "status", status)
			setIfNotEmpty(query, "order", order)

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.ListTasks(cmd.Context(), query)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeTaskList(resp)
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 0, "page number (1-based)")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size")
	cmd.Flags().Int64Var(&authorID, "author", 0, "filter by author id")
	cmd.Flags().Int64Var(&assigneeID, "assignee", 0, "filter by assigned user id")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (comma-separated)")
	cmd.Flags().StringVar(&order, "order", "", "sort by id: asc or desc")
	return cmd
}

func newTaskUpdateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		name          string
		assigneeID    int64
		clearAssignee bool
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a task's name or assignee",
		Args:  requireExactlyArgs(1, "task id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskIDArg(args[0])
			if err != nil {
				return err
			}

			req := api.TaskUpdateRequest{ClearAssignee: clearAssignee}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("assignee") {
				req.AssignedUserID = &assigneeID
			}

			return withClient(cfg, func(client *api.Client) error {
				task, err := client.UpdateTask(cmd.Context(), id, req)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(task)
				}
				return writeTaskDetail(task)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new task name")
	cmd.Flags().Int64Var(&assigneeID, "assignee", 0, "assigned user id")
	cmd.Flags().BoolVar(&clearAssignee, "clear-assignee", false, "remove the assignee")
	return cmd
}

func newTaskDeleteCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task and its attachment",
		Args:  requireExactlyArgs(1, "task id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskIDArg(args[0])
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				if err := client.DeleteTask(cmd.Context(), id); err != nil {
					return err
				}
				return writePlain("deleted task %d\n", id)
			})
		},
	}
}

func newTaskTransitionCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "transition <id> <transition>",
		Short: "Move a task through the workflow (start, complete, hold, resume, cancel, archive)",
		Args:  requireExactlyArgs(2, "task id and transition are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskIDArg(args[0])
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.TransitionTask(cmd.Context(), id, args[1])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("%s\n", resp.Message)
			})
		},
	}
}
