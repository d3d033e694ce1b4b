package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"tasktrack/internal/api"
	"tasktrack/internal/config"
	"tasktrack/internal/filestore"
	"tasktrack/internal/store"
)

// infoReport is what `tasktrack info` prints. FilesOnDisk is only known
// when the command reads the upload directory itself.
type infoReport struct {
	api.InfoResponse
	FilesOnDisk *int `json:"files_on_disk,omitempty"`
}

func newInfoCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show database and upload directory info",
		Long: "Show database and upload directory info.\n\n" +
			"With --offline the database and upload directory are read directly\n" +
			"and no server is contacted or started.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if offline {
				report, err := localInfo(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				return writeInfo(report, *jsonOutput)
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.GetInfo(cmd.Context())
				if err != nil {
					return err
				}
				return writeInfo(infoReport{InfoResponse: resp}, *jsonOutput)
			})
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "read the database and upload directory without a server")
	return cmd
}

// localInfo reports on the configured database and upload directory. The
// database must already exist; it is never created here.
func localInfo(ctx context.Context, cfg *config.Config) (infoReport, error) {
	if _, err := os.Stat(cfg.DBPath); err != nil {
		return infoReport{}, fmt.Errorf("database %s: %w", cfg.DBPath, err)
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return infoReport{}, err
	}
	defer st.Close()

	info, err := st.StoreInfo(ctx)
	if err != nil {
		return infoReport{}, err
	}

	files, err := filestore.NewTaskFiles(filestore.NewLocal(), cfg.Uploads.RootDir, cfg.Uploads.TasksDir)
	if err != nil {
		return infoReport{}, fmt.Errorf("upload root %s: %w", cfg.Uploads.RootDir, err)
	}
	onDisk, err := countCanonicalFiles(files.Dir())
	if err != nil {
		return infoReport{}, err
	}

	return infoReport{
		InfoResponse: api.InfoResponse{
			DBPath:          cfg.DBPath,
			UploadDir:       files.Dir(),
			SchemaVersion:   info.SchemaVersion,
			TaskCounts:      info.TaskCounts,
			TotalTasks:      info.TotalTasks,
			AttachmentCount: info.AttachmentCount,
			UserCount:       info.UserCount,
		},
		FilesOnDisk: &onDisk,
	}, nil
}

// countCanonicalFiles counts regular files directly under dir. The temp
// staging directory and anything else nested is skipped.
func countCanonicalFiles(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			n++
		}
	}
	return n, nil
}

func writeInfo(report infoReport, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(report)
	}

	_ = writePlain("db_path: %s\n", report.DBPath)
	_ = writePlain("upload_dir: %s\n", report.UploadDir)
	_ = writePlain("schema_version: %d\n", report.SchemaVersion)
	_ = writePlain("users: %d\n", report.UserCount)
	_ = writePlain("attachments: %d\n", report.AttachmentCount)
	if report.FilesOnDisk != nil {
		_ = writePlain("files_on_disk: %d\n", *report.FilesOnDisk)
	}
	_ = writePlain("total_tasks: %d\n", report.TotalTasks)

	statuses := make([]string, 0, len(report.TaskCounts))
	for status := range report.TaskCounts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		_ = writePlain("  %s: %d\n", status, report.TaskCounts[status])
	}
	return nil
}
