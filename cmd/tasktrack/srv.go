package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"tasktrack/internal/config"
	"tasktrack/internal/filestore"
	"tasktrack/internal/server"
	"tasktrack/internal/store"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the tasktrack API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}
			if cfg.Uploads.RootDir == "" {
				return fmt.Errorf("upload root is required")
			}

			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			logger.Info("opening database", "path", cfg.DBPath)
			st, err := store.Open(cfg.DBPath, store.WithLogger(logger))
			if err != nil {
				return err
			}
			defer st.Close()

			opts := []filestore.LocalOption{filestore.WithLogger(logger.With("component", "filestore"))}
			if cfg.Uploads.CrossDeviceFallback {
				opts = append(opts, filestore.WithCrossDeviceFallback())
			}
			files, err := filestore.NewTaskFiles(filestore.NewLocal(opts...), cfg.Uploads.RootDir, cfg.Uploads.TasksDir)
			if err != nil {
				return err
			}

			srv := server.New(addr, cfg.DBPath, st, files, logger)
			srv.ConfigureAttachmentOptions(cfg.Uploads)
			return srv.ListenAndServe()
		},
	}
}
