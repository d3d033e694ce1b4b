package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"tasktrack/internal/api"
	"tasktrack/internal/config"
)

func newAttachCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{Use: "attach", Short: "Manage task image attachments"}
	cmd.AddCommand(
		newAttachUploadCmd(cfg, jsonOutput),
		newAttachGetCmd(cfg),
		newAttachDeleteCmd(cfg, jsonOutput),
	)
	return cmd
}

func newAttachUploadCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		filename  string
		mediaType string
	)

	cmd := &cobra.Command{
		Use:   "upload <task-id> <path>",
		Short: "Upload an image and make it the task's attachment",
		Args:  requireExactlyArgs(2, "task id and path are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskIDArg(args[0])
			if err != nil {
				return err
			}

			path := args[1]
			if strings.TrimSpace(mediaType) == "" {
				detected, err := mimetype.DetectFile(path)
				if err != nil {
					return err
				}
				mediaType = detected.String()
			}

			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer file.Close()

			name := strings.TrimSpace(filename)
			if name == "" {
				name = filepath.Base(path)
			}

			return withClient(cfg, func(client *api.Client) error {
				attachment, err := client.UploadAttachment(cmd.Context(), id, name, mediaType, file)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(attachment)
				}
				if attachment.ReplacedFilename != "" {
					return writePlain("task %d: %s replaced %s (%d bytes)\n", attachment.TaskID, attachment.Filename, attachment.ReplacedFilename, attachment.SizeBytes)
				}
				return writePlain("task %d: %s (%d bytes)\n", attachment.TaskID, attachment.Filename, attachment.SizeBytes)
			})
		},
	}

	cmd.Flags().StringVar(&filename, "filename", "", "filename to upload as (defaults to the local file name)")
	cmd.Flags().StringVar(&mediaType, "media-type", "", "declared media type (detected from content when empty)")
	return cmd
}

func newAttachGetCmd(cfg *config.Config) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "get <filename>",
		Short: "Download an attachment",
		Args:  requireExactlyArgs(1, "filename is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				var w io.Writer = os.Stdout
				var file *os.File
				if outputPath != "" && outputPath != "-" {
					f, err := os.Create(outputPath)
					if err != nil {
						return err
					}
					file = f
					w = f
				}

				_, err := client.DownloadAttachment(cmd.Context(), args[0], w)
				if file != nil {
					if closeErr := file.Close(); err == nil {
						err = closeErr
					}
					if err != nil {
						_ = os.Remove(outputPath)
					}
				}
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output-file", "o", "", "write to file instead of stdout")
	return cmd
}

func newAttachDeleteCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <filename>",
		Short: "Delete an attachment and clear the task's reference to it",
		Args:  requireExactlyArgs(1, "filename is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.DeleteAttachment(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("removed %s from task %d\n", resp.Filename, resp.TaskID)
			})
		},
	}
}
