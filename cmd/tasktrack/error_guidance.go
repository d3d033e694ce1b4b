package main

import (
	"context"
	"errors"
	"net"

	"tasktrack/internal/api"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "unauthorized", "forbidden":
			lines = append(lines, "hint: verify TASKTRACK_API_TOKEN and TASKTRACK_ADMIN_TOKEN configuration.")
		case "resource_exhausted":
			lines = append(lines, "hint: too many concurrent uploads; retry shortly.")
		}
		switch apiErr.ErrorCode {
		case 1002, 1007:
			lines = append(lines, "hint: the file exceeds the server upload limit (uploads.max_file_bytes).")
		case 1006:
			lines = append(lines, "hint: only image uploads are accepted (uploads.allowed_media_types).")
		case 1010:
			lines = append(lines, "hint: allowed transitions are start, complete, hold, resume, cancel, archive.")
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify TASKTRACK_API_URL points to a tasktrack server.")
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase TASKTRACK_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a tasktrack server is running at TASKTRACK_API_URL.",
			"hint: start local server manually with: tasktrack srv",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
