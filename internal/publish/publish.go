// Package publish exports tasks as a directory of markdown files: an index
// grouped by AE plus one page per task.
package publish

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"aetracker/internal/model"
)

type WriteOptions struct {
	IncludeDone bool
	Overwrite   bool
	Now         time.Time
}

type WriteResult struct {
	Written []string `json:"written"`
}

// WriteTasks writes toDir/index.md and toDir/tasks/<id>.md. It stops at the
// first file that cannot be written.
func WriteTasks(tasks []model.Task, aes []string, toDir string, opt WriteOptions) (WriteResult, error) {
	toDir = strings.TrimSpace(toDir)
	if toDir == "" {
		return WriteResult{}, errors.New("missing --to")
	}
	toDir = filepath.Clean(toDir)

	tasksDir := filepath.Join(toDir, "tasks")
	if err := os.MkdirAll(tasksDir, 0o755); err != nil {
		return WriteResult{}, err
	}

	indexPath := filepath.Join(toDir, "index.md")
	indexMD := RenderIndexMarkdown(tasks, aes, RenderOptions{IncludeDone: opt.IncludeDone, Now: opt.Now})
	if err := writeFile(indexPath, []byte(indexMD), opt.Overwrite); err != nil {
		return WriteResult{}, err
	}

	written := []string{indexPath}
	for _, t := range tasks {
		if t.Done() && !opt.IncludeDone {
			continue
		}
		if !safeID(t.ID) {
			return WriteResult{}, errors.New("refusing to write task with unsafe id: " + t.ID)
		}
		p := filepath.Join(tasksDir, t.ID+".md")
		if err := writeFile(p, []byte(RenderTaskMarkdown(t)), opt.Overwrite); err != nil {
			return WriteResult{}, err
		}
		written = append(written, p)
	}
	return WriteResult{Written: written}, nil
}

// safeID rejects ids that would escape the tasks dir.
func safeID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

func writeFile(path string, b []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.New("file exists (use --overwrite): " + path)
		}
	}
	return os.WriteFile(path, b, 0o644)
}
