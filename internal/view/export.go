package view

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	appErrors "github.com/Novip1906/taskmaster/internal/errors"
	"github.com/Novip1906/taskmaster/internal/models"
)

const ExportFileName = "taskmaster_todos.txt"

var NoticeExported = models.Notice{
	Title:       "Export Successful",
	Description: "Your to-do list has been exported as " + ExportFileName + ".",
}

// Export renders tasks as one "[x] text" or "[ ] text" line each, in order,
// without a trailing newline.
func Export(tasks []models.Task) ([]byte, error) {
	if len(tasks) == 0 {
		return nil, appErrors.ErrNothingToExport
	}

	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		lines = append(lines, checkbox(t.Completed)+" "+t.Text)
	}
	return []byte(strings.Join(lines, "\n")), nil
}

// WriteExport writes the export file into dir and returns its path. No file
// is created when there is nothing to export.
func WriteExport(dir string, tasks []models.Task) (string, error) {
	content, err := Export(tasks)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, ExportFileName)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func checkbox(completed bool) string {
	if completed {
		return "[x]"
	}
	return "[ ]"
}
