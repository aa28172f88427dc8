// Package report appends check results to the plain-text report log, one
// "YYYY-MM-DD HH:MM:SS,name,status" line per site.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tickle-go/internal/models"
)

const TimestampLayout = "2006-01-02 15:04:05"

type Writer struct {
	Path string
}

func NewWriter(path string) *Writer {
	return &Writer{Path: path}
}

// Write appends one line per result, all stamped with at. Each line is a
// single write so concurrent writers never interleave within a line.
func (w *Writer) Write(at time.Time, results []models.Result) error {
	if len(results) == 0 {
		return nil
	}

	if dir := filepath.Dir(w.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	file, err := os.OpenFile(w.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open report log: %w", err)
	}
	defer file.Close()

	stamp := at.Format(TimestampLayout)
	for _, result := range results {
		if _, err := file.WriteString(Line(stamp, result)); err != nil {
			return fmt.Errorf("failed to write report log: %w", err)
		}
	}

	return nil
}

func Line(stamp string, result models.Result) string {
	return fmt.Sprintf("%s,%s,%s\n", stamp, result.Name, result.Status)
}
